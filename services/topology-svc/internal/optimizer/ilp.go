package optimizer

import (
	"context"
	"sort"

	"topology/services/topology-svc/internal/graph"
)

// ilpOptimizer implements §4.3.3 without a MILP backend (none exists
// anywhere in the retrieval pack this codebase was grown from — see
// DESIGN.md). The LP's own shape (y[e] is an indicator shared across
// streams, so converging paths before diverging costs nothing extra) means
// an optimal solution is always a directed out-tree rooted at the
// publisher, exactly §8's stated invariant. This is solved as a directed
// Steiner-arborescence search: a Dreyfus-Wagner-style DP over subsets of
// the required terminals (the subscribers), merging at a shared hub node,
// combined with a Bellman-Ford-style edge relaxation (in place of the usual
// Dijkstra step, simpler to get right without a live test run) that lets
// the hub be reached through intermediate relay nodes that aren't
// themselves subscribers.
//
// Because the cost-optimal sub-solution for a terminal subset is not always
// the delay-optimal one, and delay feasibility is only checked once at the
// root, each DP cell keeps a capped Pareto frontier of (cost, accumulated
// delay) points rather than a single scalar. frontierCap bounds the
// resource cost of pathological instances; exceeding it means some
// dominated-looking alternatives are dropped before they could prove
// useful for a stricter budget elsewhere in the tree. relaxPassesCap limits
// the relaxation to at most 48 passes per terminal subset, so on graphs with
// more nodes than that a relay path longer than the pass count may not be
// found. These two caps are where this solver falls short of a true MILP's
// exactness guarantee.
type ilpOptimizer struct{}

func (ilpOptimizer) Kind() Kind { return IntegerLinearProgram }

const (
	frontierCap    = 64
	relaxPassesCap = 48
)

type paretoPoint struct {
	cost  float64
	delay float64
	edges []graph.Link
}

func (ilpOptimizer) Solve(ctx context.Context, g *graph.Graph, t Track) (SingleTrackSolution, error) {
	if len(t.Subscribers) == 0 {
		return SingleTrackSolution{Success: true}, nil
	}

	nodes := g.Nodes()
	nodeIdx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		nodeIdx[n.ID] = i
	}
	if _, ok := nodeIdx[t.Publisher]; !ok {
		return Failure(ReasonInfeasible), nil
	}
	terminals := make([]string, len(t.Subscribers))
	copy(terminals, t.Subscribers)
	sort.Strings(terminals)
	for _, s := range terminals {
		if _, ok := nodeIdx[s]; !ok {
			return Failure(ReasonInfeasible), nil
		}
	}
	k := len(terminals)
	fullMask := (1 << uint(k)) - 1

	// dp[mask][nodeID] = pareto frontier of subtrees rooted at nodeID
	// spanning exactly the terminals in mask.
	dp := make([]map[string][]paretoPoint, fullMask+1)
	for m := range dp {
		dp[m] = make(map[string][]paretoPoint)
	}
	for i, s := range terminals {
		dp[1<<uint(i)][s] = []paretoPoint{{cost: 0, delay: 0}}
	}

	inEdgesByNode := make(map[string][]graph.Edge, len(nodes))
	for _, n := range nodes {
		inEdgesByNode[n.ID] = g.InEdges(n.ID)
	}

	passes := len(nodes)
	if passes > relaxPassesCap {
		passes = relaxPassesCap
	}

	for mask := 1; mask <= fullMask; mask++ {
		if err := ctx.Err(); err != nil {
			return Failure(ReasonTimeout), nil
		}
		if bitsSet(mask) > 1 {
			mergeSubsets(dp, mask, nodes)
		}
		for pass := 0; pass < passes; pass++ {
			changed := relaxOnce(dp, mask, nodes, inEdgesByNode)
			if !changed {
				break
			}
			if err := ctx.Err(); err != nil {
				return Failure(ReasonTimeout), nil
			}
		}
	}

	best, ok := bestWithinBudget(dp[fullMask][t.Publisher], t.DelayBudget)
	if !ok {
		return Failure(ReasonInfeasible), nil
	}

	links := make([]graph.Link, len(best.edges))
	copy(links, best.edges)
	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})

	return SingleTrackSolution{
		Success:   true,
		Cost:      best.cost,
		MaxDelay:  best.delay,
		UsedLinks: links,
	}, nil
}

func bitsSet(m int) int {
	n := 0
	for m > 0 {
		n += m & 1
		m >>= 1
	}
	return n
}

// mergeSubsets combines, at every node v, the frontiers of every way to
// split mask into two nonempty disjoint terminal subsets both rooted at v.
func mergeSubsets(dp []map[string][]paretoPoint, mask int, nodes []graph.Node) {
	for _, n := range nodes {
		v := n.ID
		var combined []paretoPoint
		for sub := (mask - 1) & mask; sub > 0; sub = (sub - 1) & mask {
			other := mask &^ sub
			if sub < other {
				continue // consider each unordered split once
			}
			left, lok := dp[sub][v]
			right, rok := dp[other][v]
			if !lok || !rok {
				continue
			}
			for _, a := range left {
				for _, b := range right {
					combined = append(combined, paretoPoint{
						cost:  a.cost + b.cost,
						delay: maxFloat(a.delay, b.delay),
						edges: concatLinks(a.edges, b.edges),
					})
				}
			}
		}
		if len(combined) == 0 {
			continue
		}
		dp[mask][v] = prunePareto(append(dp[mask][v], combined...))
	}
}

// relaxOnce extends each dp[mask][v] frontier along incoming edges
// (u,v): dp[mask][u] can reach any point dp[mask][v] achieves, plus the
// edge's own cost/latency. Returns whether any frontier changed.
func relaxOnce(dp []map[string][]paretoPoint, mask int, nodes []graph.Node, inEdges map[string][]graph.Edge) bool {
	changed := false
	for _, n := range nodes {
		v := n.ID
		pts, ok := dp[mask][v]
		if !ok || len(pts) == 0 {
			continue
		}
		for _, e := range inEdges[v] {
			u := e.From
			var extended []paretoPoint
			for _, p := range pts {
				extended = append(extended, paretoPoint{
					cost:  p.cost + e.Cost,
					delay: p.delay + e.Latency,
					edges: concatLinks([]graph.Link{{From: u, To: v}}, p.edges),
				})
			}
			before := len(dp[mask][u])
			merged := prunePareto(append(append([]paretoPoint{}, dp[mask][u]...), extended...))
			if len(merged) != before || !equalFrontiers(merged, dp[mask][u]) {
				changed = true
			}
			dp[mask][u] = merged
		}
	}
	return changed
}

func equalFrontiers(a, b []paretoPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].cost != b[i].cost || a[i].delay != b[i].delay {
			return false
		}
	}
	return true
}

func concatLinks(a, b []graph.Link) []graph.Link {
	out := make([]graph.Link, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// prunePareto sorts by cost ascending and keeps only points whose delay is
// strictly better than every cheaper point seen so far (a skyline), capped
// to frontierCap entries.
func prunePareto(pts []paretoPoint) []paretoPoint {
	if len(pts) == 0 {
		return nil
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].cost != pts[j].cost {
			return pts[i].cost < pts[j].cost
		}
		return pts[i].delay < pts[j].delay
	})
	out := make([]paretoPoint, 0, len(pts))
	bestDelay := maxFloatConst
	for _, p := range pts {
		if p.delay < bestDelay-epsilon {
			out = append(out, p)
			bestDelay = p.delay
		}
		if len(out) >= frontierCap {
			break
		}
	}
	return out
}

const maxFloatConst = 1e18

func bestWithinBudget(pts []paretoPoint, budget float64) (paretoPoint, bool) {
	for _, p := range pts {
		if p.delay <= budget+epsilon {
			return p, true
		}
	}
	return paretoPoint{}, false
}
