package optimizer

import (
	"context"
	"math"
	"sort"

	"topology/services/topology-svc/internal/graph"
)

const epsilon = 1e-9

// multicastHeuristic implements §4.3.2: greedy attach, then a single
// cost-improving reroute augmentation per newly attached subscriber. The
// augmentation's cycle-avoidance set is the full ancestor set of the
// newly attached subscriber.
type multicastHeuristic struct{}

func (multicastHeuristic) Kind() Kind { return MulticastHeuristic }

type heuristicState struct {
	parent   map[string]string
	children map[string][]string
	lat      map[string]float64
	cost     float64
}

func (multicastHeuristic) Solve(ctx context.Context, g *graph.Graph, t Track) (SingleTrackSolution, error) {
	st := &heuristicState{
		parent:   map[string]string{},
		children: map[string][]string{t.Publisher: nil},
		lat:      map[string]float64{t.Publisher: 0},
	}

	for _, s := range t.Subscribers {
		if err := ctx.Err(); err != nil {
			return Failure(ReasonTimeout), nil
		}
		if !st.attach(g, t.Publisher, s, t.DelayBudget) {
			return Failure(ReasonInfeasible), nil
		}
		st.augment(g, s, t.DelayBudget)
	}

	return st.solution(), nil
}

// attach picks, among current tree nodes u with lat[u]+latency(u,s) <= budget,
// the one minimizing (cost(u,s), lat[u]+latency(u,s)).
func (st *heuristicState) attach(g *graph.Graph, publisher, s string, budget float64) bool {
	bestU := ""
	var bestCost, bestLat float64
	found := false

	for _, u := range st.treeNodesSorted() {
		e, ok := g.GetEdge(u, s)
		if !ok {
			continue
		}
		candLat := st.lat[u] + e.Latency
		if candLat > budget+epsilon {
			continue
		}
		if !found || e.Cost < bestCost-epsilon ||
			(math.Abs(e.Cost-bestCost) <= epsilon && candLat < bestLat-epsilon) {
			found = true
			bestU = u
			bestCost = e.Cost
			bestLat = candLat
		}
	}
	if !found {
		return false
	}

	st.parent[s] = bestU
	st.children[bestU] = append(st.children[bestU], s)
	st.children[s] = nil
	st.lat[s] = bestLat
	st.cost += bestCost
	return true
}

// treeNodesSorted returns the current tree's nodes in deterministic order,
// so attach/augment tie-breaks never depend on map iteration order.
func (st *heuristicState) treeNodesSorted() []string {
	out := make([]string, 0, len(st.children))
	for u := range st.children {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ancestors returns the set of nodes on the path from the root to s,
// inclusive of both endpoints.
func (st *heuristicState) ancestors(s string) map[string]struct{} {
	anc := map[string]struct{}{s: {}}
	cur := s
	for {
		p, ok := st.parent[cur]
		if !ok {
			break
		}
		anc[p] = struct{}{}
		cur = p
	}
	return anc
}

// subtree returns w and all its descendants.
func (st *heuristicState) subtree(w string) []string {
	out := []string{w}
	queue := []string{w}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range st.children[cur] {
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// augment evaluates replacing some w's incoming edge with (s,w), applying
// the single best admissible replacement if it improves cost (or is
// cost-neutral but latency-improving).
func (st *heuristicState) augment(g *graph.Graph, s string, budget float64) {
	skip := st.ancestors(s)

	bestW := ""
	var bestDeltaCost, bestDeltaDelay float64
	found := false

	for _, w := range st.treeNodesSorted() {
		if _, excluded := skip[w]; excluded {
			continue
		}
		sw, ok := g.GetEdge(s, w)
		if !ok {
			continue
		}
		p := st.parent[w]
		pw, ok := g.GetEdge(p, w)
		if !ok {
			continue
		}

		deltaDelay := (st.lat[s] + sw.Latency) - st.lat[w]
		deltaCost := sw.Cost - pw.Cost

		admissible := true
		for _, v := range st.subtree(w) {
			if st.lat[v]+deltaDelay > budget+epsilon {
				admissible = false
				break
			}
		}
		if !admissible {
			continue
		}

		if !found || deltaCost < bestDeltaCost-epsilon {
			found = true
			bestW = w
			bestDeltaCost = deltaCost
			bestDeltaDelay = deltaDelay
		}
	}

	if !found {
		return
	}
	if !(bestDeltaCost < -epsilon || (math.Abs(bestDeltaCost) <= epsilon && bestDeltaDelay < -epsilon)) {
		return
	}

	oldParent := st.parent[bestW]
	st.children[oldParent] = removeOne(st.children[oldParent], bestW)
	st.parent[bestW] = s
	st.children[s] = append(st.children[s], bestW)
	for _, v := range st.subtree(bestW) {
		st.lat[v] += bestDeltaDelay
	}
	st.cost += bestDeltaCost
}

func removeOne(ss []string, v string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func (st *heuristicState) solution() SingleTrackSolution {
	var maxDelay float64
	links := make([]graph.Link, 0, len(st.parent))
	for child, parent := range st.parent {
		links = append(links, graph.Link{From: parent, To: child})
		if st.lat[child] > maxDelay {
			maxDelay = st.lat[child]
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})
	return SingleTrackSolution{
		Success:   true,
		Cost:      st.cost,
		MaxDelay:  maxDelay,
		UsedLinks: links,
	}
}
