package optimizer

import (
	"context"
	"sort"

	"topology/services/topology-svc/internal/graph"
)

// mstOptimizer implements §4.3.4: an undirected MST over cost, restricted to
// the participants, rooted at the publisher by BFS orientation. The DSU
// structure follows katalvlaran-lvlath's Kruskal (graph/algorithms/prim_kruskal.go),
// re-derived for float64 edge weights and a directed graph whose reverse
// edge may carry independent attributes (the source library is undirected
// and int64-weighted, so it is not imported directly — see DESIGN.md).
type mstOptimizer struct{}

func (mstOptimizer) Kind() Kind { return MinimumSpanningTree }

// undirectedCandidate is one candidate MST edge with the directed edges (if
// any) available to realize it once oriented.
type undirectedCandidate struct {
	a, b     string
	weight   float64
	forward  *graph.Edge // a->b
	backward *graph.Edge // b->a
}

func (mstOptimizer) Solve(ctx context.Context, g *graph.Graph, t Track) (SingleTrackSolution, error) {
	if err := ctx.Err(); err != nil {
		return Failure(ReasonTimeout), nil
	}

	participants := append([]string{t.Publisher}, t.Subscribers...)
	sort.Strings(participants)

	candidates := buildUndirectedCandidates(g, participants)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight < candidates[j].weight
		}
		if candidates[i].a != candidates[j].a {
			return candidates[i].a < candidates[j].a
		}
		return candidates[i].b < candidates[j].b
	})

	dsu := newDisjointSet(participants)
	selected := make([]undirectedCandidate, 0, len(participants)-1)
	for _, c := range candidates {
		if dsu.find(c.a) != dsu.find(c.b) {
			dsu.union(c.a, c.b)
			selected = append(selected, c)
		}
	}
	if len(selected) != len(participants)-1 {
		// Participants are not all connected in the undirected view.
		return Failure(ReasonInfeasible), nil
	}

	adj := make(map[string][]undirectedCandidate, len(participants))
	for _, c := range selected {
		adj[c.a] = append(adj[c.a], c)
		adj[c.b] = append(adj[c.b], undirectedCandidate{a: c.b, b: c.a, weight: c.weight, forward: c.backward, backward: c.forward})
	}
	for k := range adj {
		sort.Slice(adj[k], func(i, j int) bool { return adj[k][i].b < adj[k][j].b })
	}

	lat := map[string]float64{t.Publisher: 0}
	cost := 0.0
	links := make([]graph.Link, 0, len(selected))
	visited := map[string]struct{}{t.Publisher: {}}
	queue := []string{t.Publisher}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range adj[cur] {
			child := c.b
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}

			edgeLatency, edgeCost := orientedEdgeAttrs(c)
			lat[child] = lat[cur] + edgeLatency
			cost += edgeCost
			links = append(links, graph.Link{From: cur, To: child})
			queue = append(queue, child)
		}
	}

	if len(visited) != len(participants) {
		return Failure(ReasonInfeasible), nil
	}

	var maxDelay float64
	for _, s := range t.Subscribers {
		if lat[s] > t.DelayBudget {
			return Failure(ReasonInfeasible), nil
		}
		if lat[s] > maxDelay {
			maxDelay = lat[s]
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return links[i].From < links[j].From
		}
		return links[i].To < links[j].To
	})

	return SingleTrackSolution{Success: true, Cost: cost, MaxDelay: maxDelay, UsedLinks: links}, nil
}

// orientedEdgeAttrs returns the (latency, cost) to charge for traversing
// c.a -> c.b in the oriented tree: the forward directed edge if it exists,
// falling back to the reverse edge's attributes otherwise (documented in
// DESIGN.md as an inherent looseness of treating a directed graph as
// undirected for MST purposes).
func orientedEdgeAttrs(c undirectedCandidate) (latency, cost float64) {
	if c.forward != nil {
		return c.forward.Latency, c.forward.Cost
	}
	return c.backward.Latency, c.backward.Cost
}

func buildUndirectedCandidates(g *graph.Graph, participants []string) []undirectedCandidate {
	idx := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		idx[p] = struct{}{}
	}

	seen := make(map[graph.EdgeKey]struct{})
	candidates := make([]undirectedCandidate, 0)
	for _, u := range participants {
		for _, e := range g.OutEdges(u) {
			if _, ok := idx[e.To]; !ok {
				continue
			}
			a, b := e.From, e.To
			if a > b {
				a, b = b, a
			}
			key := graph.EdgeKey{From: a, To: b}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			fwd, fwdOK := g.GetEdge(a, b)
			bwd, bwdOK := g.GetEdge(b, a)

			c := undirectedCandidate{a: a, b: b}
			switch {
			case fwdOK && bwdOK:
				c.forward, c.backward = &fwd, &bwd
				if fwd.Cost <= bwd.Cost {
					c.weight = fwd.Cost
				} else {
					c.weight = bwd.Cost
				}
			case fwdOK:
				c.forward = &fwd
				c.weight = fwd.Cost
			case bwdOK:
				c.backward = &bwd
				c.weight = bwd.Cost
			default:
				continue
			}
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// disjointSet is Kruskal's union-find, re-derived from
// katalvlaran-lvlath/graph/algorithms/prim_kruskal.go for string ids.
type disjointSet struct {
	parent map[string]string
	rank   map[string]int
}

func newDisjointSet(ids []string) *disjointSet {
	d := &disjointSet{parent: make(map[string]string, len(ids)), rank: make(map[string]int, len(ids))}
	for _, id := range ids {
		d.parent[id] = id
	}
	return d
}

func (d *disjointSet) find(u string) string {
	if d.parent[u] != u {
		d.parent[u] = d.find(d.parent[u])
	}
	return d.parent[u]
}

func (d *disjointSet) union(u, v string) {
	ru, rv := d.find(u), d.find(v)
	if ru == rv {
		return
	}
	if d.rank[ru] < d.rank[rv] {
		d.parent[ru] = rv
	} else {
		d.parent[rv] = ru
		if d.rank[ru] == d.rank[rv] {
			d.rank[ru]++
		}
	}
}
