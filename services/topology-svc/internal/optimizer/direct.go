package optimizer

import (
	"context"

	"topology/services/topology-svc/internal/graph"
)

// directLinkTree implements §4.3.1: a star rooted at the publisher.
type directLinkTree struct{}

func (directLinkTree) Kind() Kind { return DirectLinkTree }

func (directLinkTree) Solve(ctx context.Context, g *graph.Graph, t Track) (SingleTrackSolution, error) {
	if err := ctx.Err(); err != nil {
		return Failure(ReasonTimeout), nil
	}

	var cost, maxDelay float64
	links := make([]graph.Link, 0, len(t.Subscribers))
	for _, s := range t.Subscribers {
		e, ok := g.GetEdge(t.Publisher, s)
		if !ok || e.Latency > t.DelayBudget {
			return Failure(ReasonInfeasible), nil
		}
		cost += e.Cost
		if e.Latency > maxDelay {
			maxDelay = e.Latency
		}
		links = append(links, graph.Link{From: t.Publisher, To: s})
	}

	return SingleTrackSolution{
		Success:   true,
		Cost:      cost,
		MaxDelay:  maxDelay,
		UsedLinks: links,
	}, nil
}
