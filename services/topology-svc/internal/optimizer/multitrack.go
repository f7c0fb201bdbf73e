package optimizer

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"topology/services/topology-svc/internal/graph"
)

// MultiMode selects how a MultiTrackSolution is assembled from its member
// tracks (§4.4).
type MultiMode string

const (
	// Adapted dispatches each track to its own configured optimizer,
	// sequentially, reusing the single-track path unchanged.
	Adapted MultiMode = "adapted"
	// Native dispatches every track through the exact optimizer
	// concurrently, since §4.4 states there is no cross-track coupling
	// to exploit beyond running the tracks' own solves in parallel.
	Native MultiMode = "native"
)

// TrackRequest pairs a Track view with the optimizer it should be solved
// with under Adapted mode; Native mode ignores Kind and always uses the
// exact optimizer.
type TrackRequest struct {
	Namespace string
	Track     Track
	Kind      Kind
}

// MultiTrackResult is one track's outcome inside a MultiTrackSolution.
type MultiTrackResult struct {
	Namespace string
	Solution  SingleTrackSolution
}

// MultiTrackSolution is §3's aggregate: success iff every member track
// succeeds, cost is the sum of member costs, max_delay is the max across
// members.
type MultiTrackSolution struct {
	Success  bool
	Cost     float64
	MaxDelay float64
	Tracks   []MultiTrackResult
}

// SolveMulti solves every request under mode. The Native path fans the
// requests out concurrently via errgroup, since each track's solve is
// independent of the others.
func SolveMulti(ctx context.Context, g *graph.Graph, reqs []TrackRequest, mode MultiMode) (MultiTrackSolution, error) {
	sorted := make([]TrackRequest, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Namespace < sorted[j].Namespace })

	results := make([]MultiTrackResult, len(sorted))

	switch mode {
	case Native:
		group, gctx := errgroup.WithContext(ctx)
		for i, r := range sorted {
			i, r := i, r
			group.Go(func() error {
				sol, err := ilpOptimizer{}.Solve(gctx, g, r.Track)
				if err != nil {
					return err
				}
				results[i] = MultiTrackResult{Namespace: r.Namespace, Solution: sol}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return MultiTrackSolution{}, err
		}
	default: // Adapted
		for i, r := range sorted {
			if err := ctx.Err(); err != nil {
				results[i] = MultiTrackResult{Namespace: r.Namespace, Solution: Failure(ReasonTimeout)}
				continue
			}
			opt, ok := Get(r.Kind)
			if !ok {
				results[i] = MultiTrackResult{Namespace: r.Namespace, Solution: Failure(ReasonInfeasible)}
				continue
			}
			sol, err := opt.Solve(ctx, g, r.Track)
			if err != nil {
				return MultiTrackSolution{}, err
			}
			results[i] = MultiTrackResult{Namespace: r.Namespace, Solution: sol}
		}
	}

	out := MultiTrackSolution{Success: true, Tracks: results}
	for _, r := range results {
		if !r.Solution.Success {
			out.Success = false
			continue
		}
		out.Cost += r.Solution.Cost
		if r.Solution.MaxDelay > out.MaxDelay {
			out.MaxDelay = r.Solution.MaxDelay
		}
	}
	if !out.Success {
		out.Cost = 0
		out.MaxDelay = 0
	}
	return out, nil
}
