// Package optimizer implements the four delay-constrained multicast-tree
// optimizers (§4.3) and the multi-track optimizer (§4.4) behind a
// runtime-dispatched registry keyed by Kind.
package optimizer

import (
	"context"
	"sort"

	"topology/services/topology-svc/internal/graph"
)

// Kind identifies one of the four single-track optimizer strategies.
type Kind string

const (
	DirectLinkTree          Kind = "direct_link_tree"
	MulticastHeuristic      Kind = "multicast_heuristic"
	IntegerLinearProgram    Kind = "integer_linear_programming"
	MinimumSpanningTree     Kind = "minimum_spanning_tree"
	DefaultKind                 = IntegerLinearProgram
)

// Reason classifies why a solution was not found, surfaced by the service
// layer to choose between Infeasible and Timeout (§7).
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonInfeasible  Reason = "infeasible"
	ReasonTimeout     Reason = "timeout"
)

// SingleTrackSolution is the optimizer output defined in §3.
type SingleTrackSolution struct {
	Success    bool
	Cost       float64
	MaxDelay   float64
	UsedLinks  []graph.Link
	Reason     Reason
}

// Failure is a convenience constructor for a not_found result.
func Failure(reason Reason) SingleTrackSolution {
	return SingleTrackSolution{Success: false, Reason: reason}
}

// Track is the minimal view an optimizer needs of a track; it decouples this
// package from package track so optimizers can be exercised with synthetic
// instances (and so the trial/no-commit subscribe flow can pass a view that
// isn't yet the committed track state).
type Track struct {
	Publisher   string
	Subscribers []string // excludes Publisher, sorted
	DelayBudget float64
}

// Optimizer computes a SingleTrackSolution for one track against a graph.
// Implementations must honor ctx cancellation/deadline at iteration
// boundaries (§5 "suspension points", §9 "cooperative deadline").
type Optimizer interface {
	Kind() Kind
	Solve(ctx context.Context, g *graph.Graph, t Track) (SingleTrackSolution, error)
}

// AlgorithmInfo describes one optimizer's cost/latency/exactness trade-off.
type AlgorithmInfo struct {
	Kind        Kind
	Name        string
	Description string
	Exact       bool
	Complexity  string
}

var registry = map[Kind]Optimizer{
	DirectLinkTree:       &directLinkTree{},
	MulticastHeuristic:   &multicastHeuristic{},
	IntegerLinearProgram: &ilpOptimizer{},
	MinimumSpanningTree:  &mstOptimizer{},
}

var infos = map[Kind]AlgorithmInfo{
	DirectLinkTree: {
		Kind: DirectLinkTree, Name: "Direct link tree",
		Description: "Star topology rooted at the publisher; one hop per subscriber.",
		Exact:       true, Complexity: "O(|subscribers|)",
	},
	MulticastHeuristic: {
		Kind: MulticastHeuristic, Name: "Multicast heuristic",
		Description: "Greedy tree construction with cost-improving reroute augmentation.",
		Exact:       false, Complexity: "O(|subscribers|^2 * |E|)",
	},
	IntegerLinearProgram: {
		Kind: IntegerLinearProgram, Name: "Integer linear programming",
		Description: "Exact delay-constrained directed Steiner arborescence search.",
		Exact:       true, Complexity: "exponential in |subscribers|",
	},
	MinimumSpanningTree: {
		Kind: MinimumSpanningTree, Name: "Minimum spanning tree",
		Description: "Undirected MST over participants, oriented from the publisher.",
		Exact:       false, Complexity: "O(|E| log |E|)",
	},
}

// Get returns the optimizer for kind, defaulting to DefaultKind for the
// zero value so callers can pass an unset optimizer_type straight through.
func Get(kind Kind) (Optimizer, bool) {
	if kind == "" {
		kind = DefaultKind
	}
	o, ok := registry[kind]
	return o, ok
}

// Describe returns the AlgorithmInfo for kind.
func Describe(kind Kind) (AlgorithmInfo, bool) {
	if kind == "" {
		kind = DefaultKind
	}
	info, ok := infos[kind]
	return info, ok
}

// All returns every known AlgorithmInfo, sorted by Kind for determinism.
func All() []AlgorithmInfo {
	kinds := make([]string, 0, len(infos))
	for k := range infos {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	out := make([]AlgorithmInfo, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, infos[Kind(k)])
	}
	return out
}
