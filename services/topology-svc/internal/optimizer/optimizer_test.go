package optimizer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topology/services/topology-svc/internal/graph"
	"topology/services/topology-svc/internal/optimizer"
)

// threeNodeGraph builds the triangle used throughout §8's worked scenarios:
// A, B, C fully connected with (A,B)=(10,10), (A,C)=(10,10), (B,C)=(1,1),
// plus symmetric reverse edges so MST's undirected view is well defined.
func threeNodeGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range []string{"A", "B", "C"} {
		g.AddNode(graph.Node{ID: id})
	}
	edges := []graph.Edge{
		{From: "A", To: "B", Latency: 10, Cost: 10},
		{From: "A", To: "C", Latency: 10, Cost: 10},
		{From: "B", To: "C", Latency: 1, Cost: 1},
		{From: "B", To: "A", Latency: 10, Cost: 10},
		{From: "C", To: "A", Latency: 10, Cost: 10},
		{From: "C", To: "B", Latency: 1, Cost: 1},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func sortedLinks(t *testing.T, links []graph.Link) []graph.Link {
	t.Helper()
	out := append([]graph.Link(nil), links...)
	return out
}

func TestDirectLinkTree_StarVsTreeTradeoff(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.DirectLinkTree)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 20.0, sol.Cost)
	assert.Equal(t, 10.0, sol.MaxDelay)
	assert.ElementsMatch(t, []graph.Link{{From: "A", To: "B"}, {From: "A", To: "C"}}, sol.UsedLinks)
}

func TestMulticastHeuristic_StarVsTreeTradeoff(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.MulticastHeuristic)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 11.0, sol.Cost)
	assert.Equal(t, 11.0, sol.MaxDelay)
	assert.ElementsMatch(t, []graph.Link{{From: "A", To: "B"}, {From: "B", To: "C"}}, sol.UsedLinks)
}

func TestILP_StarVsTreeTradeoff(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.IntegerLinearProgram)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 11.0, sol.Cost)
	assert.Equal(t, 11.0, sol.MaxDelay)
}

func TestMST_StarVsTreeTradeoff(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.MinimumSpanningTree)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 11.0, sol.Cost)
	assert.Equal(t, 11.0, sol.MaxDelay)
	assert.Len(t, sol.UsedLinks, 2)
}

func TestMulticastHeuristic_DelayForcesStar(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.MulticastHeuristic)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 10,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 20.0, sol.Cost)
	assert.ElementsMatch(t, []graph.Link{{From: "A", To: "B"}, {From: "A", To: "C"}}, sol.UsedLinks)
}

func TestILP_DelayForcesStar(t *testing.T) {
	g := threeNodeGraph(t)
	opt, ok := optimizer.Get(optimizer.IntegerLinearProgram)
	require.True(t, ok)

	sol, err := opt.Solve(context.Background(), g, optimizer.Track{
		Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 10,
	})
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 20.0, sol.Cost)
}

func TestAllOptimizers_Infeasible(t *testing.T) {
	g := threeNodeGraph(t)
	for _, kind := range []optimizer.Kind{
		optimizer.DirectLinkTree,
		optimizer.MulticastHeuristic,
		optimizer.IntegerLinearProgram,
		optimizer.MinimumSpanningTree,
	} {
		opt, ok := optimizer.Get(kind)
		require.True(t, ok)
		sol, err := opt.Solve(context.Background(), g, optimizer.Track{
			Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 5,
		})
		require.NoError(t, err)
		assert.False(t, sol.Success, "kind=%s expected infeasible", kind)
		assert.Equal(t, optimizer.ReasonInfeasible, sol.Reason)
	}
}

func TestILP_DominatesHeuristicOnCost(t *testing.T) {
	g := threeNodeGraph(t)
	ilp, _ := optimizer.Get(optimizer.IntegerLinearProgram)
	heur, _ := optimizer.Get(optimizer.MulticastHeuristic)

	track := optimizer.Track{Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100}
	ilpSol, err := ilp.Solve(context.Background(), g, track)
	require.NoError(t, err)
	heurSol, err := heur.Solve(context.Background(), g, track)
	require.NoError(t, err)

	require.True(t, ilpSol.Success)
	require.True(t, heurSol.Success)
	assert.LessOrEqual(t, ilpSol.Cost, heurSol.Cost+1e-9)
}

func TestReducedNetworkUnaffectedByIrrelevantNode(t *testing.T) {
	g := threeNodeGraph(t)
	g.AddNode(graph.Node{ID: "D"})
	require.NoError(t, g.AddEdge(graph.Edge{From: "A", To: "D", Latency: 10000, Cost: 1}))

	reduced := g.Copy()
	reduced.RemoveNodesNotIn(map[string]struct{}{"A": {}, "B": {}, "C": {}})

	opt, ok := optimizer.Get(optimizer.IntegerLinearProgram)
	require.True(t, ok)
	track := optimizer.Track{Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100}

	sol, err := opt.Solve(context.Background(), reduced, track)
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 11.0, sol.Cost)
	assert.NotContains(t, sortedLinks(t, sol.UsedLinks), graph.Link{From: "A", To: "D"})
}

func TestSolveMulti_AdaptedSumsCostAndMaxDelay(t *testing.T) {
	g := threeNodeGraph(t)
	reqs := []optimizer.TrackRequest{
		{Namespace: "track-1", Kind: optimizer.DirectLinkTree, Track: optimizer.Track{
			Publisher: "A", Subscribers: []string{"B"}, DelayBudget: 100,
		}},
		{Namespace: "track-2", Kind: optimizer.MulticastHeuristic, Track: optimizer.Track{
			Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
		}},
	}

	sol, err := optimizer.SolveMulti(context.Background(), g, reqs, optimizer.Adapted)
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 10.0+11.0, sol.Cost)
	assert.Equal(t, 11.0, sol.MaxDelay)
	require.Len(t, sol.Tracks, 2)
}

func TestSolveMulti_NativeUsesExactOptimizer(t *testing.T) {
	g := threeNodeGraph(t)
	reqs := []optimizer.TrackRequest{
		{Namespace: "track-1", Track: optimizer.Track{
			Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 100,
		}},
	}

	sol, err := optimizer.SolveMulti(context.Background(), g, reqs, optimizer.Native)
	require.NoError(t, err)
	require.True(t, sol.Success)
	assert.Equal(t, 11.0, sol.Cost)
}

func TestSolveMulti_AnyFailureFailsTheWhole(t *testing.T) {
	g := threeNodeGraph(t)
	reqs := []optimizer.TrackRequest{
		{Namespace: "track-1", Kind: optimizer.DirectLinkTree, Track: optimizer.Track{
			Publisher: "A", Subscribers: []string{"B"}, DelayBudget: 100,
		}},
		{Namespace: "track-2", Kind: optimizer.DirectLinkTree, Track: optimizer.Track{
			Publisher: "A", Subscribers: []string{"B", "C"}, DelayBudget: 5,
		}},
	}

	sol, err := optimizer.SolveMulti(context.Background(), g, reqs, optimizer.Adapted)
	require.NoError(t, err)
	assert.False(t, sol.Success)
	assert.Equal(t, 0.0, sol.Cost)
}
