package service_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topology/pkg/apperror"
	"topology/pkg/logger"
	"topology/services/topology-svc/internal/graph"
	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/service"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

func triangleGraph(t *testing.T) *graph.Graph {
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

func newService(t *testing.T, kind optimizer.Kind) *service.Service {
	t.Helper()
	return service.New(triangleGraph(t), kind, 0, nil, nil)
}

func TestCreateTrack_BadInputCases(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()

	err := svc.CreateTrack(ctx, "ns1", "", 100)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBadInput, apperror.Code(err))

	err = svc.CreateTrack(ctx, "ns1", "Z", 100)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBadInput, apperror.Code(err))

	err = svc.CreateTrack(ctx, "ns1", "A", -1)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBadInput, apperror.Code(err))
}

func TestCreateTrack_ReplacesAndInvalidatesCache(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	_, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))
	_, err = svc.GetTopology(ctx, "ns1")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))
}

func TestSubscribe_PublisherCannotSubscribeToOwnTrack(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	_, err := svc.Subscribe(ctx, "ns1", "A", service.SubscribeOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBadInput, apperror.Code(err))
}

func TestSubscribe_UnknownNamespace(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	_, err := svc.Subscribe(context.Background(), "missing", "B", service.SubscribeOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))
}

func TestSubscribe_ReSubscribeIsIdempotentUntilMembershipChanges(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	hop1, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A", hop1)

	hop2, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeAlreadyExists, apperror.Code(err))
	assert.Equal(t, "A", hop2)
}

func TestSubscribe_FailedOptimizationDoesNotMutateSubscriberSet(t *testing.T) {
	svc := newService(t, optimizer.DirectLinkTree)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 5))

	_, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInfeasible, apperror.Code(err))

	// Since the trial subscriber was never committed, re-running the same
	// solve with a higher budget track must see an empty subscriber set,
	// not an already-subscribed B.
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))
	hop, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A", hop)
}

func TestUnsubscribe_InvalidatesCache(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))
	_, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "ns1", "B"))

	_, err = svc.GetTopology(ctx, "ns1")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))
}

func TestUnsubscribe_UnknownSubscriberOrTrack(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	err := svc.Unsubscribe(ctx, "ns1", "B")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))

	err = svc.Unsubscribe(ctx, "missing", "B")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))
}

func TestUnsubscribeThenResubscribe_RestoresIdenticalTree(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	_, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{})
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "ns1", "C", service.SubscribeOptions{})
	require.NoError(t, err)
	firstSol, err := svc.GetTopology(ctx, "ns1")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "ns1", "C"))
	hop, err := svc.Subscribe(ctx, "ns1", "C", service.SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "B", hop)

	secondSol, err := svc.GetTopology(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, firstSol.Cost, secondSol.Cost)
	assert.ElementsMatch(t, firstSol.UsedLinks, secondSol.UsedLinks)
}

func TestSubscribe_ReduceNetworkIgnoresIrrelevantNode(t *testing.T) {
	g := triangleGraph(t)
	g.AddNode(graph.Node{ID: "D"})
	require.NoError(t, g.AddEdge(graph.Edge{From: "A", To: "D", Latency: 10000, Cost: 1}))

	svc := service.New(g, optimizer.IntegerLinearProgram, 0, nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.CreateTrack(ctx, "ns1", "A", 100))

	_, err := svc.Subscribe(ctx, "ns1", "B", service.SubscribeOptions{ReduceNetwork: true})
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "ns1", "C", service.SubscribeOptions{ReduceNetwork: true})
	require.NoError(t, err)

	sol, err := svc.GetTopology(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 11.0, sol.Cost)
	for _, l := range sol.UsedLinks {
		assert.NotEqual(t, "D", l.To)
	}
}

func TestGetTrack_UnknownNamespace(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	_, _, err := svc.GetTrack("missing")
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.Code(err))
}

func TestListTracks_Empty(t *testing.T) {
	svc := newService(t, optimizer.MulticastHeuristic)
	assert.Empty(t, svc.ListTracks())
}
