package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topology/services/topology-svc/internal/graph"
	"topology/services/topology-svc/internal/handlers"
	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/service"
)

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

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(triangleGraph(t), optimizer.MulticastHeuristic, 0, nil, nil)
	return handlers.New(svc).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestCreateTrack_ThenGetTrack(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/tracks/ns1", map[string]any{"publisher": "A", "delay_budget": 100.0})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/tracks/ns1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A", got["publisher"])
	assert.Equal(t, 100.0, got["delay_budget"])
}

func TestGetTrack_UnknownNamespace404(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/tracks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribe_StarVsTreeTradeoff(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, http.MethodPost, "/tracks/ns1", map[string]any{"publisher": "A", "delay_budget": 100.0})

	rec := doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hop string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hop))
	assert.Equal(t, "A", hop)

	rec = doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/C", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hop))
	assert.Equal(t, "B", hop)

	rec = doJSON(t, h, http.MethodGet, "/tracks/ns1/topology", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var topo map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topo))
	assert.Equal(t, 11.0, topo["cost"])
	assert.Equal(t, 11.0, topo["max_delay"])
}

func TestSubscribe_AlreadySubscribedReturns304WithNextHop(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, http.MethodPost, "/tracks/ns1", map[string]any{"publisher": "A", "delay_budget": 100.0})
	doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/B", nil)

	rec := doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/B", nil)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A", body["details"].(map[string]any)["next_hop"])
}

func TestSubscribe_InfeasibleReturns406(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, http.MethodPost, "/tracks/ns1", map[string]any{"publisher": "A", "delay_budget": 5.0})

	rec := doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/B", nil)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestSubscribe_UnknownTrack404(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/tracks/nope/subscription/B", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnsubscribe_ThenResubscribeMatchesOriginal(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, http.MethodPost, "/tracks/ns1", map[string]any{"publisher": "A", "delay_budget": 100.0})
	doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/B", nil)
	doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/C", nil)

	rec := doJSON(t, h, http.MethodDelete, "/tracks/ns1/subscription/C", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/tracks/ns1/subscription/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/tracks/ns1/subscription/C", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hop string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hop))
	assert.Equal(t, "B", hop)
}

func TestGetNetwork_ListsNodesAndEdges(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Nodes, 3)
	assert.Len(t, resp.Edges, 6)
}

func TestListTracks_SortedByNamespace(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, http.MethodPost, "/tracks/zzz", map[string]any{"publisher": "A", "delay_budget": 100.0})
	doJSON(t, h, http.MethodPost, "/tracks/aaa", map[string]any{"publisher": "A", "delay_budget": 50.0})

	rec := doJSON(t, h, http.MethodGet, "/tracks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 50.0, out[0]["delay_budget"])
	assert.Equal(t, 100.0, out[1]["delay_budget"])
}
