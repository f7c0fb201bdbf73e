// Package handlers implements the topology service's HTTP surface (§6): the
// seven plain-JSON routes that create/read tracks, subscribe/unsubscribe,
// and read back the network and cached topology. One Handler struct wraps
// the service layer, JSON in and out, errors mapped through a single
// taxonomy via pkg/apperror.HTTPStatus.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"topology/pkg/apperror"
	"topology/pkg/logger"
	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/service"
)

// Handler wraps the service layer for HTTP dispatch.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler over svc.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the service's ServeMux, using Go's method+pattern routing
// (method-space matches §6's table exactly, one route per method+path pair).
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /network", h.getNetwork)
	mux.HandleFunc("GET /tracks", h.listTracks)
	mux.HandleFunc("POST /tracks/{ns}", h.createTrack)
	mux.HandleFunc("GET /tracks/{ns}", h.getTrack)
	mux.HandleFunc("GET /tracks/{ns}/topology", h.getTopology)
	mux.HandleFunc("POST /tracks/{ns}/subscription/{sub}", h.subscribe)
	mux.HandleFunc("DELETE /tracks/{ns}/subscription/{sub}", h.unsubscribe)
	return mux
}

// networkNode and networkEdge mirror §6's GET /network response shape.
type networkNode struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

type networkEdge struct {
	Src        string         `json:"src"`
	Dst        string         `json:"dst"`
	Attributes map[string]any `json:"attributes"`
}

type networkResponse struct {
	Nodes []networkNode `json:"nodes"`
	Edges []networkEdge `json:"edges"`
}

func (h *Handler) getNetwork(w http.ResponseWriter, r *http.Request) {
	g := h.svc.Graph()
	resp := networkResponse{}
	for _, n := range g.Nodes() {
		resp.Nodes = append(resp.Nodes, networkNode{
			Name:       n.ID,
			Attributes: map[string]any{"lat": n.Lat, "lon": n.Lon},
		})
	}
	for _, e := range g.Edges() {
		resp.Edges = append(resp.Edges, networkEdge{
			Src:        e.From,
			Dst:        e.To,
			Attributes: map[string]any{"latency": e.Latency, "cost": e.Cost},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type trackSummaryResponse struct {
	Publisher   string  `json:"publisher"`
	DelayBudget float64 `json:"delay_budget"`
}

func (h *Handler) listTracks(w http.ResponseWriter, r *http.Request) {
	summaries := h.svc.ListTracks()
	out := make([]trackSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, trackSummaryResponse{Publisher: s.Publisher, DelayBudget: s.DelayBudget})
	}
	writeJSON(w, http.StatusOK, out)
}

type createTrackRequest struct {
	Publisher   string  `json:"publisher"`
	DelayBudget float64 `json:"delay_budget"`
}

func (h *Handler) createTrack(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")

	var req createTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.CodeBadInput, "malformed JSON body"))
		return
	}

	if err := h.svc.CreateTrack(r.Context(), ns, req.Publisher, req.DelayBudget); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) getTrack(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")
	publisher, delayBudget, err := h.svc.GetTrack(ns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trackSummaryResponse{Publisher: publisher, DelayBudget: delayBudget})
}

type topologyResponse struct {
	Cost      float64     `json:"cost"`
	MaxDelay  float64     `json:"max_delay"`
	UsedLinks [][2]string `json:"used_links"`
}

func (h *Handler) getTopology(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")
	sol, err := h.svc.GetTopology(r.Context(), ns)
	if err != nil {
		writeError(w, err)
		return
	}
	links := make([][2]string, 0, len(sol.UsedLinks))
	for _, l := range sol.UsedLinks {
		links = append(links, [2]string{l.From, l.To})
	}
	writeJSON(w, http.StatusOK, topologyResponse{Cost: sol.Cost, MaxDelay: sol.MaxDelay, UsedLinks: links})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")
	sub := r.PathValue("sub")

	opts := service.SubscribeOptions{
		Kind: optimizer.Kind(r.URL.Query().Get("optimizer_type")),
	}
	if reduce := r.URL.Query().Get("reduce_network"); reduce != "" {
		v, err := strconv.ParseBool(reduce)
		if err != nil {
			writeError(w, apperror.New(apperror.CodeBadInput, "reduce_network must be true or false").WithField("reduce_network"))
			return
		}
		opts.ReduceNetwork = v
	}

	nextHop, err := h.svc.Subscribe(r.Context(), ns, sub, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextHop)
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ns := r.PathValue("ns")
	sub := r.PathValue("sub")
	if err := h.svc.Unsubscribe(r.Context(), ns, sub); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response body", "error", err)
	}
}

// errorResponse is the body written alongside every non-2xx status,
// including 304 (§9 Open Question: AlreadyExists carries the next-hop in
// its details). net/http does not send a body with a 304, so on a real
// connection the encode fails, a warning is logged, and the client receives
// the status without the next-hop.
type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	body := errorResponse{Code: string(apperror.Code(err)), Message: err.Error()}

	var appErr *apperror.Error
	if e, ok := err.(*apperror.Error); ok {
		appErr = e
	}
	if appErr != nil && len(appErr.Details) > 0 {
		body.Details = appErr.Details
	}
	writeJSON(w, status, body)
}
