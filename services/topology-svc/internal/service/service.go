package service

import (
	"context"
	"time"

	"topology/pkg/apperror"
	"topology/pkg/cache"
	"topology/pkg/logger"
	"topology/pkg/metrics"
	"topology/services/topology-svc/internal/graph"
	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/track"
)

// Service is the topology service's orchestration layer: it owns the base
// graph, the track registry, and the solution cache, and implements the
// five operations of §4.5 with the concurrency discipline of §5 and the
// error taxonomy of §7.
type Service struct {
	graph            *graph.Graph
	registry         *Registry
	defaultOptimizer optimizer.Kind
	softDeadline     time.Duration
	trackCache       *cache.TrackCache // optional; nil disables the write-through mirror (written on each successful solve, never read back)
	metrics          *metrics.Metrics
	graphHash        string
}

// New constructs a Service over an immutable base graph. trackCache may be
// nil to run without the optional shared cache tier (§6 AMBIENT STACK);
// the in-memory registry is always authoritative since this service's
// scope excludes persistence beyond in-memory state.
func New(g *graph.Graph, defaultOptimizer optimizer.Kind, softDeadline time.Duration, trackCache *cache.TrackCache, m *metrics.Metrics) *Service {
	if softDeadline <= 0 {
		softDeadline = 5 * time.Second
	}
	s := &Service{
		graph:            g,
		registry:         NewRegistry(),
		defaultOptimizer: defaultOptimizer,
		softDeadline:     softDeadline,
		trackCache:       trackCache,
		metrics:          m,
	}
	s.graphHash = cache.GraphHash(canonicalGraph(g))
	return s
}

func canonicalGraph(g *graph.Graph) cache.GraphHashInput {
	nodes := g.Nodes()
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	edges := g.Edges()
	hashEdges := make([]cache.GraphHashEdge, 0, len(edges))
	for _, e := range edges {
		hashEdges = append(hashEdges, cache.GraphHashEdge{From: e.From, To: e.To, Latency: e.Latency, Cost: e.Cost})
	}
	return cache.GraphHashInput{NodeIDs: ids, Edges: hashEdges}
}

// Graph exposes the base graph read-only, for the GET /network handler.
func (s *Service) Graph() *graph.Graph { return s.graph }

// Registry exposes the track registry read-only, for the GET /tracks handler.
func (s *Service) Registry() *Registry { return s.registry }

// CreateTrack implements create_track (§4.5): installs a namespace with an
// empty subscriber set, replacing and invalidating any prior track under
// the same namespace.
func (s *Service) CreateTrack(ctx context.Context, namespace, publisher string, delayBudget float64) error {
	if publisher == "" {
		return apperror.New(apperror.CodeBadInput, "publisher is required").WithField("publisher")
	}
	if !s.graph.HasNode(publisher) {
		return apperror.Wrap(apperror.ErrNodeNotFound, apperror.CodeBadInput, "publisher not found in graph").WithField("publisher").WithDetails("publisher", publisher)
	}
	if delayBudget < 0 {
		return apperror.New(apperror.CodeBadInput, "delay_budget must be >= 0").WithField("delay_budget")
	}

	s.registry.CreateOrReplace(namespace, publisher, delayBudget)
	if s.trackCache != nil {
		_, _ = s.trackCache.InvalidateNamespace(ctx, namespace)
	}
	s.refreshGauges()
	return nil
}

// GetTrack implements get_track: returns publisher/delay_budget or NotFound.
func (s *Service) GetTrack(namespace string) (publisher string, delayBudget float64, err error) {
	e, ok := s.registry.Get(namespace)
	if !ok {
		return "", 0, apperror.ErrTrackNotFound.Clone().WithDetails("namespace", namespace)
	}
	e.track.Mu.Lock()
	defer e.track.Mu.Unlock()
	return e.track.Publisher, e.track.DelayBudget, nil
}

// ListTracks implements GET /tracks.
func (s *Service) ListTracks() []TrackSummary {
	return s.registry.List()
}

// SubscribeOptions configures one subscribe() call (§6 query params).
type SubscribeOptions struct {
	Kind          optimizer.Kind
	ReduceNetwork bool
}

// Subscribe implements subscribe (§4.5, §7): it optimizes against a trial
// subscriber set and only commits the new subscriber and the solution cache
// once the optimizer succeeds, per the add-on-success Open Question
// decision. Already-subscribed nodes return the existing next-hop wrapped
// in an AlreadyExists error (304).
func (s *Service) Subscribe(ctx context.Context, namespace, subscriber string, opts SubscribeOptions) (nextHop string, err error) {
	e, ok := s.registry.Get(namespace)
	if !ok {
		return "", apperror.ErrTrackNotFound.Clone().WithDetails("namespace", namespace)
	}

	// Deferred before the lock so it runs after the unlock: Counts takes
	// every track's lock, this one included.
	defer s.refreshGauges()
	e.track.Mu.Lock()
	defer e.track.Mu.Unlock()

	if subscriber == e.track.Publisher {
		return "", apperror.ErrPublisherIsSubscriber.Clone().WithDetails("namespace", namespace)
	}

	if e.track.IsSubscribed(subscriber) {
		if e.hasSolution {
			if hop, ok := nextHopFor(e.solution, subscriber); ok {
				return hop, apperror.ErrAlreadySubscribed.Clone().WithDetails("next_hop", hop)
			}
		}
		return "", apperror.ErrAlreadySubscribed
	}

	trialStreams := e.track.WithTrialSubscriber(subscriber)
	trialSubs := make([]string, 0, len(trialStreams))
	for _, st := range trialStreams {
		trialSubs = append(trialSubs, st.Subscriber)
	}

	kind := opts.Kind
	if kind == "" {
		kind = s.defaultOptimizer
	}
	opt, ok := optimizer.Get(kind)
	if !ok {
		return "", apperror.New(apperror.CodeBadInput, "unknown optimizer_type").WithField("optimizer_type").WithDetails("optimizer_type", string(kind))
	}

	workingGraph := s.graph
	if opts.ReduceNetwork {
		keep := make(map[string]struct{}, len(trialSubs)+1)
		keep[e.track.Publisher] = struct{}{}
		for _, sub := range trialSubs {
			keep[sub] = struct{}{}
		}
		reduced := s.graph.Copy()
		reduced.RemoveNodesNotIn(keep)
		workingGraph = reduced
	}

	solveCtx, cancel := context.WithTimeout(ctx, s.softDeadline)
	defer cancel()

	start := time.Now()
	sol, solveErr := opt.Solve(solveCtx, workingGraph, optimizer.Track{
		Publisher:   e.track.Publisher,
		Subscribers: trialSubs,
		DelayBudget: e.track.DelayBudget,
	})
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordSolveOperation(string(kind), solveErr == nil && sol.Success, duration)
	}
	if solveErr != nil {
		logger.WithOptimizer(string(kind)).Error("optimizer solve failed", "namespace", namespace, "error", solveErr)
		return "", apperror.Wrap(solveErr, apperror.CodeInfeasible, "optimizer error")
	}

	if !sol.Success {
		if sol.Reason == optimizer.ReasonTimeout {
			return "", apperror.ErrTimeout.Clone().WithDetails("reason", "timeout")
		}
		return "", apperror.ErrOptimizerInfeasible
	}

	// Commit: the optimizer succeeded against the trial set, so the
	// subscriber addition and the cached solution take effect together
	// (§7: optimize on a trial set, commit on success).
	e.track.AddSubscriber(subscriber)
	e.hasSolution = true
	e.solution = sol
	e.solutionKind = kind

	if s.metrics != nil {
		s.metrics.RecordSolution(namespace, string(kind), sol.Cost, sol.MaxDelay)
	}
	if s.trackCache != nil {
		s.writeThroughCache(ctx, namespace, kind, sol)
	}

	hop, ok := nextHopFor(sol, subscriber)
	if !ok {
		return "", apperror.ErrNoNextHop.Clone().WithDetails("namespace", namespace).WithDetails("subscriber", subscriber)
	}
	return hop, nil
}

// Unsubscribe implements unsubscribe (§4.5): removes the subscriber and
// invalidates the cached solution.
func (s *Service) Unsubscribe(ctx context.Context, namespace, subscriber string) error {
	e, ok := s.registry.Get(namespace)
	if !ok {
		return apperror.ErrTrackNotFound.Clone().WithDetails("namespace", namespace)
	}

	defer s.refreshGauges() // runs after the unlock below
	e.track.Mu.Lock()
	defer e.track.Mu.Unlock()

	if err := e.track.RemoveSubscriber(subscriber); err != nil {
		return apperror.ErrSubscriberNotFound.Clone().WithDetails("namespace", namespace).WithDetails("subscriber", subscriber)
	}

	e.hasSolution = false
	e.solution = optimizer.SingleTrackSolution{}
	if s.trackCache != nil {
		_, _ = s.trackCache.InvalidateNamespace(ctx, namespace)
	}
	return nil
}

// GetTopology implements get_topology: returns the cached solution, or
// NotFound if the namespace has never solved successfully.
func (s *Service) GetTopology(ctx context.Context, namespace string) (optimizer.SingleTrackSolution, error) {
	e, ok := s.registry.Get(namespace)
	if !ok {
		return optimizer.SingleTrackSolution{}, apperror.ErrTrackNotFound.Clone().WithDetails("namespace", namespace)
	}

	e.track.Mu.Lock()
	defer e.track.Mu.Unlock()

	if !e.hasSolution {
		return optimizer.SingleTrackSolution{}, apperror.New(apperror.CodeNotFound, "no topology computed for this track").WithDetails("namespace", namespace)
	}
	if s.metrics != nil {
		s.metrics.RecordCacheHit(namespace)
	}
	return e.solution, nil
}

func nextHopFor(sol optimizer.SingleTrackSolution, subscriber string) (string, bool) {
	for _, l := range sol.UsedLinks {
		if l.To == subscriber {
			return l.From, true
		}
	}
	return "", false
}

func (s *Service) writeThroughCache(ctx context.Context, namespace string, kind optimizer.Kind, sol optimizer.SingleTrackSolution) {
	links := make([]cache.CachedLink, 0, len(sol.UsedLinks))
	for _, l := range sol.UsedLinks {
		links = append(links, cache.CachedLink{From: l.From, To: l.To})
	}
	key := cache.BuildTrackSolveKey(namespace, string(kind), s.graphHash)
	cached := &cache.CachedTrackSolution{
		Success:   sol.Success,
		Cost:      sol.Cost,
		MaxDelay:  sol.MaxDelay,
		UsedLinks: links,
	}
	if err := s.trackCache.Set(ctx, key, cached, 0); err != nil {
		logger.WithNamespace(namespace).Warn("failed to write solution to cache", "error", err)
	}
}

func (s *Service) refreshGauges() {
	if s.metrics == nil {
		return
	}
	total, perNamespace := s.registry.Counts()
	s.metrics.SetTrackGauges(total, perNamespace)
}
