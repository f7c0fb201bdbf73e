// Package service implements the topology service's memoizing front end
// (§4.5): the track registry, the per-namespace optimize-on-trial/
// commit-on-success orchestration, and the solution cache invalidation
// discipline described in §5 and §7.
package service

import (
	"sort"
	"sync"

	"topology/services/topology-svc/internal/optimizer"
	"topology/services/topology-svc/internal/track"
)

// namespaceEntry bundles one track with the cached SingleTrackSolution it
// was last solved with. Track.Mu guards the whole read-mutate-optimize-write
// cycle for this namespace (§5); the cache fields below live under the same
// lock so they can never be observed out of sync with the subscriber set
// that produced them.
type namespaceEntry struct {
	track *track.Track

	hasSolution  bool
	solution     optimizer.SingleTrackSolution
	solutionKind optimizer.Kind
}

// Registry is the process-wide map of namespace -> track, guarded by a
// registry-level lock for membership changes (create). An operation on an
// existing entry holds the registry read lock only for the lookup in Get and
// then works under that entry's own lock (namespaceEntry.track.Mu), so
// across-namespace operations do not serialize on one another (§5 "across
// namespaces: no ordering guarantee is promised"). Counts is the one method
// that takes entry locks, one at a time, while holding the registry read
// lock; callers must not hold an entry lock when calling it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*namespaceEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*namespaceEntry)}
}

// CreateOrReplace installs a fresh track under namespace, discarding any
// previous track and its cached solution (§4.5: "re-creating with the same
// namespace replaces the track and invalidates its cached solution").
func (r *Registry) CreateOrReplace(namespace, publisher string, delayBudget float64) *namespaceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &namespaceEntry{track: track.New(namespace, publisher, delayBudget)}
	r.entries[namespace] = e
	return e
}

// Get returns the entry for namespace, if any.
func (r *Registry) Get(namespace string) (*namespaceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[namespace]
	return e, ok
}

// TrackSummary is the publisher/delay_budget view returned by GET /tracks.
type TrackSummary struct {
	Namespace   string
	Publisher   string
	DelayBudget float64
}

// List returns every track's summary, sorted by namespace for deterministic
// responses.
func (r *Registry) List() []TrackSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TrackSummary, 0, len(r.entries))
	for ns, e := range r.entries {
		out = append(out, TrackSummary{Namespace: ns, Publisher: e.track.Publisher, DelayBudget: e.track.DelayBudget})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}

// Counts returns the total track count and per-namespace subscriber counts,
// for the metrics gauges.
func (r *Registry) Counts() (total int, perNamespace map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perNamespace = make(map[string]int, len(r.entries))
	for ns, e := range r.entries {
		e.track.Mu.Lock()
		perNamespace[ns] = len(e.track.Subscribers())
		e.track.Mu.Unlock()
	}
	return len(r.entries), perNamespace
}
