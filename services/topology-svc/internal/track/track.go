// Package track implements the track registry's per-namespace unit (§4.2,
// §3): a publisher, its delay budget, and the current subscriber set, plus
// the derived unit-demand streams the ILP-family optimizers consume.
//
// A Track's own subscriber set is only ever mutated by its owning service
// under the per-namespace lock described in §5; this package provides the
// data and the lock, not the optimize-then-commit orchestration (that lives
// in services/topology-svc/internal/service, which needs visibility into
// the optimizer and the solution cache).
package track

import (
	"sort"
	"sync"
)

// Stream is one subscriber's unit demand from the publisher, per §3: the
// reliability vector is -1 at the publisher, +1 at the subscriber, 0
// elsewhere, so a Stream only needs to carry the two endpoints.
type Stream struct {
	Publisher  string
	Subscriber string
}

// ErrNotSubscribed is returned by RemoveSubscriber when the node is absent.
type ErrNotSubscribed struct{ Subscriber string }

func (e *ErrNotSubscribed) Error() string {
	return "track: subscriber " + e.Subscriber + " not present"
}

// Track holds one namespace's publisher, delay budget, and subscriber set.
// Mu guards the whole read-mutate-optimize-write cycle described in §5; it
// is exported so the owning service can hold it across that cycle without
// this package needing to know about optimizers or caches.
type Track struct {
	Mu sync.Mutex

	Namespace   string
	Publisher   string
	DelayBudget float64

	subscribers map[string]struct{}
}

// New creates a track with an empty subscriber set.
func New(namespace, publisher string, delayBudget float64) *Track {
	return &Track{
		Namespace:   namespace,
		Publisher:   publisher,
		DelayBudget: delayBudget,
		subscribers: make(map[string]struct{}),
	}
}

// Subscribers returns the current subscriber set, sorted for determinism.
// Callers must hold Mu whenever another goroutine may mutate the set: the
// read is not synchronized, and reading the map during a mutation is a
// data race.
func (t *Track) Subscribers() []string {
	out := make([]string, 0, len(t.subscribers))
	for s := range t.subscribers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether id is already a subscriber.
func (t *Track) IsSubscribed(id string) bool {
	_, ok := t.subscribers[id]
	return ok
}

// AddSubscriber adds id to the subscriber set. Idempotent: returns false if
// id was already present (§4.2).
func (t *Track) AddSubscriber(id string) bool {
	if _, ok := t.subscribers[id]; ok {
		return false
	}
	t.subscribers[id] = struct{}{}
	return true
}

// RemoveSubscriber removes id, failing with ErrNotSubscribed if absent.
func (t *Track) RemoveSubscriber(id string) error {
	if _, ok := t.subscribers[id]; !ok {
		return &ErrNotSubscribed{Subscriber: id}
	}
	delete(t.subscribers, id)
	return nil
}

// WithTrialSubscriber returns the streams that would result from adding id
// to the current subscriber set, without mutating it — the "local working
// copy" §5 requires optimizers to run against before any commit.
func (t *Track) WithTrialSubscriber(id string) []Stream {
	subs := t.Subscribers()
	found := false
	for _, s := range subs {
		if s == id {
			found = true
			break
		}
	}
	if !found {
		subs = append(subs, id)
		sort.Strings(subs)
	}
	return streamsFor(t.Publisher, subs)
}

// Streams returns the current set of unit-demand streams, regenerated from
// the live subscriber set on every call per Design Notes §9 ("regenerate
// streams as a view over current subscribers at each solve; do not persist
// them").
func (t *Track) Streams() []Stream {
	return streamsFor(t.Publisher, t.Subscribers())
}

func streamsFor(publisher string, subscribers []string) []Stream {
	out := make([]Stream, 0, len(subscribers))
	for _, s := range subscribers {
		out = append(out, Stream{Publisher: publisher, Subscriber: s})
	}
	return out
}
