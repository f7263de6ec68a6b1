// Package repository implements aggregate reconstruction (spec §4.4): replay
// from a snapshot-seeded point forward, an optional bounded LRU cache of
// live aggregates, and safe concurrent "fast-forward" of a cached aggregate
// to the latest version using only newly appended events.
package repository

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/store"
)

// Projector folds a sequence of historical events (and, first, an optional
// snapshot) into an aggregate. It is supplied once per aggregate type; the
// default projector used by examples/bank simply calls a type-specific
// Mutator in order.
type Projector func(snapshot domain.Aggregate, events []domain.Event) (domain.Aggregate, error)

// Repository reconstructs aggregates from an EventStore, optionally
// consulting a snapshot EventStore first, and optionally caching live
// aggregates to avoid replaying from genesis on every Get.
type Repository struct {
	events    *store.EventStore
	snapshots *store.EventStore // optional, nil if snapshotting disabled
	project   Projector

	cacheMu       sync.Mutex
	cache         *lru.Cache[domain.AggregateID, *cacheEntry]
	cacheFastFwd  bool
	installing    map[domain.AggregateID]*sync.Mutex
	installingMu  sync.Mutex
}

type cacheEntry struct {
	mu        sync.Mutex
	aggregate domain.Aggregate
}

// New builds a Repository. snapshots may be nil (snapshotting disabled).
// cacheSize <= 0 disables the cache entirely; fastForward controls whether
// a cache hit is brought up to date with newly appended events rather than
// replayed from scratch.
func New(events *store.EventStore, snapshots *store.EventStore, project Projector, cacheSize int, fastForward bool) (*Repository, error) {
	r := &Repository{
		events:       events,
		snapshots:    snapshots,
		project:      project,
		cacheFastFwd: fastForward,
		installing:   make(map[domain.AggregateID]*sync.Mutex),
	}
	if cacheSize > 0 {
		c, err := lru.New[domain.AggregateID, *cacheEntry](cacheSize)
		if err != nil {
			return nil, &domain.ProgrammingError{Reason: "construct aggregate cache: " + err.Error()}
		}
		r.cache = c
	}
	return r, nil
}

// Get reconstructs the aggregate with the given id. If version is non-nil,
// replay stops at that version (the cache is bypassed, since a cached
// aggregate always holds the latest version). Returns
// *domain.AggregateNotFoundError if no events exist for the id up to the
// requested version.
func (r *Repository) Get(ctx context.Context, id domain.AggregateID, version *uint64) (domain.Aggregate, error) {
	if version != nil || r.cache == nil {
		return r.replay(ctx, id, version)
	}
	return r.getCached(ctx, id)
}

// getCached returns the latest version of the aggregate, using the cache
// when possible. Only one goroutine at a time performs a fast-forward (or
// an initial replay) for a given aggregate id; concurrent callers for the
// same id block on that installer rather than duplicating work, per spec
// §4.4's "at most one installer per version transition" requirement.
func (r *Repository) getCached(ctx context.Context, id domain.AggregateID) (domain.Aggregate, error) {
	installLock := r.installerFor(id)
	installLock.Lock()
	defer installLock.Unlock()

	r.cacheMu.Lock()
	entry, hit := r.cache.Get(id)
	r.cacheMu.Unlock()

	if !hit {
		aggregate, err := r.replay(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		entry = &cacheEntry{aggregate: aggregate}
		r.cacheMu.Lock()
		r.cache.Add(id, entry)
		r.cacheMu.Unlock()
		return aggregate, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !r.cacheFastFwd {
		return entry.aggregate, nil
	}

	gt := entry.aggregate.Version()
	newEvents, err := r.events.Get(ctx, id, recorder.SelectOptions{GT: &gt})
	if err != nil {
		return nil, err
	}
	if len(newEvents) == 0 {
		return entry.aggregate, nil
	}
	updated, err := r.project(entry.aggregate, newEvents)
	if err != nil {
		return nil, err
	}
	entry.aggregate = updated
	return updated, nil
}

func (r *Repository) installerFor(id domain.AggregateID) *sync.Mutex {
	r.installingMu.Lock()
	defer r.installingMu.Unlock()
	m, ok := r.installing[id]
	if !ok {
		m = &sync.Mutex{}
		r.installing[id] = m
	}
	return m
}

// replay reconstructs the aggregate from a snapshot (if available and
// snapshotting is enabled) followed by every subsequent event up to
// version, per original_source's Repository.get.
func (r *Repository) replay(ctx context.Context, id domain.AggregateID, version *uint64) (domain.Aggregate, error) {
	var snapshot domain.Aggregate
	var gt *uint64

	if r.snapshots != nil {
		one := 1
		snaps, err := r.snapshots.Get(ctx, id, recorder.SelectOptions{Desc: true, Limit: &one, LTE: version})
		if err != nil {
			return nil, err
		}
		if len(snaps) > 0 {
			snap, ok := snaps[0].(*domain.Snapshot)
			if !ok {
				return nil, &domain.ProgrammingError{Reason: "snapshot store returned a non-snapshot event"}
			}
			v := snap.OriginatorVersion()
			gt = &v
			loaded, err := r.project(nil, []domain.Event{snap})
			if err != nil {
				return nil, err
			}
			snapshot = loaded
		}
	}

	events, err := r.events.Get(ctx, id, recorder.SelectOptions{GT: gt, LTE: version})
	if err != nil {
		return nil, err
	}
	if snapshot == nil && len(events) == 0 {
		return nil, &domain.AggregateNotFoundError{ID: id, Version: version}
	}

	aggregate, err := r.project(snapshot, events)
	if err != nil {
		return nil, err
	}
	if aggregate == nil {
		return nil, &domain.AggregateNotFoundError{ID: id, Version: version}
	}
	return aggregate, nil
}

// Evict removes id from the cache, if present, so the next Get replays it
// from the store. No code in this module calls it.
func (r *Repository) Evict(id domain.AggregateID) {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	r.cache.Remove(id)
	r.cacheMu.Unlock()
}
