// Package store implements the typed EventStore facade (spec §4.3): a thin
// layer over a Mapper and a Recorder that knows nothing about replay,
// ordering guarantees, or gap detection beyond what the Recorder already
// promises. Repository builds aggregate replay on top of this; Store itself
// only ever maps events to/from StoredItems and forwards to the Recorder.
package store

import (
	"context"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/recorder"
)

// EventStore maps domain events to StoredItems and persists them through an
// AggregateRecorder. It performs no ordering or gap-detection logic of its
// own — that is the Recorder's contract to uphold.
type EventStore struct {
	mapper   *mapper.Mapper
	recorder recorder.AggregateRecorder
}

// New builds an EventStore over the given Mapper and Recorder.
func New(m *mapper.Mapper, r recorder.AggregateRecorder) *EventStore {
	return &EventStore{mapper: m, recorder: r}
}

// Put maps and atomically persists a batch of events, which may span
// multiple aggregates. A duplicate (originator_id, originator_version) pair
// anywhere in the batch fails the whole call with *domain.IntegrityError and
// leaves no visible effect, per spec §4.1.
func (s *EventStore) Put(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	items, err := s.ToStoredBatch(events)
	if err != nil {
		return err
	}
	return s.recorder.InsertEvents(ctx, items)
}

// ToStoredBatch maps a batch of domain events to their wire form without
// persisting them — used by process.Follower, which must insert the batch
// together with a tracking row through recorder.ProcessRecorder directly.
func (s *EventStore) ToStoredBatch(events []domain.Event) ([]recorder.StoredItem, error) {
	items := make([]recorder.StoredItem, 0, len(events))
	for _, e := range events {
		item, err := s.mapper.ToStored(e)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// FromStoredForNotification decodes a notification pulled from a
// NotificationLog back into a domain.Event, using the same Mapper this
// store uses for ordinary aggregate events — notifications and aggregate
// events share one wire format (spec §4.5).
func (s *EventStore) FromStoredForNotification(n recorder.Notification) (domain.Event, error) {
	return s.mapper.FromStored(recorder.StoredItem{
		OriginatorID:      n.OriginatorID,
		OriginatorVersion: n.OriginatorVersion,
		Topic:             n.Topic,
		State:             n.State,
	})
}

// Get returns the events recorded for originatorID, ascending by version
// unless opts.Desc is set, decoded back into domain.Event values. It is a
// one-shot, non-restartable read: callers needing to resume from a cursor
// should set opts.GT themselves on the next call.
func (s *EventStore) Get(ctx context.Context, originatorID domain.AggregateID, opts recorder.SelectOptions) ([]domain.Event, error) {
	items, err := s.recorder.SelectEvents(ctx, originatorID, opts)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(items))
	for _, item := range items {
		event, err := s.mapper.FromStored(item)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}
