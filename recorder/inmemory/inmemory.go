// Package inmemory is the reference ProcessRecorder backend: a single
// process-local, mutex-guarded store good enough to run the full test suite
// and small demos. Its locking strategy is the same one
// akriventsev-potter/framework/eventsourcing's InMemoryEventStore and
// go-gadgets/eventsourcing's in-memory store use — a single coarse
// sync.Mutex serializing every write, since the notification-id sequence
// must be assigned atomically with the insert.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

type aggregateKey struct {
	id      domain.AggregateID
	version uint64
}

// Store is an in-memory recorder.ProcessRecorder.
type Store struct {
	mu sync.Mutex

	byAggregateVersion map[aggregateKey]struct{}
	byAggregate        map[domain.AggregateID][]recorder.StoredItem

	notifications []recorder.Notification
	nextNotifyID  uint64

	tracking    map[string]struct{} // upstreamName + ":" + notificationID
	maxTracking map[string]uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byAggregateVersion: make(map[aggregateKey]struct{}),
		byAggregate:        make(map[domain.AggregateID][]recorder.StoredItem),
		tracking:           make(map[string]struct{}),
		maxTracking:        make(map[string]uint64),
	}
}

// InsertEvents implements recorder.AggregateRecorder.
func (s *Store) InsertEvents(ctx context.Context, items []recorder.StoredItem) error {
	return s.InsertEventsWithTracking(ctx, items, nil)
}

// InsertEventsWithTracking implements recorder.ProcessRecorder. The whole
// batch — items, their notifications, and the optional tracking row — is
// applied or rejected as a unit under a single mutex acquisition, which is
// how this backend honors the "one transaction" requirement of spec §4.1
// and §4.7 without a real database.
func (s *Store) InsertEventsWithTracking(ctx context.Context, items []recorder.StoredItem, tracking *recorder.Tracking) error {
	if err := ctx.Err(); err != nil {
		return &domain.DatastoreError{Op: "insert_events", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tracking != nil {
		trackKey := trackingKey(tracking.UpstreamName, tracking.NotificationID)
		if _, exists := s.tracking[trackKey]; exists {
			return domain.NewIntegrityError("duplicate tracking row", nil)
		}
	}

	for _, it := range items {
		key := aggregateKey{id: it.OriginatorID, version: it.OriginatorVersion}
		if _, exists := s.byAggregateVersion[key]; exists {
			return domain.NewIntegrityError("duplicate (originator_id, originator_version)", nil)
		}
	}

	// All checks passed — commit atomically. No partial effects are
	// possible past this point.
	for _, it := range items {
		key := aggregateKey{id: it.OriginatorID, version: it.OriginatorVersion}
		s.byAggregateVersion[key] = struct{}{}
		s.byAggregate[it.OriginatorID] = append(s.byAggregate[it.OriginatorID], it)

		s.nextNotifyID++
		s.notifications = append(s.notifications, recorder.Notification{
			ID:                s.nextNotifyID,
			OriginatorID:      it.OriginatorID,
			OriginatorVersion: it.OriginatorVersion,
			Topic:             it.Topic,
			State:             it.State,
		})
	}

	if tracking != nil {
		trackKey := trackingKey(tracking.UpstreamName, tracking.NotificationID)
		s.tracking[trackKey] = struct{}{}
		if tracking.NotificationID > s.maxTracking[tracking.UpstreamName] {
			s.maxTracking[tracking.UpstreamName] = tracking.NotificationID
		}
	}

	return nil
}

// SelectEvents implements recorder.AggregateRecorder.
func (s *Store) SelectEvents(ctx context.Context, originatorID domain.AggregateID, opts recorder.SelectOptions) ([]recorder.StoredItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byAggregate[originatorID]
	out := make([]recorder.StoredItem, 0, len(all))
	for _, it := range all {
		if opts.GT != nil && it.OriginatorVersion <= *opts.GT {
			continue
		}
		if opts.LTE != nil && it.OriginatorVersion > *opts.LTE {
			continue
		}
		out = append(out, it)
	}

	if opts.Desc {
		sort.Slice(out, func(i, j int) bool {
			return out[i].OriginatorVersion > out[j].OriginatorVersion
		})
	}

	if opts.Limit != nil {
		if *opts.Limit <= 0 {
			return []recorder.StoredItem{}, nil
		}
		if *opts.Limit < len(out) {
			out = out[:*opts.Limit]
		}
	}

	return out, nil
}

// SelectNotifications implements recorder.ApplicationRecorder.
func (s *Store) SelectNotifications(ctx context.Context, start uint64, limit int) ([]recorder.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return []recorder.Notification{}, nil
	}

	out := make([]recorder.Notification, 0, limit)
	for _, n := range s.notifications {
		if n.ID < start {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (s *Store) MaxNotificationID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextNotifyID, nil
}

// MaxTrackingID implements recorder.ProcessRecorder.
func (s *Store) MaxTrackingID(ctx context.Context, upstreamName string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTracking[upstreamName], nil
}

func trackingKey(upstreamName string, notificationID uint64) string {
	return upstreamName + ":" + itoa(notificationID)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

var _ recorder.ProcessRecorder = (*Store)(nil)
