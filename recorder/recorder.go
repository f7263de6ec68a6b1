// Package recorder defines the persistence contract every storage backend
// must honor: a per-aggregate append-only log with optimistic concurrency,
// a process-wide gap-free notification sequence derived from the same
// writes, and — for followers — an idempotent tracking marker inserted in
// the same transaction as the reaction events it justifies.
//
// Any backend satisfying these interfaces is acceptable; the rest of the
// core (store, repository, notification, application, process) only ever
// talks to a Recorder through this contract and never assumes a particular
// driver.
package recorder

import (
	"context"

	"github.com/arc-self/eventcore/domain"
)

// StoredItem is the wire form events take to and from a Recorder: whatever
// a Mapper produced from a domain event, ready to append.
type StoredItem struct {
	OriginatorID      domain.AggregateID
	OriginatorVersion uint64
	Topic             string
	State             []byte
}

// Notification is a StoredItem annotated with its position in the
// process-wide, gap-free sequence.
type Notification struct {
	ID                uint64
	OriginatorID      domain.AggregateID
	OriginatorVersion uint64
	Topic             string
	State             []byte
}

// Tracking is a follower's durable high-water mark: "I have processed
// notification NotificationID from upstream application UpstreamName."
type Tracking struct {
	UpstreamName   string
	NotificationID uint64
}

// SelectOptions bounds a SelectEvents read. A nil Limit means unbounded; a
// zero Limit returns an empty slice rather than an error (see DESIGN.md for
// the rationale — this resolves an ambiguity left open in spec.md §9).
type SelectOptions struct {
	GT    *uint64 // strictly greater than this originator_version
	LTE   *uint64 // less than or equal to this originator_version
	Desc  bool
	Limit *int
}

// AggregateRecorder is a per-aggregate-sequence append-only log.
type AggregateRecorder interface {
	// InsertEvents atomically appends a batch of items, possibly spanning
	// many aggregates. It MUST fail with *domain.IntegrityError, with no
	// visible effect, if any (OriginatorID, OriginatorVersion) pair in the
	// batch already exists in storage.
	InsertEvents(ctx context.Context, items []StoredItem) error

	// SelectEvents returns events for one aggregate, ordered ascending by
	// OriginatorVersion unless opts.Desc is set.
	SelectEvents(ctx context.Context, originatorID domain.AggregateID, opts SelectOptions) ([]StoredItem, error)
}

// ApplicationRecorder extends AggregateRecorder with the global,
// process-wide notification log: every inserted event produces exactly one
// notification, whose id is the next integer after the current maximum,
// assigned atomically with the insert.
type ApplicationRecorder interface {
	AggregateRecorder

	// SelectNotifications returns notifications with id >= start, in
	// ascending id order, up to limit entries.
	SelectNotifications(ctx context.Context, start uint64, limit int) ([]Notification, error)

	// MaxNotificationID returns the highest assigned notification id, or 0
	// if none have been assigned yet.
	MaxNotificationID(ctx context.Context) (uint64, error)
}

// ProcessRecorder extends ApplicationRecorder with tracking: a follower's
// idempotent record of upstream notifications it has already processed.
type ProcessRecorder interface {
	ApplicationRecorder

	// InsertEventsWithTracking is InsertEvents plus an optional Tracking
	// row, all in one transaction. If tracking is non-nil and
	// (tracking.UpstreamName, tracking.NotificationID) already exists, the
	// whole call fails with *domain.IntegrityError and nothing is
	// inserted — this is how a follower silently absorbs redelivery of a
	// notification it has already reacted to.
	InsertEventsWithTracking(ctx context.Context, items []StoredItem, tracking *Tracking) error

	// MaxTrackingID returns the highest NotificationID tracked for the
	// given upstream application name, or 0 if none.
	MaxTrackingID(ctx context.Context, upstreamName string) (uint64, error)
}
