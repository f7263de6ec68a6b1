// Package domain defines the contracts the event-sourcing core replays and
// persists: aggregate identity, the event envelope, and the minimal
// aggregate-root behaviour the repository needs in order to reconstitute and
// save state. The user-facing syntax for *declaring* aggregates and events
// (decorators, code generation, reflection-based dispatch) is out of scope —
// only the runtime contract is defined here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateID is a stable 128-bit identifier, generated once on creation and
// never reused.
type AggregateID = uuid.UUID

// NewAggregateID generates a fresh AggregateID.
func NewAggregateID() AggregateID {
	return uuid.New()
}

// ParseAggregateID parses the canonical string form of an AggregateID.
func ParseAggregateID(s string) (AggregateID, error) {
	return uuid.Parse(s)
}

// Event is an immutable fact about one aggregate. Implementations carry
// their own payload fields; Topic names the concrete event type for
// deserialization (e.g. "bank:Account.Opened").
type Event interface {
	OriginatorID() AggregateID
	OriginatorVersion() uint64
	Timestamp() time.Time
	Topic() string
}

// EventEnvelope is a concrete, serialization-agnostic Event used by the
// store and mapper packages to carry the common fields alongside a
// caller-supplied payload. Concrete domain event types normally embed this.
type EventEnvelope struct {
	ID        AggregateID
	Version   uint64
	At        time.Time
	TopicName string
}

func (e EventEnvelope) OriginatorID() AggregateID      { return e.ID }
func (e EventEnvelope) OriginatorVersion() uint64      { return e.Version }
func (e EventEnvelope) Timestamp() time.Time           { return e.At }
func (e EventEnvelope) Topic() string                  { return e.TopicName }

// NewEventEnvelope stamps a new envelope at the version immediately
// following currentVersion.
func NewEventEnvelope(id AggregateID, currentVersion uint64, topic string) EventEnvelope {
	return EventEnvelope{
		ID:        id,
		Version:   currentVersion + 1,
		At:        time.Now().UTC(),
		TopicName: topic,
	}
}

// Snapshot is an Event variant whose payload is the serialized state of an
// aggregate at a given version. Snapshots live in a logically separate
// sequence from regular events but share the originator_version coordinate
// system, and are folded by the same Projector that folds ordinary events.
type Snapshot struct {
	EventEnvelope
	State []byte
}

const SnapshotTopicSuffix = "#snapshot"

// Aggregate is the minimal shape the repository and application operate on.
// Aggregates are opaque carriers of pending events from the core's point of
// view — CollectEvents drains them for Application.Save. Folding historical
// events into state during replay is done by the repository's Projector,
// not by a method of the aggregate.
type Aggregate interface {
	ID() AggregateID
	Version() uint64
	CreatedOn() time.Time
	ModifiedOn() time.Time

	// CollectEvents drains and returns pending events not yet persisted,
	// in the order they were recorded. Calling it again before any new
	// mutation returns an empty slice.
	CollectEvents() []Event
}

// Mutator folds a single historical Event (or Snapshot) into an optional
// prior state, producing the next state. A Projector can be written as a
// loop applying a Mutator to each event in order; Repository itself takes a
// complete Projector and has no default loop of its own.
type Mutator func(state Aggregate, event Event) (Aggregate, error)
