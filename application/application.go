// Package application implements the Application base (spec §4.6): the
// object that binds a Mapper, a Recorder, an EventStore (plus an optional
// snapshot EventStore), a Repository, and a LocalNotificationLog into one
// save/notify/take-snapshot lifecycle.
package application

import (
	"context"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/repository"
	"github.com/arc-self/eventcore/store"
)

// SnapshotTaker converts a live aggregate into a domain.Snapshot event at
// its current version. Supplied per aggregate type, analogous to
// Snapshot.take(aggregate) in the original implementation.
type SnapshotTaker func(aggregate domain.Aggregate) *domain.Snapshot

// Application binds together the plumbing every event-sourced application
// needs: events, an optional snapshot store, a repository, and a local
// notification log. Concrete applications embed *Application and add
// domain-specific command methods (see examples/bank).
type Application struct {
	Events      *store.EventStore
	Snapshots   *store.EventStore // nil when snapshotting is disabled
	Recorder    recorder.ProcessRecorder
	Repository  *repository.Repository
	Log         *notification.LocalNotificationLog

	takeSnapshotPayload SnapshotTaker
	// SnapshottingIntervals maps an aggregate type tag (supplied by the
	// embedding application, e.g. a string naming the aggregate) to the
	// version interval at which Save automatically calls TakeSnapshot.
	SnapshottingIntervals map[string]uint64

	// Notify is called after new events are durably saved, with the batch
	// that was just written. The base implementation is a no-op; a
	// ProcessApplication overrides it to kick its own followers, see
	// process.Leader.
	Notify func(ctx context.Context, newEvents []domain.Event)
}

// Options configures a New Application.
type Options struct {
	Events                *store.EventStore
	Snapshots             *store.EventStore
	Recorder              recorder.ProcessRecorder
	Repository            *repository.Repository
	Log                   *notification.LocalNotificationLog
	TakeSnapshotPayload   SnapshotTaker
	SnapshottingIntervals map[string]uint64
}

// New builds an Application from pre-constructed components. Unlike the
// original's factory-driven construction (env var -> driver lookup via
// reflection), this module wires concrete components explicitly at the call
// site — see cmd/bankdemo for the wiring this replaces.
func New(opts Options) *Application {
	app := &Application{
		Events:                opts.Events,
		Snapshots:             opts.Snapshots,
		Recorder:              opts.Recorder,
		Repository:            opts.Repository,
		Log:                   opts.Log,
		takeSnapshotPayload:   opts.TakeSnapshotPayload,
		SnapshottingIntervals: opts.SnapshottingIntervals,
	}
	app.Notify = func(context.Context, []domain.Event) {}
	return app
}

// Save collects pending events from the given aggregates, persists them
// atomically, takes any snapshots whose interval boundary was just crossed,
// and finally calls Notify with the full batch — mirroring
// Application.save in the original implementation.
func (a *Application) Save(ctx context.Context, tag string, aggregates ...domain.Aggregate) error {
	var events []domain.Event
	aggregateTypeByID := make(map[domain.AggregateID]string, len(aggregates))
	for _, agg := range aggregates {
		events = append(events, agg.CollectEvents()...)
		aggregateTypeByID[agg.ID()] = tag
	}
	if len(events) == 0 {
		return nil
	}

	if err := a.Events.Put(ctx, events); err != nil {
		return err
	}

	if a.Snapshots != nil && len(a.SnapshottingIntervals) > 0 {
		for _, event := range events {
			aggregateTag := aggregateTypeByID[event.OriginatorID()]
			interval, ok := a.SnapshottingIntervals[aggregateTag]
			if !ok || interval == 0 {
				continue
			}
			if event.OriginatorVersion()%interval == 0 {
				version := event.OriginatorVersion()
				if err := a.TakeSnapshot(ctx, event.OriginatorID(), &version); err != nil {
					return err
				}
			}
		}
	}

	a.Notify(ctx, events)
	return nil
}

// TakeSnapshot reconstructs the aggregate at the given version (nil for
// latest) and writes a snapshot of it. Returns *domain.ProgrammingError if
// snapshotting is disabled, matching the original's AssertionError guard.
func (a *Application) TakeSnapshot(ctx context.Context, aggregateID domain.AggregateID, version *uint64) error {
	if a.Snapshots == nil {
		return &domain.ProgrammingError{Reason: "can't take snapshot: snapshotting is disabled for this application"}
	}
	aggregate, err := a.Repository.Get(ctx, aggregateID, version)
	if err != nil {
		return err
	}
	snapshot := a.takeSnapshotPayload(aggregate)
	return a.Snapshots.Put(ctx, []domain.Event{snapshot})
}
