package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/application"
	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/process"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/inmemory"
	"github.com/arc-self/eventcore/repository"
	"github.com/arc-self/eventcore/store"
)

const (
	depositedTopic    = "process_test:Account.Deposited"
	reactionTopic     = "process_test:Ledger.Recorded"
)

type depositedEvent struct {
	domain.EventEnvelope
	Amount int `json:"amount"`
}

type recordedEvent struct {
	domain.EventEnvelope
	Amount int `json:"amount"`
}

type ledgerEntry struct {
	id      domain.AggregateID
	version uint64
	total   int
	pending []domain.Event
}

func (l *ledgerEntry) ID() domain.AggregateID        { return l.id }
func (l *ledgerEntry) Version() uint64                { return l.version }
func (l *ledgerEntry) CreatedOn() time.Time           { return time.Time{} }
func (l *ledgerEntry) ModifiedOn() time.Time          { return time.Time{} }
func (l *ledgerEntry) CollectEvents() []domain.Event {
	out := l.pending
	l.pending = nil
	return out
}

func (l *ledgerEntry) Record(amount int) {
	e := &recordedEvent{EventEnvelope: domain.NewEventEnvelope(l.id, l.version, reactionTopic), Amount: amount}
	l.total += amount
	l.version = e.OriginatorVersion()
	l.pending = append(l.pending, e)
}

func buildApp(t *testing.T, topic string, factory mapper.EventFactory) (*application.Application, *store.EventStore) {
	t.Helper()
	transcoder := mapper.NewJSONTranscoder()
	transcoder.Register(topic, factory)
	// A follower decodes upstream notifications with its own mapper, so
	// every app here must know the upstream deposit topic.
	transcoder.Register(depositedTopic, func() domain.Event { return &depositedEvent{} })
	m := mapper.New(transcoder, nil, nil)
	rec := inmemory.New()
	events := store.New(m, rec)
	repo, err := repository.New(events, nil, func(prior domain.Aggregate, evs []domain.Event) (domain.Aggregate, error) {
		return prior, nil
	}, 0, false)
	require.NoError(t, err)
	app := application.New(application.Options{
		Events:     events,
		Recorder:   rec,
		Repository: repo,
		Log:        notification.New(rec, 10),
	})
	return app, events
}

func TestFollowerProcessesNotificationsExactlyOnce(t *testing.T) {
	ctx := context.Background()

	leaderApp, leaderEvents := buildApp(t, depositedTopic, func() domain.Event { return &depositedEvent{} })
	leader := process.NewLeader("Upstream", leaderApp)

	followerApp, followerEvents := buildApp(t, reactionTopic, func() domain.Event { return &recordedEvent{} })
	ledger := &ledgerEntry{id: domain.NewAggregateID()}
	var processed int
	policy := func(ctx context.Context, event domain.Event, pe *process.ProcessingEvent) error {
		dep, ok := event.(*depositedEvent)
		if !ok {
			return nil
		}
		processed++
		ledger.Record(dep.Amount)
		pe.Collect(ledger)
		return nil
	}
	follower := process.NewFollower("Follower", followerApp, policy, 10)
	follower.Follow("Upstream", leaderApp.Log)
	leader.Lead(follower)

	accID := domain.NewAggregateID()
	dep1 := &depositedEvent{EventEnvelope: domain.NewEventEnvelope(accID, 0, depositedTopic), Amount: 10}
	require.NoError(t, leaderApp.Save(ctx, "Account", fakeAggregate{id: accID, events: []domain.Event{dep1}}))

	assert.Equal(t, 1, processed)

	got, err := followerEvents.Get(ctx, ledger.id, recorder.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].(*recordedEvent).Amount)

	// Pull again: reading resumes after the tracking high-water mark, so the
	// already-processed notification is not handed to the policy a second time.
	require.NoError(t, follower.PullAndProcess(ctx, "Upstream"))
	assert.Equal(t, 1, processed, "redelivery of an already-tracked notification must not re-run the policy")

	_ = leaderEvents
}

// fakeAggregate adapts a fixed event batch to the domain.Aggregate
// interface for Save, since leaderApp.Save only needs CollectEvents.
type fakeAggregate struct {
	id     domain.AggregateID
	events []domain.Event
}

func (f fakeAggregate) ID() domain.AggregateID       { return f.id }
func (f fakeAggregate) Version() uint64               { return 0 }
func (f fakeAggregate) CreatedOn() time.Time          { return time.Time{} }
func (f fakeAggregate) ModifiedOn() time.Time         { return time.Time{} }
func (f fakeAggregate) CollectEvents() []domain.Event { return f.events }
