package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/recorder/inmemory"
	"github.com/arc-self/eventcore/repository"
	"github.com/arc-self/eventcore/store"
)

const openedTopic = "repo_test:Counter.Incremented"

type incrementedEvent struct {
	domain.EventEnvelope
	By int `json:"by"`
}

type counter struct {
	id         domain.AggregateID
	version    uint64
	createdOn  time.Time
	modifiedOn time.Time
	total      int
}

func (c *counter) ID() domain.AggregateID        { return c.id }
func (c *counter) Version() uint64                { return c.version }
func (c *counter) CreatedOn() time.Time           { return c.createdOn }
func (c *counter) ModifiedOn() time.Time          { return c.modifiedOn }
func (c *counter) CollectEvents() []domain.Event  { return nil }

func projectCounter(prior domain.Aggregate, events []domain.Event) (domain.Aggregate, error) {
	var c *counter
	if prior != nil {
		existing := prior.(*counter)
		clone := *existing
		c = &clone
	}
	for _, e := range events {
		inc := e.(*incrementedEvent)
		if c == nil {
			c = &counter{id: inc.OriginatorID(), createdOn: inc.Timestamp()}
		}
		c.total += inc.By
		c.version = inc.OriginatorVersion()
		c.modifiedOn = inc.Timestamp()
	}
	return c, nil
}

func newRepo(t *testing.T, cacheSize int, fastForward bool) (*repository.Repository, *store.EventStore) {
	t.Helper()
	transcoder := mapper.NewJSONTranscoder()
	transcoder.Register(openedTopic, func() domain.Event { return &incrementedEvent{} })
	m := mapper.New(transcoder, nil, nil)
	es := store.New(m, inmemory.New())
	repo, err := repository.New(es, nil, projectCounter, cacheSize, fastForward)
	require.NoError(t, err)
	return repo, es
}

func TestGetReplaysFromGenesisWithoutCache(t *testing.T) {
	ctx := context.Background()
	repo, es := newRepo(t, 0, false)
	id := uuid.New()

	require.NoError(t, es.Put(ctx, []domain.Event{
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 0, openedTopic), By: 2},
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 1, openedTopic), By: 3},
	}))

	agg, err := repo.Get(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, agg.(*counter).total)
	assert.Equal(t, uint64(2), agg.Version())
}

func TestGetUnknownAggregateReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, 0, false)

	_, err := repo.Get(ctx, uuid.New(), nil)
	require.Error(t, err)
	var nf *domain.AggregateNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCacheFastForwardPicksUpNewEvents(t *testing.T) {
	ctx := context.Background()
	repo, es := newRepo(t, 10, true)
	id := uuid.New()

	require.NoError(t, es.Put(ctx, []domain.Event{
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 0, openedTopic), By: 1},
	}))

	first, err := repo.Get(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.(*counter).total)

	require.NoError(t, es.Put(ctx, []domain.Event{
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 1, openedTopic), By: 4},
	}))

	second, err := repo.Get(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, second.(*counter).total)
	assert.Equal(t, uint64(2), second.Version())
}

func TestCacheWithoutFastForwardServesStaleValue(t *testing.T) {
	ctx := context.Background()
	repo, es := newRepo(t, 10, false)
	id := uuid.New()

	require.NoError(t, es.Put(ctx, []domain.Event{
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 0, openedTopic), By: 1},
	}))
	_, err := repo.Get(ctx, id, nil)
	require.NoError(t, err)

	require.NoError(t, es.Put(ctx, []domain.Event{
		&incrementedEvent{EventEnvelope: domain.NewEventEnvelope(id, 1, openedTopic), By: 99},
	}))

	second, err := repo.Get(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.(*counter).total, "without fast-forward the cached copy is returned unchanged")
}
