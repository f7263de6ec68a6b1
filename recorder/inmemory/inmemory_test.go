package inmemory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/inmemory"
)

func TestInsertEventsOrderingAndGaps(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "t"},
		{OriginatorID: id, OriginatorVersion: 2, Topic: "t"},
		{OriginatorID: id, OriginatorVersion: 3, Topic: "t"},
	}))

	got, err := s.SelectEvents(ctx, id, recorder.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, it := range got {
		assert.Equal(t, uint64(i+1), it.OriginatorVersion)
	}
}

func TestInsertEventsRejectsDuplicateVersion(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "t"},
	}))

	err := s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "t"},
	})
	var ie *domain.IntegrityError
	assert.ErrorAs(t, err, &ie)

	// No visible effect from the rejected batch.
	got, _ := s.SelectEvents(ctx, id, recorder.SelectOptions{})
	assert.Len(t, got, 1)
}

func TestNotificationIDsAreContiguous(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: a, OriginatorVersion: 1, Topic: "t"},
		{OriginatorID: b, OriginatorVersion: 1, Topic: "t"},
	}))
	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: a, OriginatorVersion: 2, Topic: "t"},
	}))

	notes, err := s.SelectNotifications(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	for i, n := range notes {
		assert.Equal(t, uint64(i+1), n.ID)
	}

	maxID, err := s.MaxNotificationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), maxID)
}

func TestConcurrentWritersExactlyOneWins(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "created"},
		{OriginatorID: id, OriginatorVersion: 2, Topic: "created"},
		{OriginatorID: id, OriginatorVersion: 3, Topic: "created"},
	}))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.InsertEvents(ctx, []recorder.StoredItem{
				{OriginatorID: id, OriginatorVersion: 4, Topic: "updated"},
			})
		}(i)
	}
	wg.Wait()

	successes, failures := 0, 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			failures++
			var ie *domain.IntegrityError
			assert.ErrorAs(t, err, &ie)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)

	got, _ := s.SelectEvents(ctx, id, recorder.SelectOptions{})
	assert.Len(t, got, 4)
}

func TestTrackingIsIdempotent(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	id := uuid.New()

	tracking := &recorder.Tracking{UpstreamName: "upstream", NotificationID: 7}
	require.NoError(t, s.InsertEventsWithTracking(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "reaction"},
	}, tracking))

	err := s.InsertEventsWithTracking(ctx, []recorder.StoredItem{
		{OriginatorID: uuid.New(), OriginatorVersion: 1, Topic: "reaction"},
	}, tracking)
	var ie *domain.IntegrityError
	assert.ErrorAs(t, err, &ie)

	maxID, _ := s.MaxTrackingID(ctx, "upstream")
	assert.Equal(t, uint64(7), maxID)

	got, _ := s.SelectEvents(ctx, id, recorder.SelectOptions{})
	assert.Len(t, got, 1)
}

func TestSelectEventsLimitZeroReturnsEmptyNotError(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, s.InsertEvents(ctx, []recorder.StoredItem{
		{OriginatorID: id, OriginatorVersion: 1, Topic: "t"},
	}))

	zero := 0
	got, err := s.SelectEvents(ctx, id, recorder.SelectOptions{Limit: &zero})
	require.NoError(t, err)
	assert.Empty(t, got)
}
