package notification_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/inmemory"
)

func seed(t *testing.T, rec *inmemory.Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := uuid.New()
		require.NoError(t, rec.InsertEvents(ctx, []recorder.StoredItem{
			{OriginatorID: id, OriginatorVersion: 1, Topic: "t", State: []byte("x")},
		}))
	}
}

func TestSectionFullyPopulatedAdvertisesNextID(t *testing.T) {
	ctx := context.Background()
	rec := inmemory.New()
	seed(t, rec, 25)

	log := notification.New(rec, 10)
	section, err := log.Section(ctx, "1,10")
	require.NoError(t, err)
	assert.Equal(t, "1,10", section.ID)
	assert.Len(t, section.Items, 10)
	assert.Equal(t, "11,20", section.NextID)
}

func TestSectionPartialHasNoNextID(t *testing.T) {
	ctx := context.Background()
	rec := inmemory.New()
	seed(t, rec, 5)

	log := notification.New(rec, 10)
	section, err := log.Section(ctx, "1,10")
	require.NoError(t, err)
	assert.Len(t, section.Items, 5)
	assert.Empty(t, section.NextID)
}

func TestSectionEmptyWhenNothingRecorded(t *testing.T) {
	ctx := context.Background()
	rec := inmemory.New()
	log := notification.New(rec, 10)

	section, err := log.Section(ctx, "1,10")
	require.NoError(t, err)
	assert.Empty(t, section.ID)
	assert.Empty(t, section.Items)
	assert.Empty(t, section.NextID)
}

func TestReaderWalksAcrossSections(t *testing.T) {
	ctx := context.Background()
	rec := inmemory.New()
	seed(t, rec, 23)

	log := notification.New(rec, 10)
	reader := notification.NewReader(log, 10)

	var seen []uint64
	err := reader.Read(ctx, 1, func(n recorder.Notification) error {
		seen = append(seen, n.ID)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 23)
	assert.Equal(t, uint64(1), seen[0])
	assert.Equal(t, uint64(23), seen[len(seen)-1])
}
