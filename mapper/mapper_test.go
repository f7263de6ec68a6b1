package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/recorder"
)

type openedEvent struct {
	domain.EventEnvelope
	FullName string `json:"full_name"`
}

const openedTopic = "bank:Account.Opened"

func newOpenedFactory() mapper.EventFactory {
	return func() domain.Event { return &openedEvent{} }
}

func TestJSONRoundTrip(t *testing.T) {
	transcoder := mapper.NewJSONTranscoder()
	transcoder.Register(openedTopic, newOpenedFactory())
	m := mapper.New(transcoder, nil, nil)

	original := &openedEvent{
		EventEnvelope: domain.NewEventEnvelope(uuid.New(), 0, openedTopic),
		FullName:      "Alice",
	}

	item, err := m.ToStored(original)
	require.NoError(t, err)
	assert.Equal(t, openedTopic, item.Topic)
	assert.Equal(t, uint64(1), item.OriginatorVersion)

	decoded, err := m.FromStored(item)
	require.NoError(t, err)
	got, ok := decoded.(*openedEvent)
	require.True(t, ok)
	assert.Equal(t, original.FullName, got.FullName)
	assert.Equal(t, original.OriginatorID(), got.OriginatorID())
	assert.WithinDuration(t, original.Timestamp(), got.Timestamp(), time.Second)
}

func TestRoundTripWithCompressionAndEncryption(t *testing.T) {
	transcoder := mapper.NewJSONTranscoder()
	transcoder.Register(openedTopic, newOpenedFactory())

	compressor, err := mapper.NewZstdCompressor()
	require.NoError(t, err)
	defer compressor.Close()

	cipher, err := mapper.NewChaCha20Poly1305Cipher(make([]byte, 32))
	require.NoError(t, err)

	m := mapper.New(transcoder, compressor, cipher)

	original := &openedEvent{
		EventEnvelope: domain.NewEventEnvelope(uuid.New(), 4, openedTopic),
		FullName:      "Bob",
	}

	item, err := m.ToStored(original)
	require.NoError(t, err)
	assert.NotContains(t, string(item.State), "Bob") // ciphertext shouldn't leak plaintext

	decoded, err := m.FromStored(item)
	require.NoError(t, err)
	got := decoded.(*openedEvent)
	assert.Equal(t, "Bob", got.FullName)
}

func TestDecodeUnknownTopicIsTranscoderError(t *testing.T) {
	transcoder := mapper.NewJSONTranscoder()
	m := mapper.New(transcoder, nil, nil)

	item := recorder.StoredItem{
		OriginatorID:      uuid.New(),
		OriginatorVersion: 1,
		Topic:             "bank:Account.NeverRegistered",
		State:             []byte(`{}`),
	}

	_, err := m.FromStored(item)
	require.Error(t, err)
	var te *domain.TranscoderError
	assert.ErrorAs(t, err, &te)
}
