package natsbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

// A live NATS server is unavailable in this sandboxed, non-executing
// workflow, so Client/Publisher/Consumer's network paths are exercised by
// the teacher's own docker-compose-backed suites instead (see
// apps/audit-service/internal/consumer/global_audit_consumer_test.go). What
// can be tested here without a connection is the wire codec and subject
// sanitization, which carry all of this package's actual decoding logic.
func TestWireNotificationRoundTrip(t *testing.T) {
	n := recorder.Notification{
		ID:                7,
		OriginatorID:      domain.NewAggregateID(),
		OriginatorVersion: 3,
		Topic:             "bank:Account.Opened",
		State:             []byte(`{"balance":100}`),
	}

	data, err := encodeWireNotification(n)
	require.NoError(t, err)

	got, err := decodeWireNotification(data)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestDecodeWireNotificationRejectsMalformedJSON(t *testing.T) {
	_, err := decodeWireNotification([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeWireNotificationRejectsBadOriginatorID(t *testing.T) {
	_, err := decodeWireNotification([]byte(`{"id":1,"originator_id":"not-a-uuid","originator_version":1,"topic":"x","state":""}`))
	assert.Error(t, err)
}

func TestSanitizeTopicReplacesColonAndSpace(t *testing.T) {
	assert.Equal(t, "bank.Account.Opened", sanitizeTopic("bank:Account.Opened"))
	assert.Equal(t, "my_app.Thing", sanitizeTopic("my app:Thing"))
}

func TestPermanentErrorUnwraps(t *testing.T) {
	inner := errors.New("bad payload")
	perm := &PermanentError{Err: inner}
	assert.True(t, errors.Is(perm, inner))
	assert.Contains(t, perm.Error(), "bad payload")
}

func TestHandlerSignatureCompiles(t *testing.T) {
	var h Handler = func(ctx context.Context, n recorder.Notification) error { return nil }
	require.NoError(t, h(context.Background(), recorder.Notification{}))
}
