package natsbus

import (
	"encoding/base64"
	"encoding/json"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

// wireNotification is the JSON envelope published to and consumed from
// JetStream, structured the way audit-service's globalOutboxEvent mirrors
// its upstream outbox row: plain string UUIDs, base64 for the opaque
// payload bytes.
type wireNotification struct {
	ID                uint64 `json:"id"`
	OriginatorID      string `json:"originator_id"`
	OriginatorVersion uint64 `json:"originator_version"`
	Topic             string `json:"topic"`
	State             string `json:"state"`
}

func encodeWireNotification(n recorder.Notification) ([]byte, error) {
	return json.Marshal(wireNotification{
		ID:                n.ID,
		OriginatorID:      n.OriginatorID.String(),
		OriginatorVersion: n.OriginatorVersion,
		Topic:             n.Topic,
		State:             base64.StdEncoding.EncodeToString(n.State),
	})
}

func decodeWireNotification(data []byte) (recorder.Notification, error) {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return recorder.Notification{}, err
	}
	originatorID, err := domain.ParseAggregateID(w.OriginatorID)
	if err != nil {
		return recorder.Notification{}, err
	}
	state, err := base64.StdEncoding.DecodeString(w.State)
	if err != nil {
		return recorder.Notification{}, err
	}
	return recorder.Notification{
		ID:                w.ID,
		OriginatorID:      originatorID,
		OriginatorVersion: w.OriginatorVersion,
		Topic:             w.Topic,
		State:             state,
	}, nil
}
