package mapper

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/arc-self/eventcore/domain"
)

// Transcoder is the external contract for turning an event's state into
// opaque bytes and back (spec §6). The core ships two concrete
// implementations — JSON and protobuf — and requires only that topic
// resolution be a stable map lookup, never reflection or dynamic import.
type Transcoder interface {
	Encode(event domain.Event) ([]byte, error)
	Decode(topic string, data []byte) (domain.Event, error)
}

// EventFactory creates a zero-value, addressable instance of the event type
// registered under a topic, ready to be unmarshaled into.
type EventFactory func() domain.Event

// JSONTranscoder is a registry-backed Transcoder using encoding/json. Event
// types are registered by topic via Register after construction; topic
// resolution is a map lookup, never reflection-based import.
type JSONTranscoder struct {
	factories map[string]EventFactory
}

// NewJSONTranscoder creates an empty JSONTranscoder.
func NewJSONTranscoder() *JSONTranscoder {
	return &JSONTranscoder{factories: make(map[string]EventFactory)}
}

// Register associates a topic string with a factory that produces a fresh,
// addressable instance of the corresponding event type.
func (t *JSONTranscoder) Register(topic string, factory EventFactory) {
	t.factories[topic] = factory
}

func (t *JSONTranscoder) Encode(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}

func (t *JSONTranscoder) Decode(topic string, data []byte) (domain.Event, error) {
	factory, ok := t.factories[topic]
	if !ok {
		return nil, &domain.TranscoderError{Topic: topic, Err: fmt.Errorf("no type registered for topic")}
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, &domain.TranscoderError{Topic: topic, Err: err}
	}
	return event, nil
}

// ProtoEvent is a domain.Event whose payload is also a protobuf message,
// letting the same value be folded during replay and marshaled on the wire
// without a separate DTO.
type ProtoEvent interface {
	domain.Event
	proto.Message
}

// ProtoFactory creates a zero-value ProtoEvent ready to be unmarshaled into.
type ProtoFactory func() ProtoEvent

// ProtoTranscoder is a second Transcoder implementation, for event types
// that carry a protobuf payload. It is registered the same way as
// JSONTranscoder: an explicit topic -> factory map, no reflection over the
// protobuf type registry.
type ProtoTranscoder struct {
	factories map[string]ProtoFactory
}

// NewProtoTranscoder creates an empty ProtoTranscoder.
func NewProtoTranscoder() *ProtoTranscoder {
	return &ProtoTranscoder{factories: make(map[string]ProtoFactory)}
}

// Register associates a topic with a factory producing the protobuf-backed
// event type stored under that topic.
func (t *ProtoTranscoder) Register(topic string, factory ProtoFactory) {
	t.factories[topic] = factory
}

func (t *ProtoTranscoder) Encode(event domain.Event) ([]byte, error) {
	msg, ok := event.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("event for topic %q is not a proto.Message", event.Topic())
	}
	return proto.Marshal(msg)
}

func (t *ProtoTranscoder) Decode(topic string, data []byte) (domain.Event, error) {
	factory, ok := t.factories[topic]
	if !ok {
		return nil, &domain.TranscoderError{Topic: topic, Err: fmt.Errorf("no proto type registered for topic")}
	}
	event := factory()
	if err := proto.Unmarshal(data, event); err != nil {
		return nil, &domain.TranscoderError{Topic: topic, Err: err}
	}
	return event, nil
}
