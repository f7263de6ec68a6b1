package mapper

import (
	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

// Mapper converts between domain event objects and recorder.StoredItems,
// per spec §4.2. Given a Transcoder T, an optional Compressor Z, and an
// optional Cipher K: ToStored serializes via T, then compresses (if Z is
// set), then encrypts (if K is set); FromStored reverses the pipeline.
type Mapper struct {
	Transcoder Transcoder
	Compressor Compressor // optional
	Cipher     Cipher     // optional
}

// New builds a Mapper. Compressor and Cipher may be nil.
func New(transcoder Transcoder, compressor Compressor, cipher Cipher) *Mapper {
	return &Mapper{Transcoder: transcoder, Compressor: compressor, Cipher: cipher}
}

// ToStored maps one domain event into its wire form.
func (m *Mapper) ToStored(event domain.Event) (recorder.StoredItem, error) {
	state, err := m.Transcoder.Encode(event)
	if err != nil {
		return recorder.StoredItem{}, &domain.TranscoderError{Topic: event.Topic(), Err: err}
	}

	if m.Compressor != nil {
		state, err = m.Compressor.Compress(state)
		if err != nil {
			return recorder.StoredItem{}, err
		}
	}

	if m.Cipher != nil {
		state, err = m.Cipher.Encrypt(state)
		if err != nil {
			return recorder.StoredItem{}, err
		}
	}

	return recorder.StoredItem{
		OriginatorID:      event.OriginatorID(),
		OriginatorVersion: event.OriginatorVersion(),
		Topic:             event.Topic(),
		State:             state,
	}, nil
}

// FromStored reverses ToStored: decrypt, then decompress, then decode.
func (m *Mapper) FromStored(item recorder.StoredItem) (domain.Event, error) {
	state := item.State
	var err error

	if m.Cipher != nil {
		state, err = m.Cipher.Decrypt(state)
		if err != nil {
			return nil, err
		}
	}

	if m.Compressor != nil {
		state, err = m.Compressor.Decompress(state)
		if err != nil {
			return nil, err
		}
	}

	event, err := m.Transcoder.Decode(item.Topic, state)
	if err != nil {
		return nil, err
	}
	return event, nil
}
