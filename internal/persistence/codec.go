package persistence

import (
	"bytes"
	"encoding/gob"

	"github.com/petrijr/gateflow/pkg/api"
)

func init() {
	// Common payload value shapes. Anything beyond these must be registered
	// by the caller via RegisterPayloadType.
	gob.Register([]string{})
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register(map[string]string{})
}

// RegisterPayloadType registers a concrete payload value type with gob so it
// can round-trip through the store. Callers whose generators return custom
// structs must register them once at startup.
func RegisterPayloadType(v any) {
	gob.Register(v)
}

// sessionRecord is the wire shape persisted by every store backend.
// Payload values are gob-encoded through the interface, so they must be
// registered concrete types.
type sessionRecord struct {
	SessionID   string
	CurrentNode string
	Status      string
	Version     int64
	Payload     map[string]any
	DecisionLog []api.DecisionEntry
}

// EncodeState serializes a process state using encoding/gob.
func EncodeState(s *api.ProcessState) ([]byte, error) {
	rec := sessionRecord{
		SessionID:   s.SessionID,
		CurrentNode: s.CurrentNode,
		Status:      string(s.Status),
		Version:     s.Version,
		Payload:     s.Payload,
		DecisionLog: s.DecisionLog,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeState deserializes a process state produced by EncodeState.
func DecodeState(data []byte) (*api.ProcessState, error) {
	if len(data) == 0 {
		return nil, api.ErrSessionNotFound
	}
	var rec sessionRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	st := &api.ProcessState{
		SessionID:   rec.SessionID,
		CurrentNode: rec.CurrentNode,
		Status:      api.Status(rec.Status),
		Version:     rec.Version,
		Payload:     rec.Payload,
		DecisionLog: rec.DecisionLog,
	}
	if st.Payload == nil {
		st.Payload = make(map[string]any)
	}
	return st, nil
}
