package memory

import (
	"encoding/json"
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// Envelope is the serialized form of a record used by durable backends.
type Envelope struct {
	Value     json.RawMessage `json:"value"`
	Version   uint64          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EncodeValue converts value to JSON. Failures are reported as serialization errors.
func EncodeValue(op, key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, core.SerializationError(op, key, err)
	}
	return raw, nil
}

// DecodeValue parses JSON produced by EncodeValue into a generic value.
func DecodeValue(op, key string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, core.SerializationError(op, key, err)
	}
	return v, nil
}

// EncodeEnvelope serializes a whole record.
func EncodeEnvelope(op, key string, value any, version uint64, at time.Time) ([]byte, error) {
	raw, err := EncodeValue(op, key, value)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(Envelope{Value: raw, Version: version, UpdatedAt: at})
	if err != nil {
		return nil, core.SerializationError(op, key, err)
	}
	return data, nil
}

// DecodeEnvelope parses a record produced by EncodeEnvelope.
func DecodeEnvelope(op, key string, data []byte) (core.Record, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.Record{}, core.SerializationError(op, key, err)
	}
	v, err := DecodeValue(op, key, env.Value)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{Key: key, Value: v, Version: env.Version, UpdatedAt: env.UpdatedAt}, nil
}
