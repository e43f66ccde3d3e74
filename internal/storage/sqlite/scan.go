package sqlite

import (
	"encoding/json"
	"time"

	"github.com/codegraphhq/codegraph/internal/types"
)

// marshalMeta encodes a metadata map for storage. Nil maps become "{}".
func marshalMeta(m types.Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMeta(s string) (types.Metadata, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m types.Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// entityState captures an entity's fields as a generic map for journal
// before/after states. Serialization stays at the journal boundary; in memory
// the store carries typed records.
func entityState(v interface{}) types.Metadata {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m types.Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func encodeTime(t time.Time) string { return types.FormatTime(t) }

func decodeTime(s string) time.Time {
	t, err := types.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := decodeTime(*s)
	return &t
}
