package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// TimestampField is the reserved field holding the write time.
const TimestampField = "timestamp"

// DataField wraps payloads that are not JSON objects.
const DataField = "data"

// timestampLayout matches JavaScript's Date.toJSON output so existing
// dashboard clients parse it unchanged.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrInvalidKey is returned for keys that cannot be used as file names.
	ErrInvalidKey = errors.New("snapshot: invalid key")

	// ErrCorrupt is returned when a cache file exists but cannot be decoded.
	ErrCorrupt = errors.New("snapshot: corrupt cache file")
)

// Snapshot is one cached feed: the write time plus the payload's top-level
// fields, kept as raw JSON.
type Snapshot struct {
	Timestamp time.Time
	Fields    map[string]json.RawMessage
}

// Field returns the raw value of a payload field, or nil if absent.
func (s Snapshot) Field(name string) json.RawMessage {
	return s.Fields[name]
}

// Decode unmarshals a payload field into v.
func (s Snapshot) Decode(name string, v any) error {
	raw, ok := s.Fields[name]
	if !ok {
		return fmt.Errorf("snapshot: field %q not present", name)
	}
	return json.Unmarshal(raw, v)
}

// MarshalJSON writes the timestamp first followed by the payload fields in
// key order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + TimestampField + `":`)
	ts, err := json.Marshal(s.Timestamp.UTC().Format(timestampLayout))
	if err != nil {
		return nil, err
	}
	buf.Write(ts)

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		if k != TimestampField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		if len(s.Fields[k]) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(s.Fields[k])
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flattened form written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rawTS, ok := fields[TimestampField]
	if !ok {
		return fmt.Errorf("missing %q field", TimestampField)
	}
	var ts string
	if err := json.Unmarshal(rawTS, &ts); err != nil {
		return fmt.Errorf("decoding %q: %w", TimestampField, err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", TimestampField, err)
	}
	delete(fields, TimestampField)

	s.Timestamp = parsed
	s.Fields = fields
	return nil
}

// fieldsOf flattens a marshalled payload. Objects contribute their own
// fields; anything else is stored under DataField. A payload field named
// "timestamp" is dropped so the write time always wins.
func fieldsOf(raw json.RawMessage) map[string]json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			if fields == nil {
				fields = map[string]json.RawMessage{}
			}
			delete(fields, TimestampField)
			return fields
		}
	}
	return map[string]json.RawMessage{DataField: trimmed}
}
