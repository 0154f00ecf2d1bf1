package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
)

// Serialization helpers for converting between Go values and Redis hashes
//
// A root node is a Redis hash whose fields are the root's children, each
// holding a JSON document. Reading the node back produces one JSON object,
// so a root behaves like a single document to subscribers.

// ErrNotObject is returned when a root path is written with a value that does
// not encode to a JSON object.
var ErrNotObject = errors.New("root value must encode to a JSON object")

// codec is the JSON configuration used for every stored value.
// Sorted map keys keep encodings of equal states byte-identical.
var codec = sonic.ConfigStd

// Op is the kind of write that produced a change notification.
type Op string

const (
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is the payload published on a root's changes channel.
type Change struct {
	Path string `json:"path"`
	Op   Op     `json:"op"`
}

// Snapshot is the full state of a path at one point in time.
type Snapshot struct {
	Path   string          `json:"path"`
	Exists bool            `json:"exists"`
	Value  json.RawMessage `json:"value"` // JSON "null" when Exists is false
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return nil
	}
	if err := codec.Unmarshal(s.Value, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return nil
}

// Children returns the snapshot's members keyed by child id.
// Returns an empty map for a path that does not exist.
func (s Snapshot) Children() (map[string]json.RawMessage, error) {
	children := make(map[string]json.RawMessage)
	if !s.Exists {
		return children, nil
	}
	if err := codec.Unmarshal(s.Value, &children); err != nil {
		return nil, fmt.Errorf("failed to decode children of %s: %w", s.Path, err)
	}
	return children, nil
}

// Equal reports whether two snapshots carry the same state.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Path == other.Path && s.Exists == other.Exists && bytes.Equal(s.Value, other.Value)
}

func missing(path string) Snapshot {
	return Snapshot{Path: path, Exists: false, Value: json.RawMessage("null")}
}

// encodeValue marshals a value for storage in a hash field.
func encodeValue(v any) (string, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return string(data), nil
}

// ValueToHash converts a root value into hash fields, one per top-level member.
// Returns ErrNotObject if the value is not a JSON object.
func ValueToHash(v any) (map[string]interface{}, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var members map[string]json.RawMessage
	if err := codec.Unmarshal(data, &members); err != nil || members == nil {
		return nil, ErrNotObject
	}

	hash := make(map[string]interface{}, len(members))
	for k, raw := range members {
		hash[k] = string(raw)
	}
	return hash, nil
}

// HashToJSON rebuilds the JSON object of a root from its hash fields.
// Members are written in key order.
func HashToJSON(hash map[string]string) (json.RawMessage, error) {
	keys := make([]string, 0, len(hash))
	for k := range hash {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := codec.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %q: %w", k, err)
		}
		if !codec.Valid([]byte(hash[k])) {
			return nil, fmt.Errorf("field %q does not hold valid JSON", k)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(hash[k])
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes()), nil
}

// mergeFields overlays fields onto the JSON object stored in current.
// An empty current value starts from an empty object.
func mergeFields(current string, fields map[string]any) (string, error) {
	members := make(map[string]json.RawMessage)
	if current != "" {
		if err := codec.Unmarshal([]byte(current), &members); err != nil || members == nil {
			return "", ErrNotObject
		}
	}
	for k, v := range fields {
		raw, err := codec.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal field %q: %w", k, err)
		}
		members[k] = raw
	}
	return encodeValue(members)
}
