package formulation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// OrderedMap is a string-keyed map that remembers insertion order and
// serializes as a JSON object in that order.
type OrderedMap[V any] struct {
	keys []string
	vals map[string]V
}

// Len returns the number of entries.
func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil || m.vals == nil {
		return zero, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set stores v, keeping the original position of an existing key.
func (m *OrderedMap[V]) Set(key string, v V) {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// SetIfAbsent stores v only when key is new and reports whether it did.
func (m *OrderedMap[V]) SetIfAbsent(key string, v V) bool {
	if _, ok := m.Get(key); ok {
		return false
	}
	m.Set(key, v)
	return true
}

// Clone returns a shallow copy of the map structure.
func (m *OrderedMap[V]) Clone() OrderedMap[V] {
	var out OrderedMap[V]
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.vals[k])
	}
	return out
}

// MarshalJSON writes the entries in insertion order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping document key order.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	*m = OrderedMap[V]{}
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		return nil
	}
	if !res.IsObject() {
		return fmt.Errorf("expected JSON object, got %s", res.Type)
	}
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		var v V
		if err = json.Unmarshal([]byte(value.Raw), &v); err != nil {
			err = fmt.Errorf("decode %q: %w", key.String(), err)
			return false
		}
		m.Set(key.String(), v)
		return true
	})
	return err
}
