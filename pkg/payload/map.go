// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"encoding/json"
	"slices"
)

// Map is an insertion-ordered string-keyed mapping. A nil *Map behaves as an
// empty, read-only mapping.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty mapping.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Null(), false
	}
	v, ok := m.values[key]
	return v, ok
}

// Lookup returns the value stored under key, or null when absent.
func (m *Map) Lookup(key string) Value {
	v, _ := m.Get(key)
	return v
}

// Set stores v under key. Existing keys keep their position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := NewMap()
	m.Range(func(k string, v Value) bool {
		out.Set(k, cloneValue(v))
		return true
	})
	return out
}

// Any converts m to a map[string]any.
func (m *Map) Any() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = v.Any()
		return true
	})
	return out
}

// MarshalJSON encodes m with keys in order.
func (m *Map) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	first := true
	var err error
	m.Range(func(k string, v Value) bool {
		if !first {
			buf = append(buf, ',')
		}
		first = false

		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = v.MarshalJSON(); err != nil {
			return false
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeMap(data)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = cloneValue(item)
		}
		return Sequence(items...)
	case KindMapping:
		return Mapping(v.fields.Clone())
	default:
		return v
	}
}
