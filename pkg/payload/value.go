// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package payload models provider JSON documents as tagged values.
//
// A Value is exactly one of null, scalar, sequence or mapping. Mappings keep
// their keys in document order, which matters for fields that are derived by
// concatenating the values of a sub-object.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNull is JSON null or an absent value.
	KindNull Kind = iota
	// KindScalar is a string, number or boolean.
	KindScalar
	// KindSequence is a JSON array.
	KindSequence
	// KindMapping is a JSON object.
	KindMapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a tagged JSON value. The zero Value is null.
type Value struct {
	kind   Kind
	scalar any
	items  []Value
	fields *Map
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// Scalar wraps a string, bool or number. A nil argument yields null.
func Scalar(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindScalar, scalar: v}
}

// Sequence wraps a list of values.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// Mapping wraps m. A nil map yields an empty mapping.
func Mapping(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMapping, fields: m}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Scalar returns the wrapped scalar, or nil for other kinds.
func (v Value) Scalar() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// Items returns the elements of a sequence, or nil for other kinds.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.items
}

// Map returns the fields of a mapping, or nil for other kinds.
func (v Value) Map() *Map {
	if v.kind != KindMapping {
		return nil
	}
	return v.fields
}

// Empty reports whether v is null, an empty string, an empty sequence or an
// empty mapping. Numbers and booleans are never empty.
func (v Value) Empty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindScalar:
		s, ok := v.scalar.(string)
		return ok && s == ""
	case KindSequence:
		return len(v.items) == 0
	case KindMapping:
		return v.fields.Len() == 0
	default:
		return true
	}
}

// String renders a scalar as text. Numbers keep their source representation.
// Null renders as the empty string; sequences and mappings render as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindScalar:
		switch s := v.scalar.(type) {
		case string:
			return s
		case json.Number:
			return s.String()
		case bool:
			return strconv.FormatBool(s)
		default:
			return fmt.Sprint(s)
		}
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Any converts v to plain Go values: nil, scalars, []any and map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Any()
		}
		return out
	case KindMapping:
		return v.fields.Any()
	default:
		return nil
	}
}

// MarshalJSON encodes v, preserving mapping key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindSequence:
		buf := []byte{'['}
		for i, item := range v.items {
			if i > 0 {
				buf = append(buf, ',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
		return append(buf, ']'), nil
	case KindMapping:
		return v.fields.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// FromAny converts plain Go values into a Value. Go maps carry no order, so
// their keys are sorted.
func FromAny(in any) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Map:
		return Mapping(t)
	case map[string]any:
		m := NewMap()
		for _, k := range sortedKeys(t) {
			m.Set(k, FromAny(t[k]))
		}
		return Mapping(m)
	case map[string]string:
		m := NewMap()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, Scalar(t[k]))
		}
		return Mapping(m)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Sequence(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Scalar(item)
		}
		return Sequence(items...)
	default:
		return Scalar(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
