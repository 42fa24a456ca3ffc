// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a document is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON document")

// Decode parses a JSON document into a Value. Object keys keep document order
// and numbers keep their source text as json.Number.
func Decode(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Null(), ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// DecodeMap parses a JSON document that must be an object.
func DecodeMap(data []byte) (*Map, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if v.Kind() != KindMapping {
		return nil, fmt.Errorf("expected a JSON object, got %s", v.Kind())
	}
	return v.Map(), nil
}

func fromResult(r gjson.Result) Value {
	switch {
	case r.IsObject():
		m := NewMap()
		r.ForEach(func(key, value gjson.Result) bool {
			m.Set(key.String(), fromResult(value))
			return true
		})
		return Mapping(m)
	case r.IsArray():
		items := []Value{}
		r.ForEach(func(_, value gjson.Result) bool {
			items = append(items, fromResult(value))
			return true
		})
		return Sequence(items...)
	}

	switch r.Type {
	case gjson.String:
		return Scalar(r.Str)
	case gjson.Number:
		return Scalar(json.Number(r.Raw))
	case gjson.True:
		return Scalar(true)
	case gjson.False:
		return Scalar(false)
	default:
		return Null()
	}
}
