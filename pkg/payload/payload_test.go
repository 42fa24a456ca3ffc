// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package payload

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("object keys keep document order", func(t *testing.T) {
		t.Parallel()

		m, err := DecodeMap([]byte(`{"z":"1","a":{"number":"1234","country_code":"555"},"m":[1,2.5,true,null]}`))
		require.NoError(t, err)

		assert.Equal(t, []string{"z", "a", "m"}, m.Keys())
		assert.Equal(t, []string{"number", "country_code"}, m.Lookup("a").Map().Keys())

		items := m.Lookup("m").Items()
		require.Len(t, items, 4)
		assert.Equal(t, json.Number("1"), items[0].Scalar())
		assert.Equal(t, "2.5", items[1].String())
		assert.Equal(t, true, items[2].Scalar())
		assert.True(t, items[3].IsNull())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		_, err := Decode([]byte(`{"access_token":`))
		require.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("non-object document", func(t *testing.T) {
		t.Parallel()

		v, err := Decode([]byte(`["a"]`))
		require.NoError(t, err)
		assert.Equal(t, KindSequence, v.Kind())

		_, err = DecodeMap([]byte(`["a"]`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected a JSON object, got sequence")
	})

	t.Run("round trip keeps order", func(t *testing.T) {
		t.Parallel()

		doc := `{"b":1,"a":{"y":"x","c":[]},"n":null}`
		m, err := DecodeMap([]byte(doc))
		require.NoError(t, err)

		out, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(out))
		assert.Equal(t, doc, string(out))
	})
}

func TestValueEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"null", Null(), true},
		{"nil scalar", Scalar(nil), true},
		{"empty string", Scalar(""), true},
		{"string", Scalar("x"), false},
		{"zero number", Scalar(json.Number("0")), false},
		{"false", Scalar(false), false},
		{"empty sequence", Sequence(), true},
		{"sequence", Sequence(Scalar("a")), false},
		{"empty mapping", Mapping(nil), true},
		{"mapping", FromAny(map[string]any{"a": 1}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.value.Empty())
		})
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "removes nil and empty values",
			in: map[string]any{
				"id":    "1",
				"name":  "",
				"email": nil,
				"tags":  []any{},
				"count": 0,
			},
			want: map[string]any{"id": "1", "count": 0},
		},
		{
			name: "recurses into nested mappings",
			in: map[string]any{
				"address": map[string]any{
					"locality": "Springfield",
					"line_2":   "",
				},
			},
			want: map[string]any{
				"address": map[string]any{"locality": "Springfield"},
			},
		},
		{
			name: "removes mappings emptied by pruning",
			in: map[string]any{
				"id": "1",
				"outer": map[string]any{
					"inner": map[string]any{"a": nil, "b": ""},
				},
			},
			want: map[string]any{"id": "1"},
		},
		{
			name: "does not descend into sequences",
			in: map[string]any{
				"list": []any{"", nil, map[string]any{}},
			},
			want: map[string]any{
				"list": []any{"", nil, map[string]any{}},
			},
		},
		{
			name: "empty input",
			in:   map[string]any{},
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pruned := Prune(FromAny(tt.in).Map())
			got := pruned.Any()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Prune() mismatch (-want +got):\n%s", diff)
			}

			again := Prune(pruned).Any()
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("Prune() is not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestPruneDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	m, err := DecodeMap([]byte(`{"a":"","b":{"c":null}}`))
	require.NoError(t, err)

	pruned := Prune(m)

	assert.Equal(t, 0, pruned.Len())
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, []string{"c"}, m.Lookup("b").Map().Keys())
}

func TestMapOperations(t *testing.T) {
	t.Parallel()

	m := NewMap()
	m.Set("a", Scalar("1"))
	m.Set("b", Scalar("2"))
	m.Set("a", Scalar("3"))

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, "3", m.Lookup("a").String())

	clone := m.Clone()
	m.Delete("a")
	m.Delete("missing")
	assert.Equal(t, []string{"b"}, m.Keys())
	assert.Equal(t, []string{"a", "b"}, clone.Keys())

	var nilMap *Map
	assert.Equal(t, 0, nilMap.Len())
	assert.True(t, nilMap.Lookup("x").IsNull())
	assert.Equal(t, map[string]any{}, nilMap.Any())
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	v := FromAny(map[string]any{
		"b":       "2",
		"a":       "1",
		"headers": map[string]string{"X-B": "b", "X-A": "a"},
		"scopes":  []string{"MERCHANT_PROFILE_READ"},
	})

	require.Equal(t, KindMapping, v.Kind())
	assert.Equal(t, []string{"a", "b", "headers", "scopes"}, v.Map().Keys())
	assert.Equal(t, []string{"X-A", "X-B"}, v.Map().Lookup("headers").Map().Keys())
	assert.Equal(t, []any{"MERCHANT_PROFILE_READ"}, v.Map().Lookup("scopes").Any())
}
