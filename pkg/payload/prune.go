// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package payload

// Prune returns a copy of m without null or empty values at any mapping depth.
//
// Nested mappings are pruned before their own emptiness is checked, so a
// mapping whose children were all removed is removed from its parent too.
// Sequences are dropped when empty but their elements are left untouched.
// The input is not modified and Prune(Prune(m)) equals Prune(m).
func Prune(m *Map) *Map {
	out := NewMap()
	m.Range(func(k string, v Value) bool {
		if v.Kind() == KindMapping {
			v = Mapping(Prune(v.Map()))
		}
		if !v.Empty() {
			out.Set(k, v)
		}
		return true
	})
	return out
}
