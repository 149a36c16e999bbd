// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package typevar matches concrete types against symbolic type patterns and
// substitutes the bound type variables back into patterns.
//
// A Map carries the bindings across calls so that every occurrence of a
// variable in a signature binds to the same type:
//
//	m := typevar.NewMap()
//	typevar.Match(ndt.MustParse("3 * int32"), ndt.MustParse("Dims... * T"), m)
//	t, err := typevar.Substitute(ndt.MustParse("Dims... * T"), m, true)
package typevar

import (
	"iter"

	"github.com/gx-org/dynd/base/ordered"
	"github.com/gx-org/dynd/base/stringseq"
	"github.com/gx-org/dynd/ndt"
)

// Map binds type variable names to types.
//
// Scalar type variables are bound to scalar types, dimension variables to a
// dimension over void (for example "3 * void") and named ellipses to a
// dimension fragment.
type Map struct {
	vars *ordered.Map[string, ndt.Type]
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{vars: ordered.NewMap[string, ndt.Type]()}
}

// Bind sets the type of a variable, replacing any previous binding.
func (m *Map) Bind(name string, t ndt.Type) {
	m.vars.Store(name, t)
}

// Lookup returns the type bound to a variable.
func (m *Map) Lookup(name string) (ndt.Type, bool) {
	return m.vars.Load(name)
}

// Len returns the number of bound variables.
func (m *Map) Len() int {
	return m.vars.Size()
}

// All iterates over the bindings in the order in which they were made.
func (m *Map) All() iter.Seq2[string, ndt.Type] {
	return m.vars.Iter()
}

// Clone returns an independent copy of the map.
func (m *Map) Clone() *Map {
	return &Map{vars: m.vars.Clone()}
}

func (m *Map) commit(from *Map) {
	m.vars = from.vars
}

// bind binds name to t or, if name is already bound, checks that t is the
// same type.
func (m *Map) bind(name string, t ndt.Type) bool {
	if prev, ok := m.vars.Load(name); ok {
		return prev.Equal(t)
	}
	m.vars.Store(name, t)
	return true
}

func (m *Map) String() string {
	return "{" + stringseq.JoinPairs(m.vars.Iter(), ", ") + "}"
}
