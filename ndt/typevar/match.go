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

package typevar

import (
	"fmt"

	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

// Match returns true if concrete is an instance of pattern, binding the
// variables of pattern in m. m is only modified when the match succeeds.
// A variable already bound in m has to match the same type again, except
// for named ellipses, which unify by broadcasting: Dims bound to [3] matches
// a fragment [1] and stays bound to [3].
func Match(concrete, pattern ndt.Type, m *Map) bool {
	work := m.Clone()
	if !match(concrete, pattern, work) {
		return false
	}
	m.commit(work)
	return true
}

// MatchSignature matches the types of the arguments of a call against the
// parameters of a function prototype. It returns the result type of the
// prototype with all its variables substituted.
func MatchSignature(proto ndt.Type, args []ndt.Type, m *Map) (ndt.Type, error) {
	params, ret, ok := ndt.FuncProto(proto)
	if !ok {
		return ndt.Type{}, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("%s is not a function prototype", proto)})
	}
	if len(params) != len(args) {
		return ndt.Type{}, errors.WithStack(&ndt.ShapeMismatchError{
			Msg: fmt.Sprintf("%s expects %d arguments but got %d", proto, len(params), len(args)),
		})
	}
	work := m.Clone()
	for i, param := range params {
		if !match(args[i], param, work) {
			return ndt.Type{}, errors.WithStack(&MismatchError{Index: i, Param: param, Arg: args[i]})
		}
	}
	res, err := Substitute(ret, work, true)
	if err != nil {
		return ndt.Type{}, err
	}
	m.commit(work)
	return res, nil
}

func match(concrete, pattern ndt.Type, m *Map) bool {
	if !pattern.IsSymbolic() {
		return concrete.Equal(pattern)
	}
	switch pattern.ID() {
	case ndt.TypevarID:
		if concrete.IsDim() || concrete.Kind() == ndt.FuncKind {
			return false
		}
		name, _ := ndt.TypevarName(pattern)
		return m.bind(name, concrete)
	case ndt.FixedDimID, ndt.VarDimID, ndt.TypevarDimID, ndt.EllipsisDimID, ndt.PowDimID:
		return matchDims(concrete, pattern, m)
	case ndt.TupleID, ndt.StructID:
		return matchFields(concrete, pattern, m)
	case ndt.ByteswapID, ndt.ConvertID, ndt.ViewID:
		return matchExpr(concrete, pattern, m)
	case ndt.FuncProtoID:
		return matchFuncProto(concrete, pattern, m)
	}
	return concrete.Equal(pattern)
}

func leadingDims(t ndt.Type) (dims []ndt.Type, elem ndt.Type) {
	for {
		d, ok := t.AsDim()
		if !ok {
			return dims, t
		}
		dims = append(dims, t)
		t = d.ElementType()
	}
}

func isVariadic(t ndt.Type) bool {
	return t.ID() == ndt.EllipsisDimID || t.ID() == ndt.PowDimID
}

// matchDims matches the leading dimensions of concrete against the ones of
// pattern. Literal pattern dimensions are matched first from the outside and
// then from the inside; a variadic dimension absorbs what is left.
func matchDims(concrete, pattern ndt.Type, m *Map) bool {
	cdims, celem := leadingDims(concrete)
	pdims, pelem := leadingDims(pattern)
	for _, d := range cdims {
		if isVariadic(d) {
			return concrete.Equal(pattern)
		}
	}
	variadic := -1
	for i, d := range pdims {
		if !isVariadic(d) {
			continue
		}
		if variadic >= 0 {
			// Only one variadic dimension per pattern.
			return false
		}
		variadic = i
	}
	if variadic < 0 {
		if len(cdims) != len(pdims) {
			return false
		}
		for i, p := range pdims {
			if !matchDim(cdims[i], p, m) {
				return false
			}
		}
		return match(celem, pelem, m)
	}
	prefix, suffix := pdims[:variadic], pdims[variadic+1:]
	if len(cdims) < len(prefix)+len(suffix) {
		return false
	}
	for i, p := range prefix {
		if !matchDim(cdims[i], p, m) {
			return false
		}
	}
	shift := len(cdims) - len(suffix)
	for i, p := range suffix {
		if !matchDim(cdims[shift+i], p, m) {
			return false
		}
	}
	if !matchVariadic(cdims[len(prefix):shift], pdims[variadic], m) {
		return false
	}
	return match(celem, pelem, m)
}

// matchDim matches one dimension, ignoring its element type.
func matchDim(c, p ndt.Type, m *Map) bool {
	switch p.ID() {
	case ndt.FixedDimID:
		want, _ := ndt.FixedDimSize(p)
		got, ok := ndt.FixedDimSize(c)
		return ok && (want < 0 || got == want)
	case ndt.VarDimID:
		return c.ID() == ndt.VarDimID
	case ndt.TypevarDimID:
		bound, err := overVoid(c)
		if err != nil {
			return false
		}
		name, _ := ndt.TypevarName(p)
		return m.bind(name, bound)
	}
	return false
}

func overVoid(dim ndt.Type) (ndt.Type, error) {
	d, ok := dim.AsDim()
	if !ok {
		return ndt.Type{}, errors.Errorf("%s is not a dimension", dim)
	}
	return d.WithElement(ndt.Void)
}

func matchVariadic(cdims []ndt.Type, p ndt.Type, m *Map) bool {
	if p.ID() == ndt.PowDimID {
		base, exponent, _ := ndt.PowDimParts(p)
		for _, c := range cdims {
			if !matchDim(c, base, m) {
				return false
			}
		}
		count, err := ndt.MakeFixedDim(len(cdims), ndt.Void)
		if err != nil {
			return false
		}
		return m.bind(exponent, count)
	}
	name, named := ndt.TypevarName(p)
	if !named {
		return true
	}
	fragment, err := fragmentOf(cdims)
	if err != nil {
		return false
	}
	prev, ok := m.Lookup(name)
	if !ok {
		m.Bind(name, fragment)
		return true
	}
	merged, ok := ndt.BroadcastFragments(prev, fragment)
	if !ok {
		return false
	}
	m.Bind(name, merged)
	return true
}

func fragmentOf(cdims []ndt.Type) (ndt.Type, error) {
	dims := make([]int, len(cdims))
	for i, c := range cdims {
		switch c.ID() {
		case ndt.FixedDimID:
			dims[i], _ = ndt.FixedDimSize(c)
		case ndt.VarDimID:
			dims[i] = ndt.FragmentVar
		default:
			return ndt.Type{}, errors.Errorf("dimension %s cannot be part of a fragment", c)
		}
	}
	return ndt.MakeDimFragment(dims)
}

func matchFields(concrete, pattern ndt.Type, m *Map) bool {
	if concrete.ID() != pattern.ID() {
		return false
	}
	cfields, cnames, _ := ndt.Fields(concrete)
	pfields, pnames, _ := ndt.Fields(pattern)
	if len(cfields) != len(pfields) {
		return false
	}
	for i, p := range pfields {
		if pnames != nil && cnames[i] != pnames[i] {
			return false
		}
		if !match(cfields[i], p, m) {
			return false
		}
	}
	return true
}

func matchExpr(concrete, pattern ndt.Type, m *Map) bool {
	if concrete.ID() != pattern.ID() {
		return false
	}
	cvalue, coperand, _ := ndt.ExprParts(concrete)
	pvalue, poperand, _ := ndt.ExprParts(pattern)
	if !match(cvalue, pvalue, m) {
		return false
	}
	if !poperand.IsValid() {
		return true
	}
	return match(coperand, poperand, m)
}

func matchFuncProto(concrete, pattern ndt.Type, m *Map) bool {
	cparams, cret, ok := ndt.FuncProto(concrete)
	if !ok {
		return false
	}
	pparams, pret, _ := ndt.FuncProto(pattern)
	if len(cparams) != len(pparams) {
		return false
	}
	for i, p := range pparams {
		if !match(cparams[i], p, m) {
			return false
		}
	}
	return match(cret, pret, m)
}
