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
	"go.uber.org/multierr"
)

// Substitute replaces the variables of a pattern by the types bound in m.
//
// With failIfUnbound, every variable of the pattern must be bound to a
// concrete type or to a dimension fragment; all the violations are reported
// in the returned error.
// Otherwise, unbound variables are left in the result.
func Substitute(pattern ndt.Type, m *Map, failIfUnbound bool) (ndt.Type, error) {
	if !pattern.IsSymbolic() {
		return pattern, nil
	}
	s := substituter{vars: m, strict: failIfUnbound, pattern: pattern}
	return s.subst(pattern)
}

type substituter struct {
	vars    *Map
	strict  bool
	pattern ndt.Type
}

func (s *substituter) unbound(name string) error {
	return errors.WithStack(&UnboundError{Name: name, Pattern: s.pattern})
}

func (s *substituter) invalid(format string, a ...any) error {
	return errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf(format, a...)})
}

// lookup returns the binding of a variable. ok is false if the variable is
// unbound and can be left in the result.
func (s *substituter) lookup(name string) (t ndt.Type, ok bool, err error) {
	t, ok = s.vars.Lookup(name)
	if !ok {
		if s.strict {
			return ndt.Type{}, false, s.unbound(name)
		}
		return ndt.Type{}, false, nil
	}
	if s.strict && t.ID() != ndt.DimFragmentID && t.IsSymbolic() {
		return ndt.Type{}, false, s.invalid("type variable %s is bound to symbolic type %s", name, t)
	}
	return t, true, nil
}

func (s *substituter) subst(t ndt.Type) (ndt.Type, error) {
	if !t.IsSymbolic() {
		return t, nil
	}
	switch t.ID() {
	case ndt.TypevarID:
		name, _ := ndt.TypevarName(t)
		bound, ok, err := s.lookup(name)
		if err != nil || !ok {
			return t, err
		}
		return bound, nil
	case ndt.TypevarDimID:
		return s.substTypevarDim(t)
	case ndt.EllipsisDimID:
		return s.substEllipsis(t)
	case ndt.PowDimID:
		return s.substPow(t)
	case ndt.FixedDimID, ndt.VarDimID:
		d, _ := t.AsDim()
		elem, err := s.subst(d.ElementType())
		if err != nil {
			return ndt.Type{}, err
		}
		return d.WithElement(elem)
	case ndt.TupleID, ndt.StructID:
		return s.substFields(t)
	case ndt.ByteswapID, ndt.ConvertID, ndt.ViewID:
		value, operand, _ := ndt.ExprParts(t)
		value, errV := s.subst(value)
		if operand.IsValid() {
			var errO error
			operand, errO = s.subst(operand)
			errV = multierr.Append(errV, errO)
		}
		if errV != nil {
			return ndt.Type{}, errV
		}
		return ndt.WithParts(t, value, operand)
	case ndt.FuncProtoID:
		params, ret, _ := ndt.FuncProto(t)
		var err error
		newParams := make([]ndt.Type, len(params))
		for i, p := range params {
			var errP error
			newParams[i], errP = s.subst(p)
			err = multierr.Append(err, errP)
		}
		newRet, errR := s.subst(ret)
		if err = multierr.Append(err, errR); err != nil {
			return ndt.Type{}, err
		}
		return ndt.MakeFuncProto(newParams, newRet)
	}
	return t, nil
}

func (s *substituter) substTypevarDim(t ndt.Type) (ndt.Type, error) {
	d, _ := t.AsDim()
	elem, err := s.subst(d.ElementType())
	name, _ := ndt.TypevarName(t)
	bound, ok, errB := s.lookup(name)
	if err = multierr.Append(err, errB); err != nil {
		return ndt.Type{}, err
	}
	if !ok {
		return d.WithElement(elem)
	}
	bd, isDim := bound.AsDim()
	if !isDim {
		return ndt.Type{}, s.invalid("dimension variable %s is bound to %s which is not a dimension", name, bound)
	}
	return bd.WithElement(elem)
}

func (s *substituter) substEllipsis(t ndt.Type) (ndt.Type, error) {
	d, _ := t.AsDim()
	elem, err := s.subst(d.ElementType())
	name, named := ndt.TypevarName(t)
	if !named {
		if s.strict {
			err = multierr.Append(err, s.unbound(""))
		}
		if err != nil {
			return ndt.Type{}, err
		}
		return d.WithElement(elem)
	}
	bound, ok, errB := s.lookup(name)
	if err = multierr.Append(err, errB); err != nil {
		return ndt.Type{}, err
	}
	if !ok {
		return d.WithElement(elem)
	}
	if _, isFragment := ndt.FragmentDims(bound); !isFragment {
		return ndt.Type{}, s.invalid("ellipsis %s is bound to %s which is not a dimension fragment", name, bound)
	}
	return ndt.ApplyFragment(bound, elem)
}

func (s *substituter) substPow(t ndt.Type) (ndt.Type, error) {
	d, _ := t.AsDim()
	base, exponent, _ := ndt.PowDimParts(t)
	elem, err := s.subst(d.ElementType())
	base, errBase := s.subst(base)
	err = multierr.Append(err, errBase)
	bound, ok, errB := s.lookup(exponent)
	if err = multierr.Append(err, errB); err != nil {
		return ndt.Type{}, err
	}
	if !ok {
		return ndt.MakePowDim(base, exponent, elem)
	}
	if renamed, isDimVar := ndt.TypevarName(bound); isDimVar && bound.ID() == ndt.TypevarDimID {
		return ndt.MakePowDim(base, renamed, elem)
	}
	count, isFixed := ndt.FixedDimSize(bound)
	if !isFixed || count < 0 {
		return ndt.Type{}, s.invalid("exponent %s is bound to %s which is not a fixed dimension", exponent, bound)
	}
	bd, isDim := base.AsDim()
	if !isDim {
		return ndt.Type{}, s.invalid("base %s of %s is not a dimension", base, t)
	}
	for range count {
		if elem, err = bd.WithElement(elem); err != nil {
			return ndt.Type{}, err
		}
	}
	return elem, nil
}

func (s *substituter) substFields(t ndt.Type) (ndt.Type, error) {
	fields, names, _ := ndt.Fields(t)
	var err error
	newFields := make([]ndt.Type, len(fields))
	for i, f := range fields {
		var errF error
		newFields[i], errF = s.subst(f)
		err = multierr.Append(err, errF)
	}
	if err != nil {
		return ndt.Type{}, err
	}
	if t.ID() == ndt.StructID {
		return ndt.MakeStruct(names, newFields)
	}
	return ndt.MakeTuple(newFields...)
}

// SubstituteShape replaces the dimensions of a pattern by fixed dimensions
// with the sizes of shape, outermost first. The pattern needs exactly
// len(shape) leading dimensions. Fixed dimensions of the pattern must have
// the same size as in the shape; var dimensions are kept.
func SubstituteShape(pattern ndt.Type, shape []int) (ndt.Type, error) {
	dims, elem := leadingDims(pattern)
	if len(dims) != len(shape) {
		return ndt.Type{}, errors.WithStack(&ndt.ShapeMismatchError{
			Msg: fmt.Sprintf("pattern %s has %d dimensions but shape %v has %d", pattern, len(dims), shape, len(shape)),
		})
	}
	res := elem
	for i := len(dims) - 1; i >= 0; i-- {
		dim, size := dims[i], shape[i]
		d, _ := dim.AsDim()
		var err error
		switch dim.ID() {
		case ndt.FixedDimID, ndt.TypevarDimID:
			if want, ok := ndt.FixedDimSize(dim); ok && want >= 0 && want != size {
				return ndt.Type{}, errors.WithStack(&ndt.ShapeMismatchError{
					Msg: fmt.Sprintf("dimension %d of %s has size %d but shape %v requires %d", i, pattern, want, shape, size),
				})
			}
			if size < 0 {
				return ndt.Type{}, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("negative size %d in shape %v", size, shape)})
			}
			res, err = ndt.MakeFixedDim(size, res)
		case ndt.VarDimID:
			res, err = d.WithElement(res)
		default:
			return ndt.Type{}, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot substitute a shape into dimension %s of %s", dim, pattern)})
		}
		if err != nil {
			return ndt.Type{}, err
		}
	}
	return res, nil
}
