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

package ndt

import (
	"fmt"

	"github.com/pkg/errors"
)

// IndexOutOfBoundsError is returned when an integer index is outside of a dimension.
type IndexOutOfBoundsError struct {
	Index   int
	Axis    int
	DimSize int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d is out of bounds for axis %d with size %d", e.Index, e.Axis, e.DimSize)
}

// RangeOutOfBoundsError is returned when a bound of a range is outside of a dimension.
type RangeOutOfBoundsError struct {
	Range   Index
	Axis    int
	DimSize int
}

func (e *RangeOutOfBoundsError) Error() string {
	return fmt.Sprintf("range %s is out of bounds for axis %d with size %d", e.Range, e.Axis, e.DimSize)
}

// TooManyIndicesError is returned when more indices than dimensions are applied.
type TooManyIndicesError struct {
	Count int
	NDim  int
}

func (e *TooManyIndicesError) Error() string {
	return fmt.Sprintf("too many indices: %d indices for %d dimensions", e.Count, e.NDim)
}

// TypeError is returned when no kernel exists for a pair of types.
type TypeError struct {
	Op       string
	Dst, Src Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s from %s to %s is not supported", e.Op, e.Src, e.Dst)
}

func assignmentError(dst, src Type) error {
	return errors.WithStack(&TypeError{Op: "assignment", Dst: dst, Src: src})
}

// NotComparableError is returned when two types cannot be compared with an operator.
type NotComparableError struct {
	Op       Comparison
	Lhs, Rhs Type
}

func (e *NotComparableError) Error() string {
	return fmt.Sprintf("cannot compare %s %s %s", e.Lhs, e.Op, e.Rhs)
}

func notComparable(op Comparison, lhs, rhs Type) error {
	return errors.WithStack(&NotComparableError{Op: op, Lhs: lhs, Rhs: rhs})
}

// InvalidArgumentError is returned on malformed arguments.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

func invalidArgument(format string, a ...any) error {
	return errors.WithStack(&InvalidArgumentError{Msg: fmt.Sprintf(format, a...)})
}

// ShapeMismatchError is returned when shapes cannot be broadcast together or
// when the number of operands or dimensions does not fit.
type ShapeMismatchError struct {
	Msg string
}

func (e *ShapeMismatchError) Error() string {
	return e.Msg
}

func shapeMismatch(format string, a ...any) error {
	return errors.WithStack(&ShapeMismatchError{Msg: fmt.Sprintf(format, a...)})
}

// ConversionError is returned by assignment kernels when a value cannot be
// represented in the destination type under the current error mode.
type ConversionError struct {
	Dst, Src Type
	Value    string
	Reason   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot assign %s value %s to %s: %s", e.Src, e.Value, e.Dst, e.Reason)
}

// ParseError is returned when a type string is malformed.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse type %q at column %d: %s", e.Input, e.Pos+1, e.Msg)
}
