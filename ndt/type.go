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
	"strings"
	"unsafe"
)

// Type is a type descriptor. The zero value is an uninitialized type.
//
// Builtin types are stored inline. Other types point to an immutable Extended
// implementation.
type Type struct {
	id  TypeID
	ext Extended
}

func newType(ext Extended) Type {
	return Type{id: ext.ID(), ext: ext}
}

// ID of the type.
func (t Type) ID() TypeID {
	return t.id
}

// IsValid returns false for the zero Type.
func (t Type) IsValid() bool {
	return t.id != Uninitialized
}

// IsBuiltin returns true for builtin scalar types.
func (t Type) IsBuiltin() bool {
	return t.ext == nil && t.id.IsBuiltin()
}

// Extended returns the implementation of a non-builtin type or nil.
func (t Type) Extended() Extended {
	return t.ext
}

// Kind of the type.
func (t Type) Kind() Kind {
	if t.ext != nil {
		return t.ext.Kind()
	}
	if !t.id.IsBuiltin() {
		return VoidKind
	}
	return builtins[t.id].kind
}

// DataSize returns the size in bytes of a value of the type. It is 0 for
// void and for symbolic types.
func (t Type) DataSize() int {
	if t.ext != nil {
		return t.ext.DataSize()
	}
	if !t.id.IsBuiltin() {
		return 0
	}
	return builtins[t.id].size
}

// Alignment returns the required alignment of a value of the type.
func (t Type) Alignment() int {
	if t.ext != nil {
		return t.ext.Alignment()
	}
	if !t.id.IsBuiltin() {
		return 1
	}
	return builtins[t.id].align
}

// Flags returns the flags of the type.
func (t Type) Flags() Flags {
	if t.ext != nil {
		return t.ext.Flags()
	}
	return 0
}

// IsExpression returns true if the type has an operand type distinct from its value type.
func (t Type) IsExpression() bool {
	return t.Flags()&FlagExpression != 0
}

// IsSymbolic returns true if the type is a pattern which cannot describe a value.
func (t Type) IsSymbolic() bool {
	return t.Flags()&FlagSymbolic != 0
}

// HasBlockrefs returns true if the arrmeta of the type references memory blocks.
func (t Type) HasBlockrefs() bool {
	return t.Flags()&FlagBlockref != 0
}

// ArrmetaSize returns the size of the arrmeta of a value of the type.
func (t Type) ArrmetaSize() int {
	if t.ext == nil {
		return 0
	}
	return t.ext.ArrmetaSize()
}

// Equal returns true if both types describe the same layout.
func (t Type) Equal(other Type) bool {
	if t.id != other.id {
		return false
	}
	if t.ext == other.ext {
		return true
	}
	if t.ext == nil || other.ext == nil {
		return false
	}
	return t.ext.Equal(other.ext)
}

// String returns the type string of the type. Concrete types parse back to
// an equal type.
func (t Type) String() string {
	b := strings.Builder{}
	t.print(&b)
	return b.String()
}

func (t Type) print(b *strings.Builder) {
	switch {
	case t.ext != nil:
		t.ext.Print(b)
	case t.id.IsBuiltin():
		b.WriteString(builtins[t.id].name)
	default:
		b.WriteString(t.id.String())
	}
}

// AsDim returns the dimension implementation of a dimension type.
func (t Type) AsDim() (Dim, bool) {
	d, ok := t.ext.(Dim)
	return d, ok
}

// AsExpr returns the expression implementation of an expression type.
func (t Type) AsExpr() (Expr, bool) {
	e, ok := t.ext.(Expr)
	return e, ok
}

// IsDim returns true if the type is a dimension, concrete or symbolic.
func (t Type) IsDim() bool {
	return t.Kind() == DimKind
}

// NDim returns the number of leading dimensions of the type. Variadic
// dimension patterns are not counted.
func (t Type) NDim() int {
	n := 0
	for {
		d, ok := t.AsDim()
		if !ok {
			return n
		}
		if d.Flags()&FlagVariadic == 0 {
			n++
		}
		t = d.ElementType()
	}
}

// ScalarType returns the type below all the leading dimensions.
func (t Type) ScalarType() Type {
	for {
		d, ok := t.AsDim()
		if !ok {
			return t
		}
		t = d.ElementType()
	}
}

// ValueType returns the type of the values of an expression type, the type
// itself otherwise.
func (t Type) ValueType() Type {
	if e, ok := t.AsExpr(); ok {
		return e.ValueType()
	}
	return t
}

// OperandType returns the storage type of an expression type, the type
// itself otherwise.
func (t Type) OperandType() Type {
	if e, ok := t.AsExpr(); ok {
		return e.OperandType()
	}
	return t
}

// IsLosslessAssignment returns true if every value of src can be assigned
// to t and converted back without loss.
func (t Type) IsLosslessAssignment(src Type) bool {
	if t.Equal(src) {
		return true
	}
	if t.ext != nil {
		return t.ext.IsLosslessAssignment(t, src)
	}
	if src.ext != nil {
		return src.ext.IsLosslessAssignment(t, src)
	}
	return isLosslessBuiltin(t.id, src.id)
}

// PrintData writes the text form of a value of the type.
func (t Type) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	if t.ext != nil {
		return t.ext.PrintData(b, meta, data)
	}
	return printBuiltin(b, t.id, data)
}

// FormatData returns the text form of a value of the type.
func (t Type) FormatData(meta Arrmeta, data unsafe.Pointer) (string, error) {
	b := strings.Builder{}
	err := t.PrintData(&b, meta, data)
	return b.String(), err
}
