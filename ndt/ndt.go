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

// Package ndt implements the type descriptors of dynd arrays.
//
// A Type describes the layout of a scalar or of a multidimensional container.
// Builtin scalar types are plain values. Every other type is an Extended
// implementation shared by all the Type values referring to it. Each type owns
// the interpretation of the arrmeta of its values and builds the kernels
// assigning, comparing and combining them.
package ndt

import "fmt"

// TypeID identifies a type implementation.
type TypeID int

const (
	// Uninitialized is the ID of the zero Type.
	Uninitialized TypeID = iota
	BoolID
	Int8ID
	Int16ID
	Int32ID
	Int64ID
	Uint8ID
	Uint16ID
	Uint32ID
	Uint64ID
	Float32ID
	Float64ID
	Complex64ID
	Complex128ID
	VoidID

	FixedStringID
	StringID
	FixedBytesID
	FixedDimID
	VarDimID
	TupleID
	StructID
	ByteswapID
	ConvertID
	ViewID
	TypevarID
	TypevarDimID
	EllipsisDimID
	PowDimID
	DimFragmentID
	FuncProtoID
)

var typeIDNames = [...]string{
	Uninitialized: "uninitialized",
	BoolID:        "bool",
	Int8ID:        "int8",
	Int16ID:       "int16",
	Int32ID:       "int32",
	Int64ID:       "int64",
	Uint8ID:       "uint8",
	Uint16ID:      "uint16",
	Uint32ID:      "uint32",
	Uint64ID:      "uint64",
	Float32ID:     "float32",
	Float64ID:     "float64",
	Complex64ID:   "complex64",
	Complex128ID:  "complex128",
	VoidID:        "void",
	FixedStringID: "fixed_string",
	StringID:      "string",
	FixedBytesID:  "fixed_bytes",
	FixedDimID:    "fixed_dim",
	VarDimID:      "var_dim",
	TupleID:       "tuple",
	StructID:      "struct",
	ByteswapID:    "byteswap",
	ConvertID:     "convert",
	ViewID:        "view",
	TypevarID:     "typevar",
	TypevarDimID:  "typevar_dim",
	EllipsisDimID: "ellipsis_dim",
	PowDimID:      "pow_dim",
	DimFragmentID: "dim_fragment",
	FuncProtoID:   "funcproto",
}

func (id TypeID) String() string {
	if id < 0 || int(id) >= len(typeIDNames) {
		return fmt.Sprintf("TypeID(%d)", int(id))
	}
	return typeIDNames[id]
}

// IsBuiltin returns true if the ID is the one of a builtin scalar type.
func (id TypeID) IsBuiltin() bool {
	return id > Uninitialized && id <= VoidID
}

// Kind groups types by the category of values they describe.
type Kind int

const (
	VoidKind Kind = iota
	BoolKind
	IntKind
	UintKind
	RealKind
	ComplexKind
	StringKind
	BytesKind
	DimKind
	TupleKind
	StructKind
	ExpressionKind
	TypevarKind
	FuncKind
)

var kindNames = [...]string{
	VoidKind:       "void",
	BoolKind:       "bool",
	IntKind:        "int",
	UintKind:       "uint",
	RealKind:       "real",
	ComplexKind:    "complex",
	StringKind:     "string",
	BytesKind:      "bytes",
	DimKind:        "dim",
	TupleKind:      "tuple",
	StructKind:     "struct",
	ExpressionKind: "expression",
	TypevarKind:    "typevar",
	FuncKind:       "function",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsNumeric returns true for the kinds of the builtin numeric types.
func (k Kind) IsNumeric() bool {
	switch k {
	case BoolKind, IntKind, UintKind, RealKind, ComplexKind:
		return true
	}
	return false
}

// Flags are properties of a type that propagate to the types containing it.
type Flags uint

const (
	// FlagExpression is set on types with an operand type distinct from their value type.
	FlagExpression Flags = 1 << iota
	// FlagSymbolic is set on patterns which cannot describe a value.
	FlagSymbolic
	// FlagBlockref is set on types whose arrmeta references memory blocks.
	FlagBlockref
	// FlagVariadic is set on dimension patterns matching any number of dimensions.
	FlagVariadic
)

// propagated are the flags a container inherits from its children.
const propagated = FlagExpression | FlagSymbolic | FlagBlockref
