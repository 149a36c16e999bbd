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

type builtinInfo struct {
	name  string
	kind  Kind
	size  int
	align int
}

var builtins = [...]builtinInfo{
	BoolID:       {name: "bool", kind: BoolKind, size: 1, align: 1},
	Int8ID:       {name: "int8", kind: IntKind, size: 1, align: 1},
	Int16ID:      {name: "int16", kind: IntKind, size: 2, align: 2},
	Int32ID:      {name: "int32", kind: IntKind, size: 4, align: 4},
	Int64ID:      {name: "int64", kind: IntKind, size: 8, align: 8},
	Uint8ID:      {name: "uint8", kind: UintKind, size: 1, align: 1},
	Uint16ID:     {name: "uint16", kind: UintKind, size: 2, align: 2},
	Uint32ID:     {name: "uint32", kind: UintKind, size: 4, align: 4},
	Uint64ID:     {name: "uint64", kind: UintKind, size: 8, align: 8},
	Float32ID:    {name: "float32", kind: RealKind, size: 4, align: 4},
	Float64ID:    {name: "float64", kind: RealKind, size: 8, align: 8},
	Complex64ID:  {name: "complex[float32]", kind: ComplexKind, size: 8, align: 4},
	Complex128ID: {name: "complex[float64]", kind: ComplexKind, size: 16, align: 8},
	VoidID:       {name: "void", kind: VoidKind, size: 0, align: 1},
}

// Builtin types.
var (
	Bool       = Type{id: BoolID}
	Int8       = Type{id: Int8ID}
	Int16      = Type{id: Int16ID}
	Int32      = Type{id: Int32ID}
	Int64      = Type{id: Int64ID}
	Uint8      = Type{id: Uint8ID}
	Uint16     = Type{id: Uint16ID}
	Uint32     = Type{id: Uint32ID}
	Uint64     = Type{id: Uint64ID}
	Float32    = Type{id: Float32ID}
	Float64    = Type{id: Float64ID}
	Complex64  = Type{id: Complex64ID}
	Complex128 = Type{id: Complex128ID}
	Void       = Type{id: VoidID}
)

// Builtin returns the builtin type with the given ID.
func Builtin(id TypeID) Type {
	if !id.IsBuiltin() {
		return Type{}
	}
	return Type{id: id}
}

// Scalar is the set of Go types with a builtin type.
type Scalar interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | complex64 | complex128
}

// TypeFor returns the builtin type of a Go scalar type.
func TypeFor[T Scalar]() Type {
	var z T
	switch any(z).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	panic("unreachable")
}

var builtinAliases = map[string]TypeID{
	"int":        Int32ID,
	"uint":       Uint32ID,
	"real":       Float64ID,
	"real32":     Float32ID,
	"real64":     Float64ID,
	"complex":    Complex128ID,
	"complex64":  Complex64ID,
	"complex128": Complex128ID,
}

func builtinByName(name string) (Type, bool) {
	for id := BoolID; id <= VoidID; id++ {
		if builtins[id].name == name {
			return Type{id: id}, true
		}
	}
	if id, ok := builtinAliases[name]; ok {
		return Type{id: id}, true
	}
	return Type{}, false
}
