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

// mantissaBits is the number of bits an integer can have to be represented
// exactly by a floating point type of a given size.
func mantissaBits(size int) int {
	if size == 4 {
		return 24
	}
	return 53
}

// isLosslessBuiltin returns true if every value of the builtin type src has
// an exact representation in the builtin type dst.
func isLosslessBuiltin(dst, src TypeID) bool {
	if dst == src {
		return true
	}
	if !dst.IsBuiltin() || !src.IsBuiltin() || dst == VoidID || src == VoidID {
		return false
	}
	d, s := builtins[dst], builtins[src]
	// Complex types are compared through their components.
	dsize, ssize := d.size, s.size
	if d.kind == ComplexKind {
		dsize /= 2
	}
	if s.kind == ComplexKind {
		ssize /= 2
	}
	switch s.kind {
	case BoolKind:
		return d.kind != BoolKind
	case IntKind:
		switch d.kind {
		case IntKind:
			return dsize >= ssize
		case RealKind, ComplexKind:
			return 8*ssize <= mantissaBits(dsize)
		}
	case UintKind:
		switch d.kind {
		case UintKind:
			return dsize >= ssize
		case IntKind:
			return dsize > ssize
		case RealKind, ComplexKind:
			return 8*ssize <= mantissaBits(dsize)
		}
	case RealKind:
		return (d.kind == RealKind || d.kind == ComplexKind) && dsize >= ssize
	case ComplexKind:
		return d.kind == ComplexKind && dsize >= ssize
	}
	return false
}
