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

package memblock

import "fmt"

// Object is a block wrapping a value owned elsewhere, typically a foreign
// buffer. The free callback is called once with the value on final release.
type Object struct {
	refcount
	value    any
	freeFunc func(any) error
}

var _ Block = (*Object)(nil)

// NewObject returns a block wrapping v. free may be nil.
func NewObject(v any, free func(any) error) *Object {
	o := &Object{value: v, freeFunc: free}
	o.init(KindObject, o, o.free)
	return o
}

func (o *Object) free() error {
	v := o.value
	o.value = nil
	if o.freeFunc == nil {
		return nil
	}
	return o.freeFunc(v)
}

// Value returns the wrapped value.
func (o *Object) Value() any {
	return o.value
}

func (o *Object) String() string {
	return fmt.Sprintf("%s: %T", o.header(), o.value)
}
