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

package codegen

import (
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/ndt"
)

// Kernelize adapts a Go function to the single-value kernel convention.
func Kernelize[R, A ndt.Scalar](f func(A) R) ckernel.SingleFunc {
	return func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		*(*R)(dst) = f(*(*A)(src[0]))
		return nil
	}
}

// KernelizeErr adapts a Go function returning an error.
func KernelizeErr[R, A ndt.Scalar](f func(A) (R, error)) ckernel.SingleFunc {
	return func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		r, err := f(*(*A)(src[0]))
		if err != nil {
			return err
		}
		*(*R)(dst) = r
		return nil
	}
}
