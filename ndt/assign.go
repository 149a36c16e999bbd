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
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/pkg/errors"
)

// checkRequest rejects requests for which no kernel can be built.
func checkRequest(req ckernel.Request, types ...Type) error {
	if req.Target != ckernel.Host {
		return invalidArgument("%s kernels are not supported", req)
	}
	for _, t := range types {
		if !t.IsValid() {
			return invalidArgument("cannot build a kernel for an uninitialized type")
		}
		if t.IsSymbolic() {
			return invalidArgument("cannot build a kernel for symbolic type %s", t)
		}
	}
	return nil
}

// MakeAssignmentKernel emits at off a kernel assigning values of type src
// to values of type dst and returns the next free offset.
//
// Builtin types are handled directly. Otherwise the destination type builds
// the kernel, unless the destination is builtin, in which case the source
// type does. A type which cannot absorb the other side returns a TypeError.
func MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if err := checkRequest(req, dst, src); err != nil {
		return off, err
	}
	switch {
	case dst.ext == nil && src.ext == nil:
		return makeBuiltinAssignment(b, off, dst, src, req, ectx)
	case dst.ext == nil:
		ectx.Log().Debug("assignment delegated to source", "dst", dst, "src", src)
		return src.ext.MakeAssignmentKernel(b, off, dst, dstMeta, src, srcMeta, req, ectx)
	}
	return dst.ext.MakeAssignmentKernel(b, off, dst, dstMeta, src, srcMeta, req, ectx)
}

// Assign assigns a single value of type src to a value of type dst.
func Assign(dst Type, dstMeta Arrmeta, dstData unsafe.Pointer, src Type, srcMeta Arrmeta, srcData unsafe.Pointer, ectx *eval.Context) error {
	b := ckernel.NewBuilder()
	defer b.Reset()
	if _, err := MakeAssignmentKernel(b, 0, dst, dstMeta, src, srcMeta, ckernel.SingleHost, ectx); err != nil {
		return err
	}
	fn, err := b.Single(0)
	if err != nil {
		return err
	}
	return fn(dstData, []unsafe.Pointer{srcData})
}

func conversionError(dst, src Type, v scalarValue, l loss) error {
	return errors.WithStack(&ConversionError{Dst: dst, Src: src, Value: v.String(), Reason: l.String()})
}

func makeBuiltinAssignment(b *ckernel.Builder, off int, dst, src Type, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.id == VoidID || src.id == VoidID {
		if dst.id == src.id {
			return makeMemcpy(b, off, 0, req, "assign void")
		}
		return off, assignmentError(dst, src)
	}
	if dst.id == src.id {
		return makeMemcpy(b, off, dst.DataSize(), req, "copy "+dst.String())
	}
	rec, err := b.Reserve(off, req, "assign "+src.String()+" to "+dst.String())
	if err != nil {
		return off, err
	}
	mode := ectx.ErrMode
	if dst.IsLosslessAssignment(src) {
		mode = eval.ErrorNone
	}
	dstID, srcID := dst.id, src.id
	rec.SetFunc(func(dstData unsafe.Pointer, srcData []unsafe.Pointer) error {
		v := loadScalar(srcID, srcData[0])
		if l := storeScalar(dstID, dstData, v); l.checkedBy(mode) {
			return conversionError(dst, src, v, l)
		}
		return nil
	})
	return off + 1, nil
}
