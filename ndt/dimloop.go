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
	"github.com/gx-org/dynd/memblock"
)

// elemEmitter emits at off the kernel processing one element of the
// destination from one element of every source.
type elemEmitter func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta) (int, error)

type operandKind int

const (
	// broadcastOperand has fewer dimensions than the destination: the same
	// value is used for every element.
	broadcastOperand operandKind = iota
	fixedOperand
	varOperand
)

type dimOperand struct {
	kind   operandKind
	size   int
	stride int
	offset int
	pod    *memblock.POD
}

// load returns the pointer to the first element, the stride and the size of
// the dimension of an operand. Broadcast operands have a size of -1.
func (op *dimOperand) load(p unsafe.Pointer) (unsafe.Pointer, int, int) {
	switch op.kind {
	case fixedOperand:
		return p, op.stride, op.size
	case varOperand:
		begin, size := loadRow(p)
		return rowPointer(op.pod, begin, op.offset, size), op.stride, size
	}
	return p, 0, -1
}

func newDimOperand(src Type, meta Arrmeta, ndim int) (dimOperand, Type, Arrmeta, error) {
	if src.NDim() < ndim {
		return dimOperand{kind: broadcastOperand}, src, meta, nil
	}
	switch d := src.ext.(type) {
	case *fixedDim:
		return dimOperand{
			kind:   fixedOperand,
			size:   d.DimSize(meta, nil),
			stride: d.Stride(meta),
		}, d.elem, d.ElementArrmeta(meta), nil
	case *varDim:
		pod, err := podOf(meta, 0)
		if err != nil {
			return dimOperand{}, Type{}, nil, err
		}
		return dimOperand{
			kind:   varOperand,
			stride: d.Stride(meta),
			offset: d.offset(meta),
			pod:    pod,
		}, d.elem, d.ElementArrmeta(meta), nil
	}
	return dimOperand{}, Type{}, nil, invalidArgument("type %s has no concrete leading dimension", src)
}

// broadcastSize returns the size of a dimension given the size n of the
// destination, negative if unknown, and the sizes of the sources, negative
// for broadcast sources.
func broadcastSize(n int, sizes []int) (int, bool) {
	if n < 0 {
		n = 1
		for _, m := range sizes {
			if m < 0 || m == 1 {
				continue
			}
			if n != 1 && n != m {
				return 0, false
			}
			n = m
		}
	}
	for _, m := range sizes {
		if m >= 0 && m != 1 && m != n {
			return 0, false
		}
	}
	return n, true
}

// emitDimLoop emits at off a kernel looping over the leading dimension of
// dst, calling the kernel emitted by child for every element. Sources with
// fewer dimensions than dst, or a dimension of size 1, are broadcast.
// An unallocated var destination is allocated to the broadcast size of the sources.
func emitDimLoop(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, req ckernel.Request, label string, child elemEmitter) (int, error) {
	d, ok := dst.AsDim()
	if !ok {
		return off, invalidArgument("%s is not a dimension", dst)
	}
	ndim := dst.NDim()
	ops := make([]dimOperand, len(srcs))
	elems := make([]Type, len(srcs))
	elemMetas := make([]Arrmeta, len(srcs))
	for i, src := range srcs {
		if src.NDim() > ndim {
			return off, shapeMismatch("cannot broadcast %s into %s", src, dst)
		}
		var err error
		if ops[i], elems[i], elemMetas[i], err = newDimOperand(src, srcMetas[i], ndim); err != nil {
			return off, err
		}
	}
	dstOp, _, _, err := newDimOperand(dst, dstMeta, ndim)
	if err != nil {
		return off, err
	}
	if dstOp.kind == fixedOperand {
		sizes := make([]int, 0, len(ops))
		for _, op := range ops {
			if op.kind == fixedOperand {
				sizes = append(sizes, op.size)
			}
		}
		if _, ok := broadcastSize(dstOp.size, sizes); !ok {
			return off, shapeMismatch("cannot broadcast %v into %s", srcs, dst)
		}
	}
	elemSize, elemAlign := d.ElementType().DataSize(), d.ElementType().Alignment()

	rec, err := b.Reserve(off, req, label)
	if err != nil {
		return off, err
	}
	childOff := off + 1
	next, err := child(b, childOff, d.ElementType(), d.ElementArrmeta(dstMeta), elems, elemMetas)
	if err != nil {
		return off, err
	}
	rec.AddChild(childOff)
	fn, err := b.Strided(childOff)
	if err != nil {
		return off, err
	}
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		ptrs := make([]unsafe.Pointer, len(src))
		strides := make([]int, len(src))
		sizes := make([]int, len(src))
		for i := range ops {
			ptrs[i], strides[i], sizes[i] = ops[i].load(src[i])
			if sizes[i] == 1 {
				strides[i] = 0
			}
		}
		dstPtr, dstStride, n := dstOp.load(dst)
		unallocated := false
		if dstOp.kind == varOperand {
			if begin, _ := loadRow(dst); begin == 0 {
				unallocated, n = true, -1
			}
		}
		size, ok := broadcastSize(n, sizes)
		if !ok {
			return shapeMismatch("cannot broadcast dimensions of size %v into a dimension of size %d", sizes, n)
		}
		n = size
		if unallocated {
			begin, err := dstOp.pod.Allocate(n*elemSize, elemAlign)
			if err != nil {
				return err
			}
			storeRow(dst, begin-int64(dstOp.offset), n)
			dstPtr = rowPointer(dstOp.pod, begin-int64(dstOp.offset), dstOp.offset, n)
		}
		if n == 0 {
			return nil
		}
		return fn(dstPtr, dstStride, ptrs, strides, n)
	})
	return next, nil
}

// childRequest is the request of the children of a record built for req.
func childRequest(req ckernel.Request, mode ckernel.Mode) ckernel.Request {
	return ckernel.Request{Mode: mode, Target: req.Target}
}

// makeDimAssignment emits the assignment of src into the dimension type dst.
func makeDimAssignment(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if canCopy(dst, dstMeta, src, srcMeta) {
		ectx.Log().Debug("contiguous copy", "type", dst)
		return makeMemcpy(b, off, dst.DataSize(), req, "copy "+dst.String())
	}
	ectx.Log().Debug("dimension assignment", "dst", dst, "src", src)
	return emitDimLoop(b, off, dst, dstMeta, []Type{src}, []Arrmeta{srcMeta}, req, "assign "+dst.String(),
		func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta) (int, error) {
			return MakeAssignmentKernel(b, off, dst, dstMeta, srcs[0], srcMetas[0], childRequest(req, ckernel.Strided), ectx)
		})
}

// makeMemcpy emits a kernel copying size bytes.
func makeMemcpy(b *ckernel.Builder, off, size int, req ckernel.Request, label string) (int, error) {
	rec, err := b.Reserve(off, req, label)
	if err != nil {
		return off, err
	}
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		if size > 0 {
			copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src[0]), size))
		}
		return nil
	})
	return off + 1, nil
}
