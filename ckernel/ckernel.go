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

// Package ckernel implements the builder into which kernels are assembled.
//
// A kernel is a tree of closure records stored in a Builder and addressed by
// their index (the offset). A record needing a child operation emits it right
// after itself and keeps the child offset. Every record is built for one
// calling convention, selected by a Request.
package ckernel

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

type (
	// SingleFunc processes one element: src holds one pointer per operand.
	SingleFunc func(dst unsafe.Pointer, src []unsafe.Pointer) error

	// StridedFunc processes count elements, each operand being advanced by its stride.
	StridedFunc func(dst unsafe.Pointer, dstStride int, src []unsafe.Pointer, srcStride []int, count int) error
)

// Mode selects between the single and strided calling conventions.
type Mode int

const (
	// Single calls process one element.
	Single Mode = iota
	// Strided calls process a batch of elements.
	Strided
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Strided:
		return "strided"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Target selects where the kernel runs.
type Target int

const (
	// Host kernels run on the CPU calling the builder.
	Host Target = iota
	// Device kernels target an accelerator.
	Device
)

func (t Target) String() string {
	switch t {
	case Host:
		return "host"
	case Device:
		return "device"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Request is the calling convention a kernel is built for.
type Request struct {
	Mode   Mode
	Target Target
}

var (
	// SingleHost requests a single-element host kernel.
	SingleHost = Request{Mode: Single, Target: Host}
	// StridedHost requests a strided host kernel.
	StridedHost = Request{Mode: Strided, Target: Host}
)

func (r Request) String() string {
	return r.Mode.String() + "/" + r.Target.String()
}

// ParseRequest returns the host request for a mode name.
func ParseRequest(s string) (Request, error) {
	switch s {
	case "single":
		return SingleHost, nil
	case "strided":
		return StridedHost, nil
	}
	return Request{}, errors.Errorf("unknown kernel request %q: want single or strided", s)
}

// StridedFromSingle returns a strided function calling single once per element.
func StridedFromSingle(single SingleFunc) StridedFunc {
	return func(dst unsafe.Pointer, dstStride int, src []unsafe.Pointer, srcStride []int, count int) error {
		cur := make([]unsafe.Pointer, len(src))
		copy(cur, src)
		for i := 0; i < count; i++ {
			if err := single(dst, cur); err != nil {
				return err
			}
			if i+1 == count {
				break
			}
			dst = unsafe.Add(dst, dstStride)
			for j := range cur {
				cur[j] = unsafe.Add(cur[j], srcStride[j])
			}
		}
		return nil
	}
}

// SingleFromStrided returns a single function calling strided with a count of one.
func SingleFromStrided(strided StridedFunc) SingleFunc {
	return func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		return strided(dst, 0, src, make([]int, len(src)), 1)
	}
}
