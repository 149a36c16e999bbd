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

// Package codegen generates the machine code adapting plain unary functions
// to the single-value kernel calling convention.
//
// A trampoline generated by GetUnaryFunctionAdapter is called as
//
//	void trampoline(char *dst, char *const *src, kernel *self)
//
// where the function pointer to adapt is stored 8 bytes after self. The
// trampoline loads the argument from src[0], calls the function with the
// native calling convention of the platform, and stores the result at dst.
package codegen

import (
	"fmt"
	"runtime"

	"github.com/gx-org/dynd/memblock"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

// ABI is a native calling convention.
type ABI int

const (
	// UnknownABI is returned on platforms without templates.
	UnknownABI ABI = iota
	// SysVAMD64 is the System V calling convention of amd64 Unix systems.
	SysVAMD64
	// Win64 is the calling convention of amd64 Windows.
	Win64
	// AAPCS64 is the procedure call standard of arm64.
	AAPCS64
)

var abiNames = [...]string{
	UnknownABI: "unknown",
	SysVAMD64:  "sysv-amd64",
	Win64:      "win64",
	AAPCS64:    "aapcs64",
}

func (a ABI) String() string {
	if a < 0 || int(a) >= len(abiNames) {
		return fmt.Sprintf("ABI(%d)", int(a))
	}
	return abiNames[a]
}

// HostABI returns the calling convention of the running platform.
func HostABI() ABI {
	return abiFor(runtime.GOOS, runtime.GOARCH)
}

func abiFor(goos, goarch string) ABI {
	switch goarch {
	case "amd64":
		if goos == "windows" {
			return Win64
		}
		return SysVAMD64
	case "arm64":
		return AAPCS64
	}
	return UnknownABI
}

// Trampoline is an adapter written in an executable block.
type Trampoline struct {
	ABI      ABI
	Ret, Arg ndt.Type
	// Offset and Size locate the code in the block.
	Offset, Size int

	block *memblock.Executable
}

// Entry returns the address of the first instruction of the trampoline.
func (t Trampoline) Entry() uintptr {
	return t.block.Entry(t.Offset)
}

// Code returns the instructions of the trampoline.
func (t Trampoline) Code() []byte {
	return t.block.Code(t.Offset, t.Size)
}

func (t Trampoline) String() string {
	return fmt.Sprintf("%s trampoline %s(%s) at %d+%d", t.ABI, t.Ret, t.Arg, t.Offset, t.Size)
}

// UnsupportedError is returned when no template adapts a function type.
type UnsupportedError struct {
	ABI      ABI
	Ret, Arg ndt.Type
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("no %s adapter for a function of type (%s) -> %s", e.ABI, e.Arg, e.Ret)
}

// GetUnaryFunctionAdapter returns a trampoline adapting functions of type
// (arg) -> ret to the single-value kernel convention of the host. The
// trampoline is written in block the first time it is requested. Later
// requests for the same types return the same code.
func GetUnaryFunctionAdapter(block *memblock.Executable, ret, arg ndt.Type) (Trampoline, error) {
	return GetUnaryFunctionAdapterFor(block, HostABI(), ret, arg)
}

// GetUnaryFunctionAdapterFor is GetUnaryFunctionAdapter for a given calling
// convention. Code generated for another platform can be inspected but not run.
func GetUnaryFunctionAdapterFor(block *memblock.Executable, abi ABI, ret, arg ndt.Type) (Trampoline, error) {
	if block == nil {
		return Trampoline{}, errors.Errorf("no executable block to write a %s adapter into", abi)
	}
	retClass, retOK := classify(ret)
	argClass, argOK := classify(arg)
	if !retOK || !argOK {
		return Trampoline{}, errors.WithStack(&UnsupportedError{ABI: abi, Ret: ret, Arg: arg})
	}
	code, err := unaryTemplate(abi, retClass, argClass)
	if err != nil {
		return Trampoline{}, errors.Wrapf(err, "cannot adapt (%s) -> %s", arg, ret)
	}
	name := fmt.Sprintf("unary/%s/%s(%s)", abi, ret, arg)
	off, err := block.WriteNamed(name, code)
	if err != nil {
		return Trampoline{}, err
	}
	return Trampoline{
		ABI:    abi,
		Ret:    ret,
		Arg:    arg,
		Offset: off,
		Size:   len(code),
		block:  block,
	}, nil
}
