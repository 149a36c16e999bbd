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
	"encoding/binary"

	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

// class is the register class and width of a value passed to or returned by
// an adapted function.
type class struct {
	size   int
	float  bool
	signed bool
}

func classify(t ndt.Type) (class, bool) {
	if !t.IsBuiltin() {
		return class{}, false
	}
	switch t.Kind() {
	case ndt.BoolKind, ndt.UintKind:
		return class{size: t.DataSize()}, true
	case ndt.IntKind:
		return class{size: t.DataSize(), signed: true}, true
	case ndt.RealKind:
		return class{size: t.DataSize(), float: true}, true
	}
	return class{}, false
}

func unaryTemplate(abi ABI, ret, arg class) ([]byte, error) {
	switch abi {
	case SysVAMD64:
		return amd64Unary(sysvRegs, ret, arg), nil
	case Win64:
		return amd64Unary(win64Regs, ret, arg), nil
	case AAPCS64:
		return arm64Unary(ret, arg), nil
	}
	return nil, errors.Errorf("no code templates for the %s calling convention", abi)
}

// amd64Regs are the instruction sequences depending on the amd64 calling
// convention.
type amd64Regs struct {
	prologue, epilogue []byte
	// setup saves dst in rbx, loads src[0] in rax and the function in r11.
	setup []byte
	// intArg are the loads of [rax] into the first integer argument register,
	// indexed by size then signedness.
	intArg map[int][2][]byte
}

var (
	sysvRegs = amd64Regs{
		prologue: []byte{
			0x53, // push rbx
		},
		setup: []byte{
			0x48, 0x89, 0xfb, // mov rbx, rdi
			0x48, 0x8b, 0x06, // mov rax, [rsi]
			0x4c, 0x8b, 0x5a, 0x08, // mov r11, [rdx+8]
		},
		intArg: map[int][2][]byte{
			1: {{0x0f, 0xb6, 0x38}, {0x0f, 0xbe, 0x38}}, // movzx/movsx edi, byte [rax]
			2: {{0x0f, 0xb7, 0x38}, {0x0f, 0xbf, 0x38}}, // movzx/movsx edi, word [rax]
			4: {{0x8b, 0x38}, {0x8b, 0x38}},             // mov edi, [rax]
			8: {{0x48, 0x8b, 0x38}, {0x48, 0x8b, 0x38}}, // mov rdi, [rax]
		},
		epilogue: []byte{
			0x5b, // pop rbx
			0xc3, // ret
		},
	}

	// Windows callers reserve 32 bytes of shadow space for the callee.
	win64Regs = amd64Regs{
		prologue: []byte{
			0x53,                   // push rbx
			0x48, 0x83, 0xec, 0x20, // sub rsp, 32
		},
		setup: []byte{
			0x48, 0x89, 0xcb, // mov rbx, rcx
			0x48, 0x8b, 0x02, // mov rax, [rdx]
			0x4d, 0x8b, 0x58, 0x08, // mov r11, [r8+8]
		},
		intArg: map[int][2][]byte{
			1: {{0x0f, 0xb6, 0x08}, {0x0f, 0xbe, 0x08}}, // movzx/movsx ecx, byte [rax]
			2: {{0x0f, 0xb7, 0x08}, {0x0f, 0xbf, 0x08}}, // movzx/movsx ecx, word [rax]
			4: {{0x8b, 0x08}, {0x8b, 0x08}},             // mov ecx, [rax]
			8: {{0x48, 0x8b, 0x08}, {0x48, 0x8b, 0x08}}, // mov rcx, [rax]
		},
		epilogue: []byte{
			0x48, 0x83, 0xc4, 0x20, // add rsp, 32
			0x5b, // pop rbx
			0xc3, // ret
		},
	}

	amd64CallR11 = []byte{0x41, 0xff, 0xd3} // call r11

	amd64FloatArg = map[int][]byte{
		4: {0xf3, 0x0f, 0x10, 0x00}, // movss xmm0, [rax]
		8: {0xf2, 0x0f, 0x10, 0x00}, // movsd xmm0, [rax]
	}

	amd64FloatRet = map[int][]byte{
		4: {0xf3, 0x0f, 0x11, 0x03}, // movss [rbx], xmm0
		8: {0xf2, 0x0f, 0x11, 0x03}, // movsd [rbx], xmm0
	}

	amd64IntRet = map[int][]byte{
		1: {0x88, 0x03},       // mov [rbx], al
		2: {0x66, 0x89, 0x03}, // mov [rbx], ax
		4: {0x89, 0x03},       // mov [rbx], eax
		8: {0x48, 0x89, 0x03}, // mov [rbx], rax
	}
)

func amd64Unary(regs amd64Regs, ret, arg class) []byte {
	var code []byte
	code = append(code, regs.prologue...)
	code = append(code, regs.setup...)
	if arg.float {
		code = append(code, amd64FloatArg[arg.size]...)
	} else {
		signed := 0
		if arg.signed {
			signed = 1
		}
		code = append(code, regs.intArg[arg.size][signed]...)
	}
	code = append(code, amd64CallR11...)
	if ret.float {
		code = append(code, amd64FloatRet[ret.size]...)
	} else {
		code = append(code, amd64IntRet[ret.size]...)
	}
	return append(code, regs.epilogue...)
}

// arm64 instructions. The argument is loaded from [x9], the result stored at
// [x19] where dst is kept across the call.
const (
	arm64SavePair    = 0xa9be7bfd // stp x29, x30, [sp, #-32]!
	arm64SetFrame    = 0x910003fd // mov x29, sp
	arm64SaveX19     = 0xf9000bf3 // str x19, [sp, #16]
	arm64KeepDst     = 0xaa0003f3 // mov x19, x0
	arm64LoadFunc    = 0xf9400450 // ldr x16, [x2, #8]
	arm64LoadSrc     = 0xf9400029 // ldr x9, [x1]
	arm64Call        = 0xd63f0200 // blr x16
	arm64RestoreX19  = 0xf9400bf3 // ldr x19, [sp, #16]
	arm64RestorePair = 0xa8c27bfd // ldp x29, x30, [sp], #32
	arm64Ret         = 0xd65f03c0 // ret
)

func arm64Load(c class) uint32 {
	const rn = 9 << 5
	switch {
	case c.float && c.size == 4:
		return 0xbd400000 | rn // ldr s0, [x9]
	case c.float:
		return 0xfd400000 | rn // ldr d0, [x9]
	case c.size == 1 && c.signed:
		return 0x39c00000 | rn // ldrsb w0, [x9]
	case c.size == 1:
		return 0x39400000 | rn // ldrb w0, [x9]
	case c.size == 2 && c.signed:
		return 0x79c00000 | rn // ldrsh w0, [x9]
	case c.size == 2:
		return 0x79400000 | rn // ldrh w0, [x9]
	case c.size == 4:
		return 0xb9400000 | rn // ldr w0, [x9]
	}
	return 0xf9400000 | rn // ldr x0, [x9]
}

func arm64Store(c class) uint32 {
	const rn = 19 << 5
	switch {
	case c.float && c.size == 4:
		return 0xbd000000 | rn // str s0, [x19]
	case c.float:
		return 0xfd000000 | rn // str d0, [x19]
	case c.size == 1:
		return 0x39000000 | rn // strb w0, [x19]
	case c.size == 2:
		return 0x79000000 | rn // strh w0, [x19]
	case c.size == 4:
		return 0xb9000000 | rn // str w0, [x19]
	}
	return 0xf9000000 | rn // str x0, [x19]
}

func arm64Unary(ret, arg class) []byte {
	insts := []uint32{
		arm64SavePair,
		arm64SetFrame,
		arm64SaveX19,
		arm64KeepDst,
		arm64LoadFunc,
		arm64LoadSrc,
		arm64Load(arg),
		arm64Call,
		arm64Store(ret),
		arm64RestoreX19,
		arm64RestorePair,
		arm64Ret,
	}
	code := make([]byte, 0, 4*len(insts))
	for _, inst := range insts {
		code = binary.LittleEndian.AppendUint32(code, inst)
	}
	return code
}
