// Package umasm builds machine programs word by word, for authoring the
// binaries the regression tests run. A program is a stream of instructions
// that can be serialized in the big-endian on-disk format the loader reads.
package umasm

import (
	"fmt"
	"io"

	"github.com/um32/emulator/vm"
)

// Reg is a register operand, r0-r7.
type Reg uint32

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
)

// ThreeRegister packs a three-register instruction: opcode in bits 31-28,
// register indices a, b, c in bits 8-6, 5-3, 2-0. Panics on an operand that
// does not fit its field; builder arguments are literals in test code, so a
// bad one is a bug there, not a runtime condition.
func ThreeRegister(op vm.Opcode, a, b, c Reg) uint32 {
	word := mustPack(0, vm.RegWidth, vm.RegCLSB, uint64(c))
	word = mustPack(word, vm.RegWidth, vm.RegBLSB, uint64(b))
	word = mustPack(word, vm.RegWidth, vm.RegALSB, uint64(a))
	word = mustPack(word, vm.OpcodeWidth, vm.OpcodeLSB, uint64(op))
	return uint32(word)
}

// LoadValue packs a load-value instruction: opcode 13, register in bits
// 27-25, the 25-bit immediate in bits 24-0. Panics if value needs more than
// 25 bits.
func LoadValue(a Reg, value uint32) uint32 {
	word := mustPack(0, vm.OpcodeWidth, vm.OpcodeLSB, uint64(vm.OpLV))
	word = mustPack(word, vm.RegWidth, vm.LoadRegLSB, uint64(a))
	word = mustPack(word, vm.ValueWidth, vm.ValueLSB, uint64(value))
	return uint32(word)
}

func mustPack(word uint64, width, lsb uint, value uint64) uint64 {
	packed, err := vm.NewUnsigned(word, width, lsb, value)
	if err != nil {
		panic(fmt.Sprintf("umasm: %v", err))
	}
	return packed
}

// Wrappers for each instruction, operands per the opcode's semantics.

func Cmov(a, b, c Reg) uint32   { return ThreeRegister(vm.OpCMOV, a, b, c) }
func Sload(a, b, c Reg) uint32  { return ThreeRegister(vm.OpSLOAD, a, b, c) }
func Sstore(a, b, c Reg) uint32 { return ThreeRegister(vm.OpSSTORE, a, b, c) }
func Add(a, b, c Reg) uint32    { return ThreeRegister(vm.OpADD, a, b, c) }
func Mul(a, b, c Reg) uint32    { return ThreeRegister(vm.OpMUL, a, b, c) }
func Div(a, b, c Reg) uint32    { return ThreeRegister(vm.OpDIV, a, b, c) }
func Nand(a, b, c Reg) uint32   { return ThreeRegister(vm.OpNAND, a, b, c) }
func Halt() uint32              { return ThreeRegister(vm.OpHALT, 0, 0, 0) }
func Map(b, c Reg) uint32       { return ThreeRegister(vm.OpMAP, 0, b, c) }
func Unmap(c Reg) uint32        { return ThreeRegister(vm.OpUNMAP, 0, 0, c) }
func Out(c Reg) uint32          { return ThreeRegister(vm.OpOUT, 0, 0, c) }
func In(c Reg) uint32           { return ThreeRegister(vm.OpIN, 0, 0, c) }
func Loadp(b, c Reg) uint32     { return ThreeRegister(vm.OpLOADP, 0, b, c) }

// Program is an instruction stream under construction.
type Program struct {
	words []uint32
}

// NewProgram creates a program from an optional initial instruction list.
func NewProgram(words ...uint32) *Program {
	return &Program{words: words}
}

// Append adds instructions to the end of the program.
func (p *Program) Append(words ...uint32) {
	p.words = append(p.words, words...)
}

// Words returns the program as a word slice.
func (p *Program) Words() []uint32 {
	return p.words
}

// Len returns the program length in words.
func (p *Program) Len() int {
	return len(p.words)
}

// WriteTo serializes the program in the on-disk format: each word as four
// big-endian bytes, no header or padding.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for i, word := range p.words {
		buf := [4]byte{
			byte(word >> 24),
			byte(word >> 16),
			byte(word >> 8),
			byte(word),
		}
		n, err := w.Write(buf[:])
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("writing word %d: %w", i, err)
		}
	}
	return written, nil
}
