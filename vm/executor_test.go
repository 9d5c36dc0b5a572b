package vm_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/um32/emulator/vm"
)

// newTestVM builds a machine over the given program with output captured
// and input attached to the given string.
func newTestVM(words []uint32, input string) (*vm.VM, *bytes.Buffer) {
	machine := vm.NewVM(vm.NewMemoryFromWords(words))
	out := &bytes.Buffer{}
	machine.OutputWriter = out
	machine.SetInput(strings.NewReader(input))
	return machine, out
}

func TestHaltOnly(t *testing.T) {
	machine, out := newTestVM([]uint32{0x70000000}, "")

	if err := machine.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if machine.State != vm.StateHalted {
		t.Errorf("state = %d, want StateHalted", machine.State)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
	if machine.Cycles != 1 {
		t.Errorf("cycles = %d, want 1", machine.Cycles)
	}
}

func TestCMOV(t *testing.T) {
	// cmov r1, r2, r3 then halt
	program := []uint32{0x00000053, 0x70000000}

	machine, _ := newTestVM(program, "")
	machine.Registers.Set(vm.R1, 111)
	machine.Registers.Set(vm.R2, 222)
	machine.Registers.Set(vm.R3, 0) // condition false
	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 111 {
		t.Errorf("cmov moved on zero condition: r1 = %d", got)
	}

	machine, _ = newTestVM(program, "")
	machine.Registers.Set(vm.R1, 111)
	machine.Registers.Set(vm.R2, 222)
	machine.Registers.Set(vm.R3, 1) // condition true
	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 222 {
		t.Errorf("cmov did not move on nonzero condition: r1 = %d", got)
	}
}

func TestAddWraps(t *testing.T) {
	// add r1, r2, r3 then halt
	machine, _ := newTestVM([]uint32{0x30000053, 0x70000000}, "")
	machine.Registers.Set(vm.R2, 0xFFFFFFFF)
	machine.Registers.Set(vm.R3, 1)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 0 {
		t.Errorf("0xFFFFFFFF + 1 = %#x, want 0 (mod 2^32)", got)
	}
}

func TestMulTruncates(t *testing.T) {
	// mul r1, r2, r3 then halt
	machine, _ := newTestVM([]uint32{0x40000053, 0x70000000}, "")
	machine.Registers.Set(vm.R2, 0x10000)
	machine.Registers.Set(vm.R3, 0x10001)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	// 0x10000 * 0x10001 = 0x100010000, truncated to 0x10000
	if got := machine.Registers.Get(vm.R1); got != 0x10000 {
		t.Errorf("mul overflow = %#x, want 0x10000", got)
	}
}

func TestDivUnsigned(t *testing.T) {
	// div r1, r2, r3 then halt
	machine, _ := newTestVM([]uint32{0x50000053, 0x70000000}, "")
	machine.Registers.Set(vm.R2, 0xFFFFFFFE)
	machine.Registers.Set(vm.R3, 2)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 0x7FFFFFFF {
		t.Errorf("unsigned division = %#x, want 0x7FFFFFFF", got)
	}
}

func TestDivByZero(t *testing.T) {
	machine, _ := newTestVM([]uint32{0x50000053, 0x70000000}, "")
	machine.Registers.Set(vm.R2, 10)

	err := machine.Run()
	if !errors.Is(err, vm.ErrUndefined) {
		t.Errorf("expected ErrUndefined for division by zero, got %v", err)
	}
	if machine.State != vm.StateError {
		t.Errorf("state = %d, want StateError", machine.State)
	}
}

func TestNAND(t *testing.T) {
	// nand r1, r2, r3 then halt
	machine, _ := newTestVM([]uint32{0x60000053, 0x70000000}, "")
	machine.Registers.Set(vm.R2, 0xAAAAAAAA)
	machine.Registers.Set(vm.R3, 0xCCCCCCCC)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 0x77777777 {
		t.Errorf("nand = %#x, want 0x77777777", got)
	}
}

func TestOut(t *testing.T) {
	// out r1 then halt
	machine, out := newTestVM([]uint32{0xA0000001, 0x70000000}, "")
	machine.Registers.Set(vm.R1, '3')

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "3" {
		t.Errorf("output = %q, want \"3\"", got)
	}
}

func TestOutRejectsWideValue(t *testing.T) {
	machine, _ := newTestVM([]uint32{0xA0000001, 0x70000000}, "")
	machine.Registers.Set(vm.R1, 256)

	err := machine.Run()
	if !errors.Is(err, vm.ErrUndefined) {
		t.Errorf("expected ErrUndefined for out of 256, got %v", err)
	}
}

func TestIn(t *testing.T) {
	// in r1, in r2, halt
	machine, _ := newTestVM([]uint32{0xB0000001, 0xB0000002, 0x70000000}, "AB")

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 'A' {
		t.Errorf("first input = %d, want 'A'", got)
	}
	if got := machine.Registers.Get(vm.R2); got != 'B' {
		t.Errorf("second input = %d, want 'B'", got)
	}
}

func TestInEOF(t *testing.T) {
	// in r1, halt; empty stream
	machine, _ := newTestVM([]uint32{0xB0000001, 0x70000000}, "")
	machine.Registers.Set(vm.R1, 7)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R1); got != 0xFFFFFFFF {
		t.Errorf("input at EOF = %#x, want 0xFFFFFFFF", got)
	}
}

func TestMapUnmapInstructions(t *testing.T) {
	// lv r1, 5; map r2, r1; unmap r2; halt
	program := []uint32{
		0xD2000005, // loadval r1, 5
		0x80000011, // map r2, r1
		0x90000002, // unmap r2
		0x70000000,
	}
	machine, _ := newTestVM(program, "")

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R2); got != 1 {
		t.Errorf("mapped id = %d, want 1", got)
	}
	if machine.Memory.Mapped(1) {
		t.Error("segment 1 still mapped after unmap")
	}
}

func TestSloadSstore(t *testing.T) {
	// lv r1, 1; map r2, r1; sstore r2, r0, r3; sload r4, r2, r0; halt
	program := []uint32{
		0xD2000001, // loadval r1, 1
		0x80000011, // map r2, r1
		0x20000083, // sstore r2, r0, r3   (segment r2, offset r0, value r3)
		0x10000110, // sload r4, r2, r0
		0x70000000,
	}
	machine, _ := newTestVM(program, "")
	machine.Registers.Set(vm.R3, 0xBEEF)

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R4); got != 0xBEEF {
		t.Errorf("sload after sstore = %#x, want 0xBEEF", got)
	}
}

func TestLoadValue(t *testing.T) {
	machine, _ := newTestVM([]uint32{0xDFFFFFFF, 0x70000000}, "")

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	if got := machine.Registers.Get(vm.R7); got != 1<<25-1 {
		t.Errorf("loadval = %d, want %d", got, 1<<25-1)
	}
}

func TestLoadProgramBranch(t *testing.T) {
	// loadp r0, r1 with r1=2 jumps over the bad word at index 1
	program := []uint32{
		0xC0000001, // loadp r0, r1
		0xF0000000, // would be a bad opcode if executed
		0x70000000,
	}
	machine, _ := newTestVM(program, "")
	machine.Registers.Set(vm.R1, 2)

	if err := machine.Run(); err != nil {
		t.Fatalf("branch executed the skipped word: %v", err)
	}
	if machine.State != vm.StateHalted {
		t.Errorf("state = %d, want StateHalted", machine.State)
	}
}

func TestBadOpcode(t *testing.T) {
	for _, word := range []uint32{0xE0000000, 0xF0000000} {
		machine, _ := newTestVM([]uint32{word}, "")
		err := machine.Run()
		if !errors.Is(err, vm.ErrBadOpcode) {
			t.Errorf("word %#08x: expected ErrBadOpcode, got %v", word, err)
		}
		if machine.State != vm.StateError {
			t.Errorf("word %#08x: state = %d, want StateError", word, machine.State)
		}
	}
}

func TestStepAfterErrorRefuses(t *testing.T) {
	machine, _ := newTestVM([]uint32{0xF0000000}, "")
	if err := machine.Run(); err == nil {
		t.Fatal("expected error")
	}

	if err := machine.Step(); err == nil {
		t.Error("Step in error state should refuse to run")
	}
}

func TestCycleLimit(t *testing.T) {
	// loadp r0, r0 loops forever at ip 0
	machine, _ := newTestVM([]uint32{0xC0000000}, "")
	machine.CycleLimit = 100

	err := machine.Run()
	if err == nil {
		t.Fatal("expected cycle limit error")
	}
	if machine.Cycles != 100 {
		t.Errorf("cycles = %d, want 100", machine.Cycles)
	}
}

func TestRunOffEndOfProgram(t *testing.T) {
	machine, _ := newTestVM([]uint32{0xD2000001}, "")

	err := machine.Run()
	if !errors.Is(err, vm.ErrUndefined) {
		t.Errorf("expected ErrUndefined running past program end, got %v", err)
	}
}

func TestStatisticsCollection(t *testing.T) {
	program := []uint32{
		0xD2000005, // loadval
		0xD4000006, // loadval
		0x30000053, // add
		0x70000000, // halt
	}
	machine, _ := newTestVM(program, "")
	machine.Statistics = vm.NewPerformanceStatistics()
	machine.Statistics.Start()

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}
	machine.Statistics.Finalize()

	if machine.Statistics.TotalInstructions != 4 {
		t.Errorf("total instructions = %d, want 4", machine.Statistics.TotalInstructions)
	}
	if got := machine.Statistics.InstructionCounts["loadval"]; got != 2 {
		t.Errorf("loadval count = %d, want 2", got)
	}
	if got := machine.Statistics.InstructionCounts["halt"]; got != 1 {
		t.Errorf("halt count = %d, want 1", got)
	}
}

func TestExecutionTraceCollection(t *testing.T) {
	machine, _ := newTestVM([]uint32{0xD2000033, 0x70000000}, "")
	var traceOut bytes.Buffer
	machine.ExecutionTrace = vm.NewExecutionTrace(&traceOut)
	machine.ExecutionTrace.Start()

	if err := machine.Run(); err != nil {
		t.Fatal(err)
	}

	entries := machine.ExecutionTrace.GetEntries()
	if len(entries) != 2 {
		t.Fatalf("trace entries = %d, want 2", len(entries))
	}
	if entries[0].Disassembly != "loadval r1, 51" {
		t.Errorf("first entry = %q", entries[0].Disassembly)
	}
	if entries[0].Registers[1] != 51 {
		t.Errorf("first entry r1 = %d, want 51", entries[0].Registers[1])
	}

	if err := machine.ExecutionTrace.Flush(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(traceOut.String(), "halt") {
		t.Errorf("flushed trace missing halt: %q", traceOut.String())
	}
}
