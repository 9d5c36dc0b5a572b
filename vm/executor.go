package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ExecutionState represents the current state of execution
type ExecutionState int

const (
	StateHalted ExecutionState = iota
	StateRunning
	StateError
)

// VM threads the fetch-decode-execute loop over a register file and
// segmented memory. It owns both for the duration of a run; nothing else
// observes them mid-execution.
type VM struct {
	Registers *Registers
	Memory    *Memory
	State     ExecutionState

	// Cycles counts executed instructions. CycleLimit, when nonzero, turns
	// a runaway program into an error instead of an endless loop.
	Cycles     uint64
	CycleLimit uint64

	LastError error

	// OutputWriter receives bytes emitted by the out instruction. Defaults
	// to os.Stdout; tests redirect it to capture program output.
	OutputWriter io.Writer

	// input delivers one byte per in instruction. Per-instance so that VMs
	// running concurrently in tests do not share reader state.
	input *bufio.Reader

	// Optional diagnostics
	ExecutionTrace *ExecutionTrace
	Statistics     *PerformanceStatistics
}

// NewVM creates a machine around loaded memory, with registers zeroed and
// I/O attached to the host's standard streams.
func NewVM(mem *Memory) *VM {
	return &VM{
		Registers:    NewRegisters(),
		Memory:       mem,
		State:        StateHalted,
		CycleLimit:   DefaultMaxCycles,
		OutputWriter: os.Stdout,
		input:        bufio.NewReader(os.Stdin),
	}
}

// SetInput redirects the in instruction to read from r.
func (vm *VM) SetInput(r io.Reader) {
	vm.input = bufio.NewReader(r)
}

// Step fetches, decodes and executes a single instruction. A halt
// instruction moves the machine to StateHalted and returns nil; any fault
// moves it to StateError and returns the error.
func (vm *VM) Step() error {
	if vm.State == StateError {
		return fmt.Errorf("machine is in error state: %w", vm.LastError)
	}

	if vm.CycleLimit > 0 && vm.Cycles >= vm.CycleLimit {
		return vm.fail(fmt.Errorf("cycle limit exceeded (%d cycles)", vm.CycleLimit))
	}

	ip := vm.Memory.IP()
	word, err := vm.Memory.FetchNext()
	if err != nil {
		return vm.fail(fmt.Errorf("fetch at %d: %w", ip, err))
	}

	inst := Decode(word)
	if err := vm.execute(inst); err != nil {
		return vm.fail(fmt.Errorf("%s at %d: %w", inst.Op.Mnemonic(), ip, err))
	}

	vm.Cycles++

	if vm.Statistics != nil {
		vm.Statistics.RecordInstruction(inst.Op.Mnemonic())
	}
	if vm.ExecutionTrace != nil {
		vm.ExecutionTrace.Record(vm.Cycles, ip, inst, vm.Registers.Snapshot())
	}

	return nil
}

// fail records err and parks the machine in the error state.
func (vm *VM) fail(err error) error {
	vm.State = StateError
	vm.LastError = err
	return err
}

// execute dispatches a decoded instruction. All arithmetic is on uint32 and
// wraps modulo 2^32.
func (vm *VM) execute(inst Instruction) error {
	regs := vm.Registers

	switch inst.Op {
	case OpCMOV:
		if regs.Get(inst.RC) != 0 {
			regs.Set(inst.RA, regs.Get(inst.RB))
		}

	case OpSLOAD:
		word, err := vm.Memory.Read(regs.Get(inst.RB), regs.Get(inst.RC))
		if err != nil {
			return err
		}
		regs.Set(inst.RA, word)

	case OpSSTORE:
		return vm.Memory.Write(regs.Get(inst.RA), regs.Get(inst.RB), regs.Get(inst.RC))

	case OpADD:
		regs.Set(inst.RA, regs.Get(inst.RB)+regs.Get(inst.RC))

	case OpMUL:
		regs.Set(inst.RA, regs.Get(inst.RB)*regs.Get(inst.RC))

	case OpDIV:
		divisor := regs.Get(inst.RC)
		if divisor == 0 {
			return fmt.Errorf("%w: division by zero", ErrUndefined)
		}
		regs.Set(inst.RA, regs.Get(inst.RB)/divisor)

	case OpNAND:
		regs.Set(inst.RA, ^(regs.Get(inst.RB) & regs.Get(inst.RC)))

	case OpHALT:
		vm.State = StateHalted

	case OpMAP:
		id, err := vm.Memory.Map(regs.Get(inst.RC))
		if err != nil {
			return err
		}
		regs.Set(inst.RB, id)

	case OpUNMAP:
		return vm.Memory.Unmap(regs.Get(inst.RC))

	case OpOUT:
		value := regs.Get(inst.RC)
		if value > 0xFF {
			return fmt.Errorf("%w: output value %d exceeds one byte", ErrUndefined, value)
		}
		if _, err := vm.OutputWriter.Write([]byte{byte(value)}); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}

	case OpIN:
		b, err := vm.input.ReadByte()
		switch err {
		case nil:
			regs.Set(inst.RC, uint32(b))
		case io.EOF:
			// End of input is signalled in-band as an all-ones word.
			regs.Set(inst.RC, ^uint32(0))
		default:
			return fmt.Errorf("reading input: %w", err)
		}

	case OpLOADP:
		return vm.Memory.LoadProgram(regs.Get(inst.RB), regs.Get(inst.RC))

	case OpLV:
		regs.Set(inst.LoadReg, inst.Value)

	default:
		return fmt.Errorf("%w: %d", ErrBadOpcode, uint32(inst.Op))
	}

	return nil
}

// Run executes instructions until the program halts or faults. Returns nil
// on a clean halt.
func (vm *VM) Run() error {
	vm.State = StateRunning
	for vm.State == StateRunning {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Reset returns the machine to its pre-run state: registers and counters
// zeroed, instruction pointer untouched (the program decides where it runs
// from via load-program).
func (vm *VM) Reset() {
	vm.Registers.Reset()
	vm.Memory.Reset()
	vm.State = StateHalted
	vm.Cycles = 0
	vm.LastError = nil
}

// DumpState returns a one-line summary of the machine for diagnostics.
func (vm *VM) DumpState() string {
	r := vm.Registers.Snapshot()
	return fmt.Sprintf("ip=%d cycles=%d state=%d r=%08X %08X %08X %08X %08X %08X %08X %08X",
		vm.Memory.IP(), vm.Cycles, vm.State,
		r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7])
}
