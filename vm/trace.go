package vm

import (
	"fmt"
	"io"
)

// TraceEntry represents a single executed instruction
type TraceEntry struct {
	Cycle       uint64
	IP          uint32 // index of the instruction in segment 0
	Word        uint32
	Disassembly string
	Registers   [NumRegisters]uint32 // register file after execution
}

// ExecutionTrace records each executed instruction for later inspection.
// Entries accumulate in memory up to MaxEntries and are written out on
// Flush.
type ExecutionTrace struct {
	Enabled    bool
	Writer     io.Writer
	MaxEntries int

	entries []TraceEntry
	dropped uint64
}

// NewExecutionTrace creates a trace writing to w on Flush.
func NewExecutionTrace(w io.Writer) *ExecutionTrace {
	return &ExecutionTrace{
		Enabled:    true,
		Writer:     w,
		MaxEntries: 100000,
		entries:    make([]TraceEntry, 0, 1024),
	}
}

// Start clears any previously recorded entries.
func (t *ExecutionTrace) Start() {
	t.entries = t.entries[:0]
	t.dropped = 0
}

// Record appends one entry. Entries beyond MaxEntries are counted but not
// kept.
func (t *ExecutionTrace) Record(cycle uint64, ip uint32, inst Instruction, regs [NumRegisters]uint32) {
	if !t.Enabled {
		return
	}
	if t.MaxEntries > 0 && len(t.entries) >= t.MaxEntries {
		t.dropped++
		return
	}
	t.entries = append(t.entries, TraceEntry{
		Cycle:       cycle,
		IP:          ip,
		Word:        inst.Word,
		Disassembly: Disassemble(inst),
		Registers:   regs,
	})
}

// GetEntries returns the recorded entries.
func (t *ExecutionTrace) GetEntries() []TraceEntry {
	return t.entries
}

// Flush writes the recorded entries to the trace writer.
func (t *ExecutionTrace) Flush() error {
	if t.Writer == nil {
		return nil
	}

	for _, e := range t.entries {
		_, err := fmt.Fprintf(t.Writer, "%8d  %6d  %08X  %-24s  r0=%08X r1=%08X r2=%08X r3=%08X r4=%08X r5=%08X r6=%08X r7=%08X\n",
			e.Cycle, e.IP, e.Word, e.Disassembly,
			e.Registers[0], e.Registers[1], e.Registers[2], e.Registers[3],
			e.Registers[4], e.Registers[5], e.Registers[6], e.Registers[7])
		if err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}

	if t.dropped > 0 {
		if _, err := fmt.Fprintf(t.Writer, "... %d entries dropped (max %d)\n", t.dropped, t.MaxEntries); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}

	return nil
}
