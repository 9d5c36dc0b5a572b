package vm

import "errors"

// Error kinds surfaced by the machine. Callers match them with errors.Is;
// most are wrapped with positional context by the time they reach main.
var (
	// ErrInvalidWidth is reported when a bitpack operation is called with a
	// field geometry that does not fit in a 64-bit word.
	ErrInvalidWidth = errors.New("bit field exceeds 64-bit word")

	// ErrOverflow is reported when a value does not fit the requested field.
	ErrOverflow = errors.New("value does not fit in bit field")

	// ErrTruncatedProgram is reported when a program binary ends in the
	// middle of a 32-bit word.
	ErrTruncatedProgram = errors.New("program ends mid-word")

	// ErrOutOfMemory is reported when a segment of the requested size cannot
	// be allocated.
	ErrOutOfMemory = errors.New("cannot allocate segment")

	// ErrBadOpcode is reported when a fetched instruction carries a reserved
	// opcode (14 or 15).
	ErrBadOpcode = errors.New("invalid opcode")

	// ErrUndefined covers behaviour the machine specification leaves
	// undefined: division by zero, out-of-bounds access, unmapping an
	// unmapped segment, writing a byte larger than 255. This implementation
	// detects these and halts with a diagnostic rather than continuing.
	ErrUndefined = errors.New("undefined machine behaviour")
)
