package vm

// Machine parameters
const (
	NumRegisters = 8  // General purpose registers r0-r7
	WordBits     = 32 // All values are 32-bit words

	DefaultMaxCycles = 0 // 0 = no instruction limit
)

// Instruction field geometry (bit positions within a 32-bit word)
const (
	OpcodeWidth = 4
	OpcodeLSB   = 28

	RegWidth = 3
	RegALSB  = 6
	RegBLSB  = 3
	RegCLSB  = 0

	// Load-value layout: register in bits 27-25, immediate in bits 24-0
	LoadRegLSB = 25
	ValueWidth = 25
	ValueLSB   = 0
)

// Initial capacity guesses for segment storage, sized for typical programs
const (
	programSizeGuess = 16384
	segmentPoolGuess = 1024
	freeStackGuess   = 256
)
