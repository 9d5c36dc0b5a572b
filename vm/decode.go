package vm

// Opcode is the 4-bit operation field at bits 31-28 of an instruction.
type Opcode uint32

const (
	OpCMOV Opcode = iota
	OpSLOAD
	OpSSTORE
	OpADD
	OpMUL
	OpDIV
	OpNAND
	OpHALT
	OpMAP
	OpUNMAP
	OpOUT
	OpIN
	OpLOADP
	OpLV

	// Opcodes 14 and 15 are reserved; fetching one is a fault.
	opcodeLimit
)

// Instruction is a decoded machine word. Every field is extracted
// unconditionally; the opcode determines which ones are meaningful. Opcodes
// 0-12 use the three register indices RA, RB, RC in bits 8-0; the load-value
// opcode 13 uses LoadReg in bits 27-25 and the 25-bit immediate Value.
type Instruction struct {
	Word    uint32
	Op      Opcode
	RA      uint32
	RB      uint32
	RC      uint32
	LoadReg uint32
	Value   uint32
}

// Decode unpacks a machine word into its component fields.
func Decode(word uint32) Instruction {
	w := uint64(word)
	return Instruction{
		Word:    word,
		Op:      Opcode(GetUnsigned(w, OpcodeWidth, OpcodeLSB)),
		RA:      uint32(GetUnsigned(w, RegWidth, RegALSB)),
		RB:      uint32(GetUnsigned(w, RegWidth, RegBLSB)),
		RC:      uint32(GetUnsigned(w, RegWidth, RegCLSB)),
		LoadReg: uint32(GetUnsigned(w, RegWidth, LoadRegLSB)),
		Value:   uint32(GetUnsigned(w, ValueWidth, ValueLSB)),
	}
}

// Valid reports whether the opcode names a defined operation.
func (op Opcode) Valid() bool {
	return op < opcodeLimit
}
