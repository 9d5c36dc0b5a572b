package vm

import "fmt"

// Mnemonics indexed by opcode
var opcodeNames = [opcodeLimit]string{
	OpCMOV:   "cmov",
	OpSLOAD:  "sload",
	OpSSTORE: "sstore",
	OpADD:    "add",
	OpMUL:    "mul",
	OpDIV:    "div",
	OpNAND:   "nand",
	OpHALT:   "halt",
	OpMAP:    "map",
	OpUNMAP:  "unmap",
	OpOUT:    "out",
	OpIN:     "in",
	OpLOADP:  "loadp",
	OpLV:     "loadval",
}

// Mnemonic returns the lower-case name of the opcode, or "op14"/"op15" for
// the reserved encodings.
func (op Opcode) Mnemonic() string {
	if !op.Valid() {
		return fmt.Sprintf("op%d", uint32(op))
	}
	return opcodeNames[op]
}

// Disassemble renders a decoded instruction as one line of text, showing
// only the operands the opcode actually uses.
func Disassemble(inst Instruction) string {
	switch inst.Op {
	case OpHALT:
		return "halt"
	case OpLV:
		return fmt.Sprintf("loadval r%d, %d", inst.LoadReg, inst.Value)
	case OpMAP, OpLOADP:
		return fmt.Sprintf("%s r%d, r%d", inst.Op.Mnemonic(), inst.RB, inst.RC)
	case OpUNMAP, OpOUT, OpIN:
		return fmt.Sprintf("%s r%d", inst.Op.Mnemonic(), inst.RC)
	case OpCMOV, OpSLOAD, OpSSTORE, OpADD, OpMUL, OpDIV, OpNAND:
		return fmt.Sprintf("%s r%d, r%d, r%d", inst.Op.Mnemonic(), inst.RA, inst.RB, inst.RC)
	default:
		return fmt.Sprintf("%s 0x%08X", inst.Op.Mnemonic(), inst.Word)
	}
}
