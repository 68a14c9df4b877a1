package asm

// Format is the operand layout of an encoded instruction.
type Format uint8

const (
	FmtNone Format = iota
	FmtR
	FmtRR
	FmtRRR
	FmtRRRR
	FmtRRI12
	FmtRI18
	FmtI24
)

// Regs returns the number of register operands of the format.
func (f Format) Regs() int {
	switch f {
	case FmtR, FmtRI18:
		return 1
	case FmtRR, FmtRRI12:
		return 2
	case FmtRRR:
		return 3
	case FmtRRRR:
		return 4
	}
	return 0
}

// ImmBits returns the width of the immediate operand.
func (f Format) ImmBits() uint {
	switch f {
	case FmtRRI12:
		return 12
	case FmtRI18:
		return 18
	case FmtI24:
		return 24
	}
	return 0
}

// Opcode is a VM instruction.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	ADD
	ADDI
	AND
	ANDI
	DIV
	EQ
	GT
	LT
	MOD
	MUL
	NOT
	OR
	SLL
	SRL
	SUB
	XOR
	MOVE
	MOVI
	MEQ
	JI
	JNZI
	JMP
	RET
	RETD
	RVRT
	LW
	SW
	MCP
	MCPI
	MCLI
	CFEI
	CFSI
	PSHL
	PSHH
	POPL
	POPH
	SRW
	SWW
	SRWQ
	SWWQ
	CALL
	LOG
	LOGD
	NOOP
)

// OpcodeInfo describes the encoding of one opcode.
type OpcodeInfo struct {
	Name   string
	Format Format
	Byte   byte
	// Writes is true when the first register operand is written.
	Writes bool
}

var opcodeTable = [...]OpcodeInfo{
	ADD:  {"add", FmtRRR, 0x10, true},
	ADDI: {"addi", FmtRRI12, 0x50, true},
	AND:  {"and", FmtRRR, 0x11, true},
	ANDI: {"andi", FmtRRI12, 0x51, true},
	DIV:  {"div", FmtRRR, 0x12, true},
	EQ:   {"eq", FmtRRR, 0x13, true},
	GT:   {"gt", FmtRRR, 0x15, true},
	LT:   {"lt", FmtRRR, 0x16, true},
	MOD:  {"mod", FmtRRR, 0x18, true},
	MUL:  {"mul", FmtRRR, 0x1b, true},
	NOT:  {"not", FmtRR, 0x1c, true},
	OR:   {"or", FmtRRR, 0x1d, true},
	SLL:  {"sll", FmtRRR, 0x1e, true},
	SRL:  {"srl", FmtRRR, 0x1f, true},
	SUB:  {"sub", FmtRRR, 0x20, true},
	XOR:  {"xor", FmtRRR, 0x21, true},
	MOVE: {"move", FmtRR, 0x1a, true},
	MOVI: {"movi", FmtRI18, 0x72, true},
	MEQ:  {"meq", FmtRRRR, 0x2a, true},
	JI:   {"ji", FmtI24, 0x90, false},
	JNZI: {"jnzi", FmtRI18, 0x73, false},
	JMP:  {"jmp", FmtR, 0x9a, false},
	RET:  {"ret", FmtR, 0x24, false},
	RETD: {"retd", FmtRR, 0x25, false},
	RVRT: {"rvrt", FmtR, 0x36, false},
	LW:   {"lw", FmtRRI12, 0x5d, true},
	SW:   {"sw", FmtRRI12, 0x5f, false},
	MCP:  {"mcp", FmtRRR, 0x28, false},
	MCPI: {"mcpi", FmtRRI12, 0x60, false},
	MCLI: {"mcli", FmtRI18, 0x70, false},
	CFEI: {"cfei", FmtI24, 0x91, false},
	CFSI: {"cfsi", FmtI24, 0x92, false},
	PSHL: {"pshl", FmtI24, 0x95, false},
	PSHH: {"pshh", FmtI24, 0x96, false},
	POPL: {"popl", FmtI24, 0x97, false},
	POPH: {"poph", FmtI24, 0x98, false},
	SRW:  {"srw", FmtRRR, 0x37, true},
	SWW:  {"sww", FmtRRR, 0x3b, false},
	SRWQ: {"srwq", FmtRRRR, 0x38, false},
	SWWQ: {"swwq", FmtRRRR, 0x3c, false},
	CALL: {"call", FmtRRRR, 0x2d, false},
	LOG:  {"log", FmtRRRR, 0x33, false},
	LOGD: {"logd", FmtRRRR, 0x34, false},
	NOOP: {"noop", FmtNone, 0x47, false},
}

// Info returns the table entry of op.
func (op Opcode) Info() OpcodeInfo {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op]
	}
	return OpcodeInfo{}
}

func (op Opcode) String() string {
	if n := op.Info().Name; n != "" {
		return n
	}
	return "invalid"
}

// Writes returns the registers op writes.
func (op Opcode) Writes(regs []Register) []Register {
	switch op {
	case SRW:
		// The status register is written by every storage access.
		if len(regs) > 1 {
			return regs[:2]
		}
	case SWW, SRWQ, SWWQ:
		if len(regs) > 1 {
			return regs[1:2]
		}
		return nil
	}
	if op.Info().Writes && len(regs) > 0 {
		return regs[:1]
	}
	return nil
}

// Reads returns the registers op reads.
func (op Opcode) Reads(regs []Register) []Register {
	switch op {
	case SRW:
		if len(regs) > 2 {
			return regs[2:]
		}
		return nil
	case SWW, SRWQ, SWWQ:
		out := make([]Register, 0, len(regs))
		for i, r := range regs {
			if i != 1 {
				out = append(out, r)
			}
		}
		return out
	}
	if op.Info().Writes && len(regs) > 0 {
		return regs[1:]
	}
	return regs
}

// IsTerminal reports whether control never falls through op.
func (op Opcode) IsTerminal() bool {
	switch op {
	case JI, JMP, RET, RETD, RVRT:
		return true
	}
	return false
}
