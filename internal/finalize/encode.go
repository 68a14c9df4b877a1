package finalize

import (
	"fmt"

	"fortio.org/safecast"

	"swayc/internal/asm"
)

func fitsImm(v uint64, bits uint) bool { return v < 1<<bits }

// Encode packs in into one 32-bit word: the opcode byte, then six bits
// per register operand from the top, then the immediate in the low bits.
func Encode(in Instr) (uint32, error) {
	info := in.Opcode.Info()
	if info.Name == "" {
		return 0, fmt.Errorf("invalid opcode %d", in.Opcode)
	}
	if len(in.Regs) != info.Format.Regs() {
		return 0, fmt.Errorf("%s takes %d registers, got %d", info.Name, info.Format.Regs(), len(in.Regs))
	}
	w := uint32(info.Byte) << 24
	shift := 18
	for _, r := range in.Regs {
		if r.Kind != asm.RegReal || r.Num >= asm.NumRegisters {
			return 0, fmt.Errorf("operand %s is not a machine register", r)
		}
		w |= r.Num << shift
		shift -= 6
	}
	if bits := info.Format.ImmBits(); bits > 0 {
		if !fitsImm(in.Imm, bits) {
			return 0, fmt.Errorf("immediate %d does not fit in %d bits", in.Imm, bits)
		}
		imm, err := safecast.Conv[uint32](in.Imm)
		if err != nil {
			return 0, fmt.Errorf("immediate %d: %w", in.Imm, err)
		}
		w |= imm
	} else if in.Imm != 0 {
		return 0, fmt.Errorf("%s takes no immediate", info.Name)
	}
	return w, nil
}

var byByte = func() map[byte]asm.Opcode {
	m := make(map[byte]asm.Opcode)
	for op := asm.OpInvalid + 1; op.Info().Name != ""; op++ {
		m[op.Info().Byte] = op
	}
	return m
}()

// Decode is the inverse of Encode.
func Decode(w uint32) (Instr, error) {
	opc, ok := byByte[byte(w>>24)]
	if !ok {
		return Instr{}, fmt.Errorf("unknown opcode byte %#02x", w>>24)
	}
	f := opc.Info().Format
	in := Instr{Opcode: opc}
	shift := 18
	for range f.Regs() {
		in.Regs = append(in.Regs, asm.Real((w>>shift)&0x3f))
		shift -= 6
	}
	if bits := f.ImmBits(); bits > 0 {
		in.Imm = uint64(w & (1<<bits - 1))
	}
	return in, nil
}

// Disassemble decodes a code section, stopping at the first word that is
// not an instruction.
func Disassemble(code []byte) ([]Instr, error) {
	if len(code)%InstrBytes != 0 {
		return nil, fmt.Errorf("code length %d is not a multiple of %d", len(code), InstrBytes)
	}
	out := make([]Instr, 0, len(code)/InstrBytes)
	for i := 0; i < len(code); i += InstrBytes {
		w := uint32(code[i])<<24 | uint32(code[i+1])<<16 | uint32(code[i+2])<<8 | uint32(code[i+3])
		in, err := Decode(w)
		if err != nil {
			return out, fmt.Errorf("offset %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}
