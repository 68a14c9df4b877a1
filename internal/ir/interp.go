package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"swayc/internal/storagekey"
	"swayc/internal/types"
)

var (
	// ErrUnsupported is returned for instructions the interpreter cannot model.
	ErrUnsupported = errors.New("instruction is not supported by the interpreter")
	// ErrArithmetic is a VM arithmetic panic such as division by zero.
	ErrArithmetic = errors.New("arithmetic error")
	// ErrStepLimit stops runaway loops.
	ErrStepLimit = errors.New("step limit exceeded")
	ErrMemory    = errors.New("memory access out of bounds")
)

// RevertError is returned when the program executes revert.
type RevertError struct {
	Code uint64
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("reverted with code %d", e.Code)
}

// Interpreter evaluates IR directly. Every value is a vector of words in
// its memory layout; pointers are word addresses into a flat memory.
type Interpreter struct {
	Module   *Module
	Storage  map[storagekey.Key][storagekey.SlotWords]uint64
	Logs     [][]uint64
	MaxSteps int

	mem   []uint64
	steps int
}

// NewInterpreter creates an interpreter whose storage holds the module's
// initialised slots.
func NewInterpreter(m *Module) *Interpreter {
	it := &Interpreter{
		Module:   m,
		Storage:  make(map[storagekey.Key][storagekey.SlotWords]uint64, len(m.StorageSlots)),
		MaxSteps: 1 << 20,
	}
	for _, s := range m.StorageSlots {
		var words [storagekey.SlotWords]uint64
		for i := range words {
			words[i] = binary.BigEndian.Uint64(s.Value[i*8:])
		}
		it.Storage[s.Key] = words
	}
	return it
}

// Run calls the named function. A demoted return value is read back from
// memory so callers always observe the original value.
func (it *Interpreter) Run(name string, args ...[]uint64) ([]uint64, error) {
	f := it.Module.FuncByName(name)
	if f == nil {
		return nil, fmt.Errorf("no function %q", name)
	}
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("function %s takes %d arguments, got %d", name, len(f.Params), len(args))
	}
	it.steps = 0
	base := len(it.mem)
	defer func() { it.mem = it.mem[:base] }()
	out, err := it.call(f, args, 0)
	if err != nil {
		return nil, err
	}
	if f.DemotedRet != types.NoTypeID && f.IsEntry {
		size, err := it.size(f.DemotedRet)
		if err != nil {
			return nil, err
		}
		return it.read(out[0], size)
	}
	return out, nil
}

func (it *Interpreter) size(t types.TypeID) (uint64, error) {
	return it.Module.Layout.SizeOf(t)
}

func (it *Interpreter) read(addr, n uint64) ([]uint64, error) {
	if addr+n > uint64(len(it.mem)) || addr+n < addr {
		return nil, fmt.Errorf("%w: read %d words at %d", ErrMemory, n, addr)
	}
	return slices.Clone(it.mem[addr : addr+n]), nil
}

func (it *Interpreter) write(addr uint64, words []uint64) error {
	n := uint64(len(words))
	if addr+n > uint64(len(it.mem)) || addr+n < addr {
		return fmt.Errorf("%w: write %d words at %d", ErrMemory, n, addr)
	}
	copy(it.mem[addr:], words)
	return nil
}

func (it *Interpreter) alloc(n uint64) uint64 {
	addr := uint64(len(it.mem))
	it.mem = append(it.mem, make([]uint64, n)...)
	return addr
}

type frame struct {
	f      *Function
	args   [][]uint64
	vals   [][]uint64
	locals []uint64
}

func (it *Interpreter) call(f *Function, args [][]uint64, depth int) ([]uint64, error) {
	if depth > 256 {
		return nil, fmt.Errorf("%w: call depth", ErrStepLimit)
	}
	fr := &frame{f: f, args: args, vals: make([][]uint64, len(f.Values)), locals: make([]uint64, len(f.Locals))}
	for i, l := range f.Locals {
		n, err := it.size(l.Type)
		if err != nil {
			return nil, err
		}
		fr.locals[i] = it.alloc(n)
	}
	prev, cur := NoBlockID, f.Entry
	for {
		next, ret, err := it.block(fr, prev, cur, depth)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		if ret != nil {
			return ret, nil
		}
		prev, cur = cur, next
	}
}

func (it *Interpreter) get(fr *frame, id ValueID) ([]uint64, error) {
	v := fr.f.Value(id)
	if v == nil {
		return nil, fmt.Errorf("unknown value v%d", id)
	}
	switch v.Kind {
	case ValueArg:
		return fr.args[v.Arg], nil
	case ValueConst:
		return it.constWords(v)
	}
	if fr.vals[id] == nil {
		n, err := it.size(v.Type)
		if err != nil || n != 0 {
			return nil, fmt.Errorf("value v%d used before definition", id)
		}
	}
	return fr.vals[id], nil
}

func (it *Interpreter) constWords(v *Value) ([]uint64, error) {
	switch v.Const.Kind {
	case ConstUnit:
		return []uint64{}, nil
	case ConstBool:
		if v.Const.Bool {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case ConstUint:
		return []uint64{v.Const.Uint}, nil
	case ConstB256:
		return B256Words(v.Const.B256), nil
	case ConstStr:
		n, err := it.size(v.Type)
		if err != nil {
			return nil, err
		}
		return StrWords(v.Const.Str, n), nil
	case ConstUndef:
		n, err := it.size(v.Type)
		if err != nil {
			return nil, err
		}
		return make([]uint64, n), nil
	}
	return nil, fmt.Errorf("bad constant kind %d", v.Const.Kind)
}

// B256Words splits a 256-bit value into four big-endian words.
func B256Words(b [32]byte) []uint64 {
	out := make([]uint64, 4)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return out
}

// StrWords packs s into n words, big-endian, zero padded.
func StrWords(s string, n uint64) []uint64 {
	buf := make([]byte, n*8)
	copy(buf, s)
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(buf[i*8:])
	}
	return out
}

func (it *Interpreter) block(fr *frame, prev, cur BlockID, depth int) (BlockID, []uint64, error) {
	f := fr.f
	bb := f.Block(cur)
	if bb == nil {
		return NoBlockID, nil, fmt.Errorf("jump to missing block %d", cur)
	}
	// Phis read their inputs before any of them is written.
	nphi := f.FirstNonPhi(cur)
	phiVals := make([][]uint64, nphi)
	for i := range nphi {
		v := f.Value(bb.Instrs[i])
		found := false
		for _, in := range v.Instr.Incoming {
			if in.Block == prev {
				w, err := it.get(fr, in.Value)
				if err != nil {
					return NoBlockID, nil, err
				}
				phiVals[i] = w
				found = true
				break
			}
		}
		if !found {
			return NoBlockID, nil, fmt.Errorf("%s: phi v%d has no value for predecessor %d", bb.Label, v.ID, prev)
		}
	}
	for i := range nphi {
		fr.vals[bb.Instrs[i]] = phiVals[i]
	}
	for _, id := range bb.Instrs[nphi:] {
		it.steps++
		if it.MaxSteps > 0 && it.steps > it.MaxSteps {
			return NoBlockID, nil, ErrStepLimit
		}
		v := f.Value(id)
		switch v.Instr.Op {
		case OpBranch:
			return v.Instr.Targets[0], nil, nil
		case OpCondBranch:
			c, err := it.get(fr, v.Instr.Operands[0])
			if err != nil {
				return NoBlockID, nil, err
			}
			if c[0] != 0 {
				return v.Instr.Targets[0], nil, nil
			}
			return v.Instr.Targets[1], nil, nil
		case OpRet:
			r, err := it.get(fr, v.Instr.Operands[0])
			if err != nil {
				return NoBlockID, nil, err
			}
			return NoBlockID, slices.Clone(r), nil
		case OpRevert:
			c, err := it.get(fr, v.Instr.Operands[0])
			if err != nil {
				return NoBlockID, nil, err
			}
			return NoBlockID, nil, &RevertError{Code: c[0]}
		}
		res, err := it.exec(fr, v, depth)
		if err != nil {
			return NoBlockID, nil, fmt.Errorf("%s: v%d %s: %w", bb.Label, id, v.Instr.Op, err)
		}
		fr.vals[id] = res
	}
	return NoBlockID, nil, fmt.Errorf("%s: fell off the end of the block", bb.Label)
}

func (it *Interpreter) operands(fr *frame, v *Value) ([][]uint64, error) {
	out := make([][]uint64, len(v.Instr.Operands))
	for i, op := range v.Instr.Operands {
		w, err := it.get(fr, op)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func (it *Interpreter) exec(fr *frame, v *Value, depth int) ([]uint64, error) {
	ops, err := it.operands(fr, v)
	if err != nil {
		return nil, err
	}
	f := fr.f
	tin := it.Module.Types
	switch v.Instr.Op {
	case OpNop:
		return nil, nil
	case OpBinary:
		r, err := binary64(v.Instr.BinOp, ops[0][0], ops[1][0])
		if err != nil {
			return nil, err
		}
		return []uint64{r & widthMask(tin, v.Type)}, nil
	case OpCmp:
		if compare(v.Instr.Pred, ops[0], ops[1]) {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case OpNot:
		if tin.KindOf(v.Type) == types.KindBool {
			return []uint64{ops[0][0] ^ 1}, nil
		}
		return []uint64{^ops[0][0] & widthMask(tin, v.Type)}, nil
	case OpCall:
		callee := it.Module.Func(v.Instr.Callee)
		if callee == nil {
			return nil, fmt.Errorf("call to unknown function %d", v.Instr.Callee)
		}
		return it.call(callee, ops, depth+1)
	case OpContractCall:
		return nil, ErrUnsupported
	case OpGetLocal:
		return []uint64{fr.locals[v.Instr.Local]}, nil
	case OpLoad:
		n, err := it.size(v.Type)
		if err != nil {
			return nil, err
		}
		return it.read(ops[0][0], n)
	case OpStore:
		return nil, it.write(ops[0][0], ops[1])
	case OpGetElemPtr:
		elem, _ := tin.PointeeOf(f.Value(v.Instr.Operands[0]).Type)
		off, _, err := it.Module.Layout.IndexOffsetWords(elem, v.Instr.Indices)
		if err != nil {
			return nil, err
		}
		return []uint64{ops[0][0] + off}, nil
	case OpInsertValue:
		aggType := f.Value(v.Instr.Operands[0]).Type
		off, _, err := it.Module.Layout.IndexOffsetWords(aggType, v.Instr.Indices)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(ops[0])
		if off+uint64(len(ops[1])) > uint64(len(out)) {
			return nil, fmt.Errorf("%w: insert past aggregate end", ErrMemory)
		}
		copy(out[off:], ops[1])
		return out, nil
	case OpExtractValue:
		aggType := f.Value(v.Instr.Operands[0]).Type
		off, leaf, err := it.Module.Layout.IndexOffsetWords(aggType, v.Instr.Indices)
		if err != nil {
			return nil, err
		}
		n, err := it.size(leaf)
		if err != nil {
			return nil, err
		}
		if off+n > uint64(len(ops[0])) {
			return nil, fmt.Errorf("%w: extract past aggregate end", ErrMemory)
		}
		return slices.Clone(ops[0][off : off+n]), nil
	case OpStateLoadWord:
		slot := it.Storage[wordsKey(ops[0])]
		return []uint64{slot[0]}, nil
	case OpStateStoreWord:
		var slot [storagekey.SlotWords]uint64
		slot[0] = ops[1][0]
		it.Storage[wordsKey(ops[0])] = slot
		return nil, nil
	case OpStateLoadQuad:
		key := wordsKey(ops[0])
		for i := range v.Instr.Slots {
			slot := it.Storage[key.Add(i)]
			if err := it.write(ops[1][0]+i*storagekey.SlotWords, slot[:]); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case OpStateStoreQuad:
		key := wordsKey(ops[0])
		for i := range v.Instr.Slots {
			w, err := it.read(ops[1][0]+i*storagekey.SlotWords, storagekey.SlotWords)
			if err != nil {
				return nil, err
			}
			var slot [storagekey.SlotWords]uint64
			copy(slot[:], w)
			it.Storage[key.Add(i)] = slot
		}
		return nil, nil
	case OpLog:
		it.Logs = append(it.Logs, slices.Clone(ops[0]))
		return nil, nil
	case OpPtrToInt, OpCastPtr:
		return []uint64{ops[0][0]}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, v.Instr.Op)
}

func wordsKey(w []uint64) storagekey.Key {
	var k storagekey.Key
	for i := 0; i < 4 && i < len(w); i++ {
		binary.BigEndian.PutUint64(k[i*8:], w[i])
	}
	return k
}

func widthMask(in *types.Interner, t types.TypeID) uint64 {
	tt, ok := in.Lookup(t)
	if !ok {
		return ^uint64(0)
	}
	switch tt.Kind {
	case types.KindBool:
		return 1
	case types.KindByte:
		return 0xff
	case types.KindUint:
		if tt.Width >= 64 {
			return ^uint64(0)
		}
		return 1<<uint(tt.Width) - 1
	}
	return ^uint64(0)
}

func binary64(op BinOp, a, b uint64) (uint64, error) {
	switch op {
	case BinAdd:
		return a + b, nil
	case BinSub:
		return a - b, nil
	case BinMul:
		return a * b, nil
	case BinDiv:
		if b == 0 {
			return 0, fmt.Errorf("%w: division by zero", ErrArithmetic)
		}
		return a / b, nil
	case BinMod:
		if b == 0 {
			return 0, fmt.Errorf("%w: modulo by zero", ErrArithmetic)
		}
		return a % b, nil
	case BinAnd:
		return a & b, nil
	case BinOr:
		return a | b, nil
	case BinXor:
		return a ^ b, nil
	case BinShl:
		return a << (b & 63), nil
	case BinShr:
		return a >> (b & 63), nil
	}
	return 0, fmt.Errorf("%w: binop %d", ErrUnsupported, op)
}

func compare(p Pred, a, b []uint64) bool {
	c := slices.Compare(a, b)
	switch p {
	case PredEq:
		return c == 0
	case PredNe:
		return c != 0
	case PredLt:
		return c < 0
	case PredLe:
		return c <= 0
	case PredGt:
		return c > 0
	case PredGe:
		return c >= 0
	}
	return false
}
