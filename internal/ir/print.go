package ir

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"swayc/internal/types"
)

// Print writes a human-readable dump of m.
func Print(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s\n", m.Kind, m.Name)
	if len(m.StorageSlots) > 0 {
		fmt.Fprintf(bw, "storage slots=%d\n", len(m.StorageSlots))
		for _, s := range m.StorageSlots {
			fmt.Fprintf(bw, "  0x%s = 0x%s\n", hex.EncodeToString(s.Key[:]), hex.EncodeToString(s.Value[:]))
		}
	}
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		printFunc(bw, m, f)
	}
	return bw.Flush()
}

// FuncString renders one function.
func FuncString(m *Module, f *Function) string {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	printFunc(bw, m, f)
	_ = bw.Flush()
	return sb.String()
}

func printFunc(w *bufio.Writer, m *Module, f *Function) {
	p := printer{m: m, f: f}
	params := make([]string, len(f.Params))
	for i, id := range f.Params {
		v := f.Value(id)
		params[i] = fmt.Sprintf("v%d %s: %s", id, v.Name, p.typ(v.Type))
	}
	fmt.Fprintf(w, "\nfn %s(%s) -> %s", f.Name, strings.Join(params, ", "), p.typ(f.Ret))
	if f.IsEntry {
		w.WriteString(" entry")
	}
	if f.HasSelector {
		fmt.Fprintf(w, " selector=0x%08x", f.Selector)
	}
	w.WriteString(":\n")
	if len(f.Locals) > 0 {
		w.WriteString("  locals:\n")
		for i, l := range f.Locals {
			mut := ""
			if l.Mutable {
				mut = " mut"
			}
			fmt.Fprintf(w, "    l%d %s: %s%s\n", i, l.Name, p.typ(l.Type), mut)
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  %s:\n", bb.Label)
		for _, id := range bb.Instrs {
			fmt.Fprintf(w, "    %s\n", p.instr(id))
		}
	}
}

type printer struct {
	m *Module
	f *Function
}

func (p printer) typ(id types.TypeID) string {
	if p.m == nil || p.m.Types == nil {
		return "t" + strconv.Itoa(int(id))
	}
	return p.m.Types.String(id)
}

func (p printer) block(id BlockID) string {
	if bb := p.f.Block(id); bb != nil {
		return bb.Label
	}
	return fmt.Sprintf("<bad block %d>", id)
}

func (p printer) operand(id ValueID) string {
	v := p.f.Value(id)
	if v == nil {
		return fmt.Sprintf("<bad value %d>", id)
	}
	if v.Kind != ValueConst {
		return "v" + strconv.Itoa(int(id))
	}
	switch v.Const.Kind {
	case ConstUnit:
		return "()"
	case ConstBool:
		return strconv.FormatBool(v.Const.Bool)
	case ConstUint:
		return fmt.Sprintf("%s %d", p.typ(v.Type), v.Const.Uint)
	case ConstB256:
		return "0x" + hex.EncodeToString(v.Const.B256[:])
	case ConstStr:
		return strconv.Quote(v.Const.Str)
	case ConstUndef:
		return "undef " + p.typ(v.Type)
	}
	return "?"
}

func (p printer) operands(ids []ValueID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = p.operand(id)
	}
	return strings.Join(parts, ", ")
}

func indexList(idx []uint64) string {
	parts := make([]string, len(idx))
	for i, x := range idx {
		parts[i] = strconv.FormatUint(x, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (p printer) instr(id ValueID) string {
	v := p.f.Value(id)
	in := &v.Instr
	var body string
	switch in.Op {
	case OpBinary:
		body = fmt.Sprintf("%s %s", in.BinOp, p.operands(in.Operands))
	case OpCmp:
		body = fmt.Sprintf("cmp %s %s", in.Pred, p.operands(in.Operands))
	case OpBranch:
		return "br " + p.block(in.Targets[0])
	case OpCondBranch:
		return fmt.Sprintf("cbr %s, %s, %s", p.operand(in.Operands[0]), p.block(in.Targets[0]), p.block(in.Targets[1]))
	case OpRet, OpRevert, OpStore, OpStateStoreWord, OpLog:
		return fmt.Sprintf("%s %s", in.Op, p.operands(in.Operands))
	case OpStateLoadQuad, OpStateStoreQuad:
		return fmt.Sprintf("%s %s, slots %d", in.Op, p.operands(in.Operands), in.Slots)
	case OpCall:
		name := fmt.Sprintf("f%d", in.Callee)
		if callee := p.m.Func(in.Callee); callee != nil {
			name = callee.Name
		}
		body = fmt.Sprintf("call %s(%s)", name, p.operands(in.Operands))
	case OpGetLocal:
		name := ""
		if int(in.Local) < len(p.f.Locals) {
			name = " " + p.f.Locals[in.Local].Name
		}
		body = fmt.Sprintf("get_local l%d%s", in.Local, name)
	case OpGetElemPtr, OpInsertValue, OpExtractValue:
		body = fmt.Sprintf("%s %s, %s", in.Op, p.operands(in.Operands), indexList(in.Indices))
	case OpPhi:
		parts := make([]string, len(in.Incoming))
		for i, inc := range in.Incoming {
			parts[i] = fmt.Sprintf("%s: %s", p.block(inc.Block), p.operand(inc.Value))
		}
		body = "phi (" + strings.Join(parts, ", ") + ")"
	case OpNop:
		return "nop"
	default:
		body = fmt.Sprintf("%s %s", in.Op, p.operands(in.Operands))
	}
	return fmt.Sprintf("v%d = %s : %s", id, body, p.typ(v.Type))
}
