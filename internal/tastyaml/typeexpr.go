package tastyaml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"swayc/internal/types"
)

// builtinType resolves the primitive type names.
func builtinType(bt types.Builtins, name string) types.TypeID {
	switch name {
	case "()", "unit":
		return bt.Unit
	case "bool":
		return bt.Bool
	case "u8":
		return bt.U8
	case "u16":
		return bt.U16
	case "u32":
		return bt.U32
	case "u64":
		return bt.U64
	case "byte":
		return bt.Byte
	case "b256":
		return bt.B256
	case "contract":
		return bt.Contract
	}
	return types.NoTypeID
}

// typeOf parses the type written in n:
//
//	u64 | bool | b256 | () | str[N] | [T; N] | (T, U) | abi Name | Name
//
// Errors are reported at n and yield the recovery type.
func (d *decoder) typeOf(n *yaml.Node) types.TypeID {
	if n == nil {
		return d.bt.ErrorRecovery
	}
	if n.Kind != yaml.ScalarNode {
		d.errorf(n, "expected a type")
		return d.bt.ErrorRecovery
	}
	p := typeParser{d: d, src: n.Value}
	t, err := p.parse()
	if err == nil && p.skipSpace() < len(p.src) {
		err = fmt.Errorf("unexpected %q", p.src[p.pos:])
	}
	if err != nil {
		d.errorf(n, "type %q: %v", n.Value, err)
		return d.bt.ErrorRecovery
	}
	return t
}

type typeParser struct {
	d   *decoder
	src string
	pos int
}

func (p *typeParser) skipSpace() int {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	return p.pos
}

func (p *typeParser) eat(s string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *typeParser) expect(s string) error {
	if !p.eat(s) {
		return fmt.Errorf("expected %q at offset %d", s, p.pos)
	}
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) count() (uint32, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("expected a length at offset %d", start)
	}
	return safecast.Conv[uint32](n)
}

func (p *typeParser) parse() (types.TypeID, error) {
	tin := p.d.tin
	switch {
	case p.eat("("):
		if p.eat(")") {
			return p.d.bt.Unit, nil
		}
		var elems []types.TypeID
		for {
			t, err := p.parse()
			if err != nil {
				return types.NoTypeID, err
			}
			elems = append(elems, t)
			if p.eat(")") {
				break
			}
			if err := p.expect(","); err != nil {
				return types.NoTypeID, err
			}
			if p.eat(")") {
				break
			}
		}
		return tin.Tuple(elems), nil
	case p.eat("["):
		elem, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect(";"); err != nil {
			return types.NoTypeID, err
		}
		n, err := p.count()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return tin.Array(elem, n), nil
	}

	name := p.ident()
	switch name {
	case "":
		return types.NoTypeID, fmt.Errorf("expected a type at offset %d", p.pos)
	case "str":
		if err := p.expect("["); err != nil {
			return types.NoTypeID, err
		}
		n, err := p.count()
		if err != nil {
			return types.NoTypeID, err
		}
		if err := p.expect("]"); err != nil {
			return types.NoTypeID, err
		}
		return tin.Str(n), nil
	case "abi":
		abi := p.ident()
		if _, ok := p.d.prog.Decls.AbiByName(abi); !ok {
			return types.NoTypeID, fmt.Errorf("unknown ABI %q", abi)
		}
		return tin.ContractCaller(abi), nil
	}
	if t := builtinType(p.d.bt, name); t != types.NoTypeID {
		return t, nil
	}
	if t, ok := p.d.named[name]; ok {
		return t, nil
	}
	return types.NoTypeID, fmt.Errorf("unknown type %q", name)
}
