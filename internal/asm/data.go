package asm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"fortio.org/safecast"
)

// DataID is the label of a data-section entry.
type DataID uint32

// DataKind separates word literals from byte blobs.
type DataKind uint8

const (
	DataWord DataKind = iota
	DataBytes
)

// Literal is a constant placed in the data section.
type Literal struct {
	Kind  DataKind
	Word  uint64
	Bytes []byte
}

func WordLiteral(v uint64) Literal { return Literal{Kind: DataWord, Word: v} }
func BytesLiteral(b []byte) Literal {
	return Literal{Kind: DataBytes, Bytes: append([]byte(nil), b...)}
}
func B256Literal(b [32]byte) Literal { return BytesLiteral(b[:]) }
func StrLiteral(s string) Literal    { return BytesLiteral([]byte(s)) }

// SizeWords is the number of data-section words the literal occupies.
func (l Literal) SizeWords() uint64 {
	if l.Kind == DataWord {
		return 1
	}
	return (uint64(len(l.Bytes)) + 7) / 8
}

func (l Literal) key() string {
	if l.Kind == DataWord {
		return fmt.Sprintf("w:%d", l.Word)
	}
	return "b:" + hex.EncodeToString(l.Bytes)
}

func (l Literal) String() string {
	if l.Kind == DataWord {
		return fmt.Sprintf(".word %d", l.Word)
	}
	return fmt.Sprintf(".bytes[%d] 0x%s", len(l.Bytes), hex.EncodeToString(l.Bytes))
}

// DataSection is the deduplicated literal pool of a program.
type DataSection struct {
	items   []Literal
	offsets []uint64
	size    uint64
	index   map[string]DataID
}

func NewDataSection() *DataSection {
	return &DataSection{index: make(map[string]DataID)}
}

// Insert adds lit unless an identical literal exists and returns its label.
func (d *DataSection) Insert(lit Literal) DataID {
	k := lit.key()
	if id, ok := d.index[k]; ok {
		return id
	}
	id := safecast.MustConv[DataID](len(d.items))
	d.items = append(d.items, lit)
	d.offsets = append(d.offsets, d.size)
	d.size += lit.SizeWords()
	d.index[k] = id
	return id
}

func (d *DataSection) Len() int { return len(d.items) }

func (d *DataSection) Get(id DataID) (Literal, bool) {
	if int(id) >= len(d.items) {
		return Literal{}, false
	}
	return d.items[id], true
}

// OffsetWords returns the word offset of id from the section start.
func (d *DataSection) OffsetWords(id DataID) uint64 {
	return d.offsets[id]
}

// SizeWords returns the section size.
func (d *DataSection) SizeWords() uint64 { return d.size }

// Merge inserts every literal of other and returns the relabelling table.
func (d *DataSection) Merge(other *DataSection) []DataID {
	if other == nil {
		return nil
	}
	remap := make([]DataID, len(other.items))
	for i, lit := range other.items {
		remap[i] = d.Insert(lit)
	}
	return remap
}

// Bytes serialises the section: words big-endian, blobs zero-padded to a word.
func (d *DataSection) Bytes() []byte {
	out := make([]byte, 0, d.size*8)
	for _, lit := range d.items {
		if lit.Kind == DataWord {
			out = binary.BigEndian.AppendUint64(out, lit.Word)
			continue
		}
		out = append(out, lit.Bytes...)
		for pad := lit.SizeWords()*8 - uint64(len(lit.Bytes)); pad > 0; pad-- {
			out = append(out, 0)
		}
	}
	return out
}
