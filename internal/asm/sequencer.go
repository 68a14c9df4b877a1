package asm

import (
	"fmt"
	"math"
)

// RegisterSequencer hands out fresh virtual registers and labels for one
// function. It is never shared between functions.
type RegisterSequencer struct {
	prefix string
	next   uint32
	labels uint32
}

// NewSequencer returns a sequencer whose labels are prefixed with scope.
func NewSequencer(scope string) *RegisterSequencer {
	return &RegisterSequencer{prefix: scope}
}

// Next returns a virtual register never issued before by this sequencer.
func (s *RegisterSequencer) Next() Register {
	if s.next == math.MaxUint32 {
		panic("asm: virtual register space exhausted")
	}
	r := Virtual(s.next)
	s.next++
	return r
}

// Issued returns the number of registers handed out.
func (s *RegisterSequencer) Issued() uint32 { return s.next }

// NextLabel returns a fresh label tagged with hint.
func (s *RegisterSequencer) NextLabel(hint string) Label {
	l := Label(fmt.Sprintf("%s.%s%d", s.prefix, hint, s.labels))
	s.labels++
	return l
}
