package storagekey

import "encoding/binary"

// Slot is one initialised storage slot.
type Slot struct {
	Key   Key
	Value [SlotBytes]byte
}

// SlotCount returns the number of slots a value of sizeWords occupies.
// Zero-sized values occupy no slot.
func SlotCount(sizeWords uint64) uint64 {
	return (sizeWords + SlotWords - 1) / SlotWords
}

// Slots serialises a constant laid out as words into consecutive slots
// starting at key. Words are written big-endian; the tail of the last slot
// is zero.
func Slots(key Key, words []uint64) []Slot {
	n := SlotCount(uint64(len(words)))
	out := make([]Slot, 0, n)
	for i := range n {
		var s Slot
		s.Key = key.Add(i)
		for w := range uint64(SlotWords) {
			idx := i*SlotWords + w
			if idx >= uint64(len(words)) {
				break
			}
			binary.BigEndian.PutUint64(s.Value[w*8:], words[idx])
		}
		out = append(out, s)
	}
	return out
}
