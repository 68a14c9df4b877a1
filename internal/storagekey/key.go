// Package storagekey derives contract storage keys and lays constant values
// out in 32-byte storage slots.
package storagekey

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SlotBytes is the size of a storage slot.
const SlotBytes = 32

// SlotWords is the number of VM words in one slot.
const SlotWords = SlotBytes / 8

// Key is a 32-byte storage key.
type Key [32]byte

// Derive returns the key of a storage field. An explicit key wins; otherwise
// the key is sha256("storage::" + path) with path joined by "." after NFC
// normalisation, so visually identical identifiers map to the same slot.
func Derive(path []string, explicit *Key) Key {
	if explicit != nil {
		return *explicit
	}
	qualified := "storage::" + norm.NFC.String(strings.Join(path, "."))
	return sha256.Sum256([]byte(qualified))
}

// Add returns k + n treating the key as a 256-bit big-endian integer.
// Consecutive slots of a multi-slot value use consecutive keys.
func (k Key) Add(n uint64) Key {
	out := k
	carry := n
	for i := 3; i >= 0 && carry != 0; i-- {
		limb := binary.BigEndian.Uint64(out[i*8:])
		sum := limb + carry
		if sum < limb {
			carry = 1
		} else {
			carry = 0
		}
		binary.BigEndian.PutUint64(out[i*8:], sum)
	}
	return out
}
