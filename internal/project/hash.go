package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a fixed 256-bit hash, compatible with source.File.Hash.
type Digest [32]byte

// Combine hashes content followed by deps in order: H(content || dep1 || ...).
// Callers pass deps in a deterministic order.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// DigestOf hashes raw bytes.
func DigestOf(data []byte) Digest {
	return sha256.Sum256(data)
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
