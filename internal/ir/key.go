package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key identifies a parameter.
//
// Keys are comparable and can be used as map keys. Always build them with
// NewKey or ParseKey so the name is normalized and Hash is populated;
// a zero Key is invalid.
type Key struct {
	// Name is the NFC-normalized parameter name, e.g. "Material.DiffuseColor".
	Name string

	// Hash is a stable 64-bit hash of Name (see KeyHash).
	Hash uint64
}

// ParseKey builds a Key from a parameter name.
// Returns an error for empty or whitespace-only names.
func ParseKey(name string) (Key, error) {
	normalized := norm.NFC.String(name)
	if strings.TrimSpace(normalized) == "" {
		return Key{}, fmt.Errorf("parameter key name is empty")
	}
	return Key{Name: normalized, Hash: KeyHash(normalized)}, nil
}

// NewKey is like ParseKey but panics on an invalid name.
// Intended for package-level key declarations.
func NewKey(name string) Key {
	k, err := ParseKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

// Keys builds keys for several names. Panics on invalid names.
func Keys(names ...string) []Key {
	out := make([]Key, len(names))
	for i, n := range names {
		out[i] = NewKey(n)
	}
	return out
}

// IsZero reports whether k was never initialized.
func (k Key) IsZero() bool {
	return k.Name == ""
}

// String returns the key name.
func (k Key) String() string {
	return k.Name
}

// KeyHash computes the 64-bit hash of a (normalized) key name:
// the first 8 bytes, big endian, of SHA256(DomainKey + 0x00 + name).
// Stable across processes and releases, so it may be persisted.
func KeyHash(name string) uint64 {
	h := sha256.New()
	h.Write([]byte(DomainKey))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	var sum [sha256.Size]byte
	return binary.BigEndian.Uint64(h.Sum(sum[:0])[:8])
}
