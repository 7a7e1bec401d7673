package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainKey         = "fxparams/key/v1"
	DomainValue       = "fxparams/value/v1"
	DomainPermutation = "fxparams/permutation/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueHash computes the content hash of a single value.
// Returns error if the value cannot be canonically marshaled.
func ValueHash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// PermutationID identifies a compiled program by the values of the keys that
// select it. Keys and values are index-aligned; order is significant.
//
// Two calls with equal key lists and Equal values return the same id.
func PermutationID(keys []Key, values []Value) (string, error) {
	if len(keys) != len(values) {
		return "", fmt.Errorf("PermutationID: %d keys but %d values", len(keys), len(values))
	}

	pairs := make(List, len(keys))
	for i, k := range keys {
		pairs[i] = List{String(k.Name), values[i]}
	}

	canonical, err := MarshalCanonical(pairs)
	if err != nil {
		return "", fmt.Errorf("PermutationID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainPermutation, canonical), nil
}

// MustPermutationID is like PermutationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPermutationID(keys []Key, values []Value) string {
	id, err := PermutationID(keys, values)
	if err != nil {
		panic(err)
	}
	return id
}
