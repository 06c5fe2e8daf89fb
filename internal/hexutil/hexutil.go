// Package hexutil provides hex encoding helpers for wire-level mining
// protocol fields (job ids, nonces, extranonces, hashes).
package hexutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ToBytes converts a hex string (with or without a "0x" prefix) to bytes.
func ToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// FromBytes converts bytes to a "0x"-prefixed hex string.
func FromBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// FromBytesNoPrefix converts bytes to a hex string without a "0x" prefix.
func FromBytesNoPrefix(b []byte) string {
	return hex.EncodeToString(b)
}

// MustToBytes converts a hex string to bytes, panicking on malformed input.
// Reserved for config-time literals, never for untrusted pool input.
func MustToBytes(s string) []byte {
	b, err := ToBytes(s)
	if err != nil {
		panic(fmt.Sprintf("hexutil: invalid hex string: %s", s))
	}
	return b
}

// IsValid reports whether s is a well-formed hex string.
func IsValid(s string) bool {
	_, err := ToBytes(s)
	return err == nil
}

// ValidNonce reports whether s is a well-formed 4-byte (8 hex char) nonce,
// the width of the BlockHeader.Nonce field.
func ValidNonce(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	return len(s) == 8 && IsValid(s)
}

// ValidHash reports whether s is a well-formed 32-byte (64 hex char) hash.
func ValidHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	return len(s) == 64 && IsValid(s)
}

// PadLeft left-pads b with zero bytes to length, returning b unchanged if it
// is already at least that long.
func PadLeft(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	padded := make([]byte, length)
	copy(padded[length-len(b):], b)
	return padded
}
