package powcore

import "encoding/binary"

// HeaderSize is the fixed, bit-exact wire size of a serialized BlockHeader.
const HeaderSize = 80

// BlockHeader is a Bitcoin-family block header template. Nonce is the only
// field a mining worker mutates while searching.
type BlockHeader struct {
	Version    uint32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Serialize encodes the header into its canonical 80-byte wire form:
// version (4 LE) || prev_hash (32 raw) || merkle_root (32 raw) ||
// timestamp (4 LE) || bits (4 LE) || nonce (4 LE).
func (h BlockHeader) Serialize() [HeaderSize]byte {
	var out [HeaderSize]byte
	binary.LittleEndian.PutUint32(out[0:4], h.Version)
	copy(out[4:36], h.PrevHash[:])
	copy(out[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(out[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(out[72:76], h.Bits)
	binary.LittleEndian.PutUint32(out[76:80], h.Nonce)
	return out
}

// ParseBlockHeader is the inverse of Serialize.
func ParseBlockHeader(data [HeaderSize]byte) BlockHeader {
	var h BlockHeader
	h.Version = binary.LittleEndian.Uint32(data[0:4])
	copy(h.PrevHash[:], data[4:36])
	copy(h.MerkleRoot[:], data[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(data[68:72])
	h.Bits = binary.LittleEndian.Uint32(data[72:76])
	h.Nonce = binary.LittleEndian.Uint32(data[76:80])
	return h
}

// HashTarget is a 32-byte big-endian proof-of-work threshold.
type HashTarget struct {
	Target [32]byte
}

// TargetFromBits decodes the compact-256 "bits" encoding into a HashTarget.
// Let e = bits>>24 and m = bits & 0xFFFFFF; for 3 <= e <= 32, m's three bytes
// (MSB-first) land at offsets (32-e, 32-e+1, 32-e+2) of an otherwise-zero
// buffer, skipping any offset that would fall out of range. Exponents
// outside [3, 32] decode to an all-zero target, which no hash ever satisfies.
func TargetFromBits(bits uint32) HashTarget {
	var target [32]byte

	exponent := int(bits >> 24)
	mantissa := bits & 0x00FFFFFF

	if exponent >= 3 && exponent <= 32 {
		start := 32 - exponent
		target[start] = byte(mantissa >> 16)
		if start+1 < 32 {
			target[start+1] = byte(mantissa >> 8)
		}
		if start+2 < 32 {
			target[start+2] = byte(mantissa)
		}
	}

	return HashTarget{Target: target}
}

// IsValidHash reports whether hash meets the target under unsigned
// big-endian comparison: hash <= target (equal counts as valid).
func (t HashTarget) IsValidHash(hash [32]byte) bool {
	for i := 0; i < 32; i++ {
		if hash[i] < t.Target[i] {
			return true
		}
		if hash[i] > t.Target[i] {
			return false
		}
	}
	return true
}
