// Package powcore implements the proof-of-work search engine: a pure
// double-SHA-256 primitive, compact-bits target decoding, 80-byte block
// header serialization, and the nonce-partitioned mining coordinator.
package powcore

// Sha256 is a from-scratch FIPS 180-4 SHA-256 implementation. It is
// deliberately free of any external crypto dependency: this is the one
// primitive the mining core must own outright, since every share accept/
// reject decision flows through it.
type Sha256 struct {
	state     [8]uint32
	buffer    [64]byte
	bufferLen int
	totalLen  uint64
}

// sha256InitialState holds the first 32 bits of the fractional parts of the
// square roots of the first 8 primes.
var sha256InitialState = [8]uint32{
	0x6A09E667, 0xBB67AE85, 0x3C6EF372, 0xA54FF53A,
	0x510E527F, 0x9B05688C, 0x1F83D9AB, 0x5BE0CD19,
}

// sha256RoundConstants holds the first 32 bits of the fractional parts of the
// cube roots of the first 64 primes.
var sha256RoundConstants = [64]uint32{
	0x428A2F98, 0x71374491, 0xB5C0FBCF, 0xE9B5DBA5, 0x3956C25B, 0x59F111F1, 0x923F82A4, 0xAB1C5ED5,
	0xD807AA98, 0x12835B01, 0x243185BE, 0x550C7DC3, 0x72BE5D74, 0x80DEB1FE, 0x9BDC06A7, 0xC19BF174,
	0xE49B69C1, 0xEFBE4786, 0x0FC19DC6, 0x240CA1CC, 0x2DE92C6F, 0x4A7484AA, 0x5CB0A9DC, 0x76F988DA,
	0x983E5152, 0xA831C66D, 0xB00327C8, 0xBF597FC7, 0xC6E00BF3, 0xD5A79147, 0x06CA6351, 0x14292967,
	0x27B70A85, 0x2E1B2138, 0x4D2C6DFC, 0x53380D13, 0x650A7354, 0x766A0ABB, 0x81C2C92E, 0x92722C85,
	0xA2BFE8A1, 0xA81A664B, 0xC24B8B70, 0xC76C51A3, 0xD192E819, 0xD6990624, 0xF40E3585, 0x106AA070,
	0x19A4C116, 0x1E376C08, 0x2748774C, 0x34B0BCB5, 0x391C0CB3, 0x4ED8AA4A, 0x5B9CCA4F, 0x682E6FF3,
	0x748F82EE, 0x78A5636F, 0x84C87814, 0x8CC70208, 0x90BEFFFA, 0xA4506CEB, 0xBEF9A3F7, 0xC67178F2,
}

// NewSha256 creates a fresh SHA-256 hasher.
func NewSha256() *Sha256 {
	return &Sha256{state: sha256InitialState}
}

// Update feeds data into the hasher, correctly handling input that straddles
// the internal 64-byte block boundary.
func (h *Sha256) Update(data []byte) {
	h.totalLen += uint64(len(data))
	offset := 0

	if h.bufferLen > 0 {
		needed := 64 - h.bufferLen
		take := needed
		if take > len(data) {
			take = len(data)
		}
		copy(h.buffer[h.bufferLen:h.bufferLen+take], data[:take])
		h.bufferLen += take
		offset = take

		if h.bufferLen == 64 {
			h.processBlock(&h.buffer)
			h.bufferLen = 0
		}
	}

	for offset+64 <= len(data) {
		var block [64]byte
		copy(block[:], data[offset:offset+64])
		h.processBlock(&block)
		offset += 64
	}

	if offset < len(data) {
		remaining := len(data) - offset
		copy(h.buffer[:remaining], data[offset:])
		h.bufferLen = remaining
	}
}

// Finalize applies FIPS 180-4 padding and returns the 32-byte digest. The
// hasher must not be reused afterward.
func (h *Sha256) Finalize() [32]byte {
	bitLen := h.totalLen * 8

	h.buffer[h.bufferLen] = 0x80
	h.bufferLen++

	if h.bufferLen > 56 {
		for i := h.bufferLen; i < 64; i++ {
			h.buffer[i] = 0
		}
		h.processBlock(&h.buffer)
		h.bufferLen = 0
		h.buffer = [64]byte{}
	} else {
		for i := h.bufferLen; i < 56; i++ {
			h.buffer[i] = 0
		}
	}

	for i := 0; i < 8; i++ {
		h.buffer[56+i] = byte(bitLen >> (56 - 8*i))
	}
	h.processBlock(&h.buffer)

	var result [32]byte
	for i, word := range h.state {
		result[i*4] = byte(word >> 24)
		result[i*4+1] = byte(word >> 16)
		result[i*4+2] = byte(word >> 8)
		result[i*4+3] = byte(word)
	}
	return result
}

func (h *Sha256) processBlock(block *[64]byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = uint32(block[i*4])<<24 | uint32(block[i*4+1])<<16 | uint32(block[i*4+2])<<8 | uint32(block[i*4+3])
	}

	for i := 16; i < 64; i++ {
		s0 := rotr(w[i-15], 7) ^ rotr(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr(w[i-2], 17) ^ rotr(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d, e, f, g, hh := h.state[0], h.state[1], h.state[2], h.state[3], h.state[4], h.state[5], h.state[6], h.state[7]

	for i := 0; i < 64; i++ {
		s1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		ch := (e & f) ^ (^e & g)
		temp1 := hh + s1 + ch + sha256RoundConstants[i] + w[i]
		s0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		temp2 := s0 + maj

		hh = g
		g = f
		f = e
		e = d + temp1
		d = c
		c = b
		b = a
		a = temp1 + temp2
	}

	h.state[0] += a
	h.state[1] += b
	h.state[2] += c
	h.state[3] += d
	h.state[4] += e
	h.state[5] += f
	h.state[6] += g
	h.state[7] += hh
}

func rotr(x uint32, n uint) uint32 {
	return (x >> n) | (x << (32 - n))
}

// Sum256 computes the SHA-256 hash of data in one call.
func Sum256(data []byte) [32]byte {
	h := NewSha256()
	h.Update(data)
	return h.Finalize()
}

// DoubleSha256 computes SHA-256(SHA-256(data)), the Bitcoin-family PoW hash.
func DoubleSha256(data []byte) [32]byte {
	first := Sum256(data)
	return Sum256(first[:])
}
