package hexutil

import (
	"bytes"
	"testing"
)

func TestToBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
		hasError bool
	}{
		{"0x1234", []byte{0x12, 0x34}, false},
		{"1234", []byte{0x12, 0x34}, false},
		{"0xabcd", []byte{0xab, 0xcd}, false},
		{"ABCD", []byte{0xab, 0xcd}, false},
		{"", []byte{}, false},
		{"0x", []byte{}, false},
		{"xyz", nil, true},
		{"0x123", nil, true}, // odd length
	}

	for _, tt := range tests {
		result, err := ToBytes(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ToBytes(%q) should return error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ToBytes(%q) returned error: %v", tt.input, err)
		}
		if !bytes.Equal(result, tt.expected) {
			t.Errorf("ToBytes(%q) = %x, want %x", tt.input, result, tt.expected)
		}
	}
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		input    []byte
		expected string
	}{
		{[]byte{0x12, 0x34}, "0x1234"},
		{[]byte{0xab, 0xcd}, "0xabcd"},
		{[]byte{}, "0x"},
		{[]byte{0x00}, "0x00"},
	}

	for _, tt := range tests {
		if got := FromBytes(tt.input); got != tt.expected {
			t.Errorf("FromBytes(%x) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMustToBytesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustToBytes should panic on invalid hex")
		}
	}()
	MustToBytes("not-hex")
}

func TestValidNonce(t *testing.T) {
	if !ValidNonce("0xdeadbeef") {
		t.Error("expected 4-byte nonce to be valid")
	}
	if ValidNonce("0xdead") {
		t.Error("expected short nonce to be invalid")
	}
	if ValidNonce("0xnotahexvalue") {
		t.Error("expected non-hex nonce to be invalid")
	}
}

func TestValidHash(t *testing.T) {
	hash := make([]byte, 32)
	if !ValidHash(FromBytes(hash)) {
		t.Error("expected 32-byte hash to be valid")
	}
	if ValidHash("0xdead") {
		t.Error("expected short hash to be invalid")
	}
}

func TestPadLeft(t *testing.T) {
	got := PadLeft([]byte{0x01, 0x02}, 4)
	want := []byte{0x00, 0x00, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("PadLeft = %x, want %x", got, want)
	}

	same := []byte{0x01, 0x02, 0x03, 0x04}
	if got := PadLeft(same, 2); !bytes.Equal(got, same) {
		t.Errorf("PadLeft should leave longer input untouched, got %x", got)
	}
}
