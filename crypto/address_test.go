package crypto

import (
	"bytes"
	"strings"
	"testing"

	"basketvault/core/types"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	raw := types.BytesToAddress(bytes.Repeat([]byte{0x42}, types.AddressLength))
	encoded := FormatAddress(raw)
	if !strings.HasPrefix(encoded, string(BasketPrefix)+"1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	decoded, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decoded != raw {
		t.Fatalf("round trip mismatch")
	}
	fromHex, err := ParseAddress(raw.Hex())
	if err != nil || fromHex != raw {
		t.Fatalf("hex form should parse: %v", err)
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	raw := types.BytesToAddress([]byte{0x01})
	foreign := NewAddress("other", raw).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if _, err := ParseAddress("   "); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
}

func TestKeccak256AddressDeterministic(t *testing.T) {
	a := Keccak256Address([]byte("holding"), []byte{0x01})
	b := Keccak256Address([]byte("holding"), []byte{0x01})
	c := Keccak256Address([]byte("holding"), []byte{0x02})
	if a != b {
		t.Fatalf("derivation must be deterministic")
	}
	if a == c {
		t.Fatalf("distinct seeds must yield distinct addresses")
	}
}
