package types

import (
	"bytes"
	"testing"
)

func TestParseHexAddressRoundTrip(t *testing.T) {
	var addr Address
	copy(addr[:], bytes.Repeat([]byte{0xAB}, AddressLength))

	parsed, err := ParseHexAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("round trip mismatch: %s != %s", parsed, addr)
	}
	bare, err := ParseHexAddress(addr.Hex()[2:])
	if err != nil || bare != addr {
		t.Fatalf("bare hex should parse: %v", err)
	}
}

func TestParseHexAddressRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "0x1234", "0x" + string(bytes.Repeat([]byte("zz"), AddressLength))} {
		if _, err := ParseHexAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestBytesToAddressPadsAndCrops(t *testing.T) {
	short := BytesToAddress([]byte{0x01, 0x02})
	if short[AddressLength-1] != 0x02 || short[AddressLength-2] != 0x01 || short[0] != 0 {
		t.Fatalf("unexpected left padding: %x", short)
	}
	long := BytesToAddress(bytes.Repeat([]byte{0x07}, 32))
	if long != BytesToAddress(bytes.Repeat([]byte{0x07}, AddressLength)) {
		t.Fatalf("unexpected crop: %x", long)
	}
	if !(Address{}).IsZero() || long.IsZero() {
		t.Fatalf("IsZero misreported")
	}
}
