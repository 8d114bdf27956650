package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of every account, asset and authority
// identity handled by the vault.
const AddressLength = 20

// Address identifies an asset, a holding account or a principal.
type Address [AddressLength]byte

// BytesToAddress copies b into an Address. Longer inputs are cropped from the
// left so the trailing bytes are kept, shorter inputs are left-padded.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ParseHexAddress decodes a 0x-prefixed (or bare) 40 character hex string.
func ParseHexAddress(s string) (Address, error) {
	var a Address
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 2*AddressLength {
		return a, fmt.Errorf("address must be %d bytes (got %d hex chars)", AddressLength, len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	copy(a[:], decoded)
	return a, nil
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }
