package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"

	"basketvault/core/types"
)

// AddressPrefix defines the human-readable part used when rendering
// addresses.
type AddressPrefix string

const (
	// BasketPrefix is the default prefix for every vault identity.
	BasketPrefix AddressPrefix = "bskt"
)

// Address pairs a raw identity with the prefix it is rendered under.
type Address struct {
	prefix AddressPrefix
	raw    types.Address
}

// NewAddress wraps raw with the supplied prefix.
func NewAddress(prefix AddressPrefix, raw types.Address) Address {
	return Address{prefix: prefix, raw: raw}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Raw returns the underlying identity.
func (a Address) Raw() types.Address { return a.raw }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// DecodeAddress parses a bech32 encoded address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != types.AddressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), types.BytesToAddress(conv)), nil
}

// FormatAddress renders raw with the default prefix.
func FormatAddress(raw types.Address) string {
	return NewAddress(BasketPrefix, raw).String()
}

// ParseAddress accepts either a bech32 address carrying the default prefix or
// a 0x-prefixed hex string.
func ParseAddress(s string) (types.Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return types.Address{}, fmt.Errorf("address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return types.ParseHexAddress(trimmed)
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return types.Address{}, err
	}
	if addr.Prefix() != BasketPrefix {
		return types.Address{}, fmt.Errorf("unsupported address prefix %q", addr.Prefix())
	}
	return addr.Raw(), nil
}
