// Package authority derives the custody identities that act on behalf of a
// basket. A derived identity has no private key: it exists only as a
// Capability handed to the basket engine, and the ledger tells derived and
// external principals apart so no caller can sign as one.
package authority

import (
	"errors"
	"fmt"
	"strings"

	"basketvault/core/types"
	"basketvault/crypto"
)

const (
	// DefaultNamespace seeds every derivation when no namespace is configured.
	DefaultNamespace = "basketvault"

	configSeed  = "config"
	custodySeed = "custody"
)

var (
	// ErrNoValidBump is returned when no salt in 0..255 yields a usable address.
	ErrNoValidBump = errors.New("authority: no valid derivation bump")
	// ErrInvalidBump is returned when a persisted salt no longer derives a
	// usable address.
	ErrInvalidBump = errors.New("authority: invalid derivation bump")
)

// Principal is the identity an operation is authorised by.
type Principal struct {
	address types.Address
	derived bool
}

// External returns the principal of a caller-held identity.
func External(addr types.Address) Principal {
	return Principal{address: addr}
}

// Address returns the identity the principal acts as.
func (p Principal) Address() types.Address { return p.address }

// Derived reports whether the principal was issued from a Capability.
func (p Principal) Derived() bool { return p.derived }

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool { return p.address.IsZero() }

func (p Principal) String() string {
	if p.derived {
		return "derived:" + crypto.FormatAddress(p.address)
	}
	return crypto.FormatAddress(p.address)
}

// Capability is the signing capability of a custody authority. The zero value
// is not valid; capabilities are only produced by a Deriver.
type Capability struct {
	principal Principal
	config    types.Address
	bump      uint8
}

// Principal returns the derived principal the capability signs as.
func (c Capability) Principal() Principal { return c.principal }

// Address returns the custody authority identity.
func (c Capability) Address() types.Address { return c.principal.address }

// Config returns the configuration record the capability was derived from.
func (c Capability) Config() types.Address { return c.config }

// Bump returns the derivation salt.
func (c Capability) Bump() uint8 { return c.bump }

// Valid reports whether the capability was issued by a Deriver.
func (c Capability) Valid() bool {
	return c.principal.derived && !c.principal.address.IsZero()
}

// Deriver maps basket identities to configuration addresses and custody
// capabilities. It is deterministic and holds no state beyond its namespace.
type Deriver struct {
	namespace []byte
}

// NewDeriver returns a deriver scoped to namespace. An empty namespace falls
// back to DefaultNamespace.
func NewDeriver(namespace string) *Deriver {
	trimmed := strings.TrimSpace(namespace)
	if trimmed == "" {
		trimmed = DefaultNamespace
	}
	return &Deriver{namespace: []byte(trimmed)}
}

// ConfigAddress returns the identity of the configuration record for
// basketToken together with the salt that produced it.
func (d *Deriver) ConfigAddress(basketToken types.Address) (types.Address, uint8, error) {
	return d.find([]byte(configSeed), basketToken[:])
}

// Derive returns the custody capability of the configuration record at
// config, searching for the canonical salt.
func (d *Deriver) Derive(config types.Address) (Capability, error) {
	addr, bump, err := d.find([]byte(custodySeed), config[:])
	if err != nil {
		return Capability{}, err
	}
	return newCapability(addr, config, bump), nil
}

// Rederive reproduces a custody capability from a persisted salt.
func (d *Deriver) Rederive(config types.Address, bump uint8) (Capability, error) {
	addr, ok := d.create(bump, []byte(custodySeed), config[:])
	if !ok {
		return Capability{}, fmt.Errorf("%w: %d", ErrInvalidBump, bump)
	}
	return newCapability(addr, config, bump), nil
}

func newCapability(addr, config types.Address, bump uint8) Capability {
	return Capability{
		principal: Principal{address: addr, derived: true},
		config:    config,
		bump:      bump,
	}
}

func (d *Deriver) find(seeds ...[]byte) (types.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		if addr, ok := d.create(uint8(bump), seeds...); ok {
			return addr, uint8(bump), nil
		}
	}
	return types.Address{}, 0, ErrNoValidBump
}

func (d *Deriver) create(bump uint8, seeds ...[]byte) (types.Address, bool) {
	if d == nil {
		return types.Address{}, false
	}
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, d.namespace)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump})
	addr := crypto.Keccak256Address(parts...)
	if addr.IsZero() {
		return types.Address{}, false
	}
	return addr, true
}
