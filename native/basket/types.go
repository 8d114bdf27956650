package basket

import (
	"fmt"

	"basketvault/core/types"
)

const (
	// ModuleName identifies the basket module for pause checks.
	ModuleName = "basket"
	// DefaultMaxAssets bounds the number of underlying assets per basket.
	DefaultMaxAssets = 8
)

// UnitBasis selects the per-asset quantity a deposit leg is divided by when
// computing the number of basket tokens to mint.
type UnitBasis uint8

const (
	// UnitBasisNormalized divides each leg by the normalized per-unit amount.
	UnitBasisNormalized UnitBasis = iota
	// UnitBasisScaled divides each leg by perUnit*unitScale, the raw amount
	// redeemed per basket token.
	UnitBasisScaled
)

func (b UnitBasis) String() string {
	switch b {
	case UnitBasisNormalized:
		return "normalized"
	case UnitBasisScaled:
		return "scaled"
	default:
		return fmt.Sprintf("unit-basis(%d)", uint8(b))
	}
}

// ParseUnitBasis maps a configuration string onto a UnitBasis.
func ParseUnitBasis(s string) (UnitBasis, error) {
	switch s {
	case "", "normalized":
		return UnitBasisNormalized, nil
	case "scaled":
		return UnitBasisScaled, nil
	default:
		return 0, fmt.Errorf("basket: unknown unit basis %q", s)
	}
}

// Config is the immutable composition of a basket.
type Config struct {
	Authority        types.Address
	BasketToken      types.Address
	ConfigAddress    types.Address
	CustodyAuthority types.Address
	Assets           []types.Address
	PerUnit          []uint64
	UnitScale        uint64
	Decimals         uint8
	ConfigBump       uint8
	CustodyBump      uint8
	CreatedAt        int64
}

// NumAssets returns the number of underlying assets.
func (c *Config) NumAssets() int {
	if c == nil {
		return 0
	}
	return len(c.Assets)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Assets = append([]types.Address(nil), c.Assets...)
	clone.PerUnit = append([]uint64(nil), c.PerUnit...)
	return &clone
}

// Validate checks the invariants every stored configuration satisfies.
func (c *Config) Validate(maxAssets int) error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrZeroAssets)
	}
	n := len(c.Assets)
	if n == 0 {
		return ErrZeroAssets
	}
	if maxAssets > 0 && n > maxAssets {
		return fmt.Errorf("%w: %d > %d", ErrTooManyAssets, n, maxAssets)
	}
	if len(c.PerUnit) != n {
		return fmt.Errorf("%w: %d assets, %d per-unit amounts", ErrWrongArgumentLength, n, len(c.PerUnit))
	}
	if c.BasketToken.IsZero() || c.CustodyAuthority.IsZero() {
		return fmt.Errorf("%w: basket token and custody authority required", ErrInvalidConfig)
	}
	if c.UnitScale == 0 {
		return ErrInvalidUnit
	}
	seen := make(map[types.Address]struct{}, n)
	for i, asset := range c.Assets {
		if asset.IsZero() {
			return fmt.Errorf("%w: asset %d unset", ErrInvalidConfig, i)
		}
		if asset == c.BasketToken {
			return fmt.Errorf("%w: basket token cannot back itself", ErrInvalidConfig)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, asset)
		}
		seen[asset] = struct{}{}
		if c.PerUnit[i] == 0 {
			return fmt.Errorf("%w: asset %d", ErrInvalidUnit, i)
		}
	}
	if GCD(c.PerUnit) != 1 {
		return fmt.Errorf("%w: per-unit amounts not normalized", ErrInvalidConfig)
	}
	return nil
}

// State is the lifecycle of a basket: Uninitialized or Active.
type State interface {
	isState()
}

// Uninitialized marks a basket token with no stored configuration.
type Uninitialized struct{}

// Active carries the configuration of an initialised basket.
type Active struct {
	Config *Config
}

func (Uninitialized) isState() {}
func (Active) isState()        {}

// Summary is the index entry returned by Baskets.
type Summary struct {
	BasketToken   types.Address
	ConfigAddress types.Address
	NumAssets     int
	Decimals      uint8
	Supply        uint64
}

// Holding reports the vault balance backing one leg of a basket.
type Holding struct {
	Asset    types.Address
	Vault    types.Address
	PerUnit  uint64
	Balance  uint64
	Required uint64
	Backed   bool
}

// Leg is one asset amount of a quote, deposit or redemption.
type Leg struct {
	Asset  types.Address
	Amount uint64
}
