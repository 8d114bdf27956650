package basket

import (
	"fmt"

	"github.com/holiman/uint256"
)

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GCD reduces the pairwise Euclidean gcd across values. It returns zero for
// an empty list or a list of zeros.
func GCD(values []uint64) uint64 {
	var g uint64
	for _, v := range values {
		g = gcd(g, v)
		if g == 1 {
			return 1
		}
	}
	return g
}

// Normalize divides the gcd out of raw and returns the reduced amounts with
// the divisor. Every raw value must be positive.
func Normalize(raw []uint64) ([]uint64, uint64, error) {
	if len(raw) == 0 {
		return nil, 0, ErrZeroAssets
	}
	for i, v := range raw {
		if v == 0 {
			return nil, 0, fmt.Errorf("%w: ratio %d is zero", ErrInvalidUnit, i)
		}
	}
	g := GCD(raw)
	out := make([]uint64, len(raw))
	for i, v := range raw {
		out[i] = v / g
	}
	return out, g, nil
}

// Equivalent checks that supplied is a uniformly scaled copy of perUnit.
func Equivalent(perUnit, supplied []uint64) error {
	if len(supplied) != len(perUnit) {
		return fmt.Errorf("%w: got %d ratios, want %d", ErrWrongArgumentLength, len(supplied), len(perUnit))
	}
	g := GCD(supplied)
	if g == 0 {
		return fmt.Errorf("%w: zero ratio list", ErrConfigRatioMismatch)
	}
	for i, v := range supplied {
		if v%g != 0 || v/g != perUnit[i] {
			return fmt.Errorf("%w: asset %d", ErrConfigRatioMismatch, i)
		}
	}
	return nil
}

// checkedMul multiplies a and b, failing when the product leaves uint64.
func checkedMul(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmeticOverflow, a, b)
	}
	return product.Uint64(), nil
}

// scaledPerUnit returns perUnit[i]*unitScale for every asset.
func scaledPerUnit(cfg *Config) ([]uint64, error) {
	out := make([]uint64, len(cfg.PerUnit))
	for i, v := range cfg.PerUnit {
		scaled, err := checkedMul(v, cfg.UnitScale)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// unitsFor divides every leg by its unit and requires a single common,
// positive multiplier.
func unitsFor(amounts, units []uint64) (uint64, error) {
	if len(amounts) != len(units) {
		return 0, fmt.Errorf("%w: got %d amounts, want %d", ErrWrongArgumentLength, len(amounts), len(units))
	}
	var k uint64
	for i, amount := range amounts {
		if amount == 0 {
			return 0, fmt.Errorf("%w: asset %d", ErrZeroAmount, i)
		}
		if units[i] == 0 {
			return 0, fmt.Errorf("%w: asset %d", ErrInvalidUnit, i)
		}
		if amount%units[i] != 0 {
			return 0, fmt.Errorf("%w: asset %d amount %d per unit %d", ErrNonMultipleDeposit, i, amount, units[i])
		}
		ki := amount / units[i]
		if i == 0 {
			k = ki
			continue
		}
		if ki != k {
			return 0, fmt.Errorf("%w: asset %d scales by %d, asset 0 by %d", ErrRatioMismatch, i, ki, k)
		}
	}
	if k == 0 {
		return 0, ErrZeroMint
	}
	return k, nil
}

// payouts computes amount*perUnit[i]*unitScale for every asset.
func payouts(cfg *Config, amount uint64) ([]uint64, error) {
	scaled, err := scaledPerUnit(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(scaled))
	for i, s := range scaled {
		owed, err := checkedMul(amount, s)
		if err != nil {
			return nil, err
		}
		out[i] = owed
	}
	return out, nil
}
