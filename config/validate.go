package config

import (
	"fmt"
	"strings"

	"basketvault/native/basket"
)

// MaxAssetsLimit is the largest asset bound accepted from configuration.
const MaxAssetsLimit = 255

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required")
	}
	if c.MaxAssets < 1 || c.MaxAssets > MaxAssetsLimit {
		return fmt.Errorf("MaxAssets must be between 1 and %d", MaxAssetsLimit)
	}
	if _, err := basket.ParseUnitBasis(c.DepositUnitBasis); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit values must not be negative")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("Logging rotation values must not be negative")
	}
	for _, m := range c.PausedModules {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("PausedModules entries must not be empty")
		}
	}
	return nil
}

// UnitBasis returns the parsed deposit unit basis.
func (c *Config) UnitBasis() basket.UnitBasis {
	b, _ := basket.ParseUnitBasis(c.DepositUnitBasis)
	return b
}

// Warnings lists settings that are accepted but unsafe to run with.
func (c *Config) Warnings() []string {
	var out []string
	if c.UnitBasis() == basket.UnitBasisNormalized {
		out = append(out, `DepositUnitBasis "normalized" does not conserve value when the ratio has a common factor; set "scaled" to preserve deposited value on redemption`)
	}
	return out
}
