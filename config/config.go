package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"basketvault/native/basket"
)

const (
	DefaultListenAddress = ":8090"
	DefaultDataDir       = "./basket-data"
	DefaultJWTSecretEnv  = "BASKETD_JWT_SECRET"
)

type Config struct {
	ListenAddress       string    `toml:"ListenAddress"`
	DataDir             string    `toml:"DataDir"`
	Environment         string    `toml:"Environment"`
	DerivationNamespace string    `toml:"DerivationNamespace"`
	MaxAssets           int       `toml:"MaxAssets"`
	DepositUnitBasis    string    `toml:"DepositUnitBasis"`
	GenesisFile         string    `toml:"GenesisFile"`
	ReceiptsDSN         string    `toml:"ReceiptsDSN"`
	JWTSecretEnv        string    `toml:"JWTSecretEnv"`
	PausedModules       []string  `toml:"PausedModules"`
	RateLimit           RateLimit `toml:"RateLimit"`
	Logging             Logging   `toml:"Logging"`
	Telemetry           Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if c.MaxAssets == 0 {
		c.MaxAssets = basket.DefaultMaxAssets
	}
	if strings.TrimSpace(c.DepositUnitBasis) == "" {
		c.DepositUnitBasis = basket.UnitBasisNormalized.String()
	}
	if strings.TrimSpace(c.ReceiptsDSN) == "" {
		c.ReceiptsDSN = filepath.Join(c.DataDir, "receipts.db")
	}
	if strings.TrimSpace(c.JWTSecretEnv) == "" {
		c.JWTSecretEnv = DefaultJWTSecretEnv
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 120
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
