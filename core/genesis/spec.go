package genesis

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"basketvault/core/types"
	"basketvault/crypto"
)

var assetSeed = []byte("asset")

// Spec lists the assets and opening balances a fresh vault boots with.
type Spec struct {
	Assets      []AssetSpec      `yaml:"assets"`
	Allocations []AllocationSpec `yaml:"allocations"`
}

type AssetSpec struct {
	Symbol        string `yaml:"symbol"`
	Address       string `yaml:"address,omitempty"`
	Decimals      uint8  `yaml:"decimals"`
	MintAuthority string `yaml:"mint_authority"`
}

type AllocationSpec struct {
	Owner  string `yaml:"owner"`
	Asset  string `yaml:"asset"`
	Amount uint64 `yaml:"amount"`
}

// Load reads and validates a YAML genesis file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML genesis document.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// AssetAddress returns the asset identity, deriving one from the symbol when
// no address is configured.
func (a AssetSpec) AssetAddress() (types.Address, error) {
	if strings.TrimSpace(a.Address) != "" {
		return crypto.ParseAddress(a.Address)
	}
	symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
	if symbol == "" {
		return types.Address{}, fmt.Errorf("asset symbol required")
	}
	return crypto.Keccak256Address(assetSeed, []byte(symbol)), nil
}

// Validate checks symbols are unique, addresses parse and allocations refer
// to declared assets.
func (s *Spec) Validate() error {
	symbols := make(map[string]struct{}, len(s.Assets))
	addrs := make(map[types.Address]string, len(s.Assets))
	for i, asset := range s.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("assets[%d]: symbol required", i)
		}
		if _, dup := symbols[symbol]; dup {
			return fmt.Errorf("assets[%d]: duplicate symbol %s", i, symbol)
		}
		symbols[symbol] = struct{}{}
		addr, err := asset.AssetAddress()
		if err != nil {
			return fmt.Errorf("assets[%d] %s: %w", i, symbol, err)
		}
		if other, dup := addrs[addr]; dup {
			return fmt.Errorf("assets[%d] %s: address already used by %s", i, symbol, other)
		}
		addrs[addr] = symbol
		if _, err := crypto.ParseAddress(asset.MintAuthority); err != nil {
			return fmt.Errorf("assets[%d] %s mint_authority: %w", i, symbol, err)
		}
	}
	for i, alloc := range s.Allocations {
		if _, ok := symbols[strings.ToUpper(strings.TrimSpace(alloc.Asset))]; !ok {
			return fmt.Errorf("allocations[%d]: unknown asset %q", i, alloc.Asset)
		}
		if _, err := crypto.ParseAddress(alloc.Owner); err != nil {
			return fmt.Errorf("allocations[%d] owner: %w", i, err)
		}
		if alloc.Amount == 0 {
			return fmt.Errorf("allocations[%d]: amount must be positive", i)
		}
	}
	return nil
}

func (s *Spec) asset(symbol string) (AssetSpec, bool) {
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for _, a := range s.Assets {
		if strings.ToUpper(strings.TrimSpace(a.Symbol)) == want {
			return a, true
		}
	}
	return AssetSpec{}, false
}
