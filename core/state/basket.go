package state

import (
	"fmt"

	"basketvault/core/types"
	"basketvault/native/basket"
)

var (
	basketConfigPrefix = []byte("basket/config/")
	basketIndexKey     = []byte("basket/index")
)

func basketConfigKey(token types.Address) []byte {
	buf := make([]byte, len(basketConfigPrefix)+len(token))
	copy(buf, basketConfigPrefix)
	copy(buf[len(basketConfigPrefix):], token[:])
	return buf
}

type storedBasketConfig struct {
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
	CreatedAt        uint64
}

func newStoredBasketConfig(cfg *basket.Config) *storedBasketConfig {
	createdAt := uint64(0)
	if cfg.CreatedAt > 0 {
		createdAt = uint64(cfg.CreatedAt)
	}
	return &storedBasketConfig{
		Authority:        cfg.Authority,
		BasketToken:      cfg.BasketToken,
		ConfigAddress:    cfg.ConfigAddress,
		CustodyAuthority: cfg.CustodyAuthority,
		Assets:           append([]types.Address(nil), cfg.Assets...),
		PerUnit:          append([]uint64(nil), cfg.PerUnit...),
		UnitScale:        cfg.UnitScale,
		Decimals:         cfg.Decimals,
		ConfigBump:       cfg.ConfigBump,
		CustodyBump:      cfg.CustodyBump,
		CreatedAt:        createdAt,
	}
}

func (s *storedBasketConfig) toConfig() *basket.Config {
	return &basket.Config{
		Authority:        s.Authority,
		BasketToken:      s.BasketToken,
		ConfigAddress:    s.ConfigAddress,
		CustodyAuthority: s.CustodyAuthority,
		Assets:           append([]types.Address(nil), s.Assets...),
		PerUnit:          append([]uint64(nil), s.PerUnit...),
		UnitScale:        s.UnitScale,
		Decimals:         s.Decimals,
		ConfigBump:       s.ConfigBump,
		CustodyBump:      s.CustodyBump,
		CreatedAt:        int64(s.CreatedAt),
	}
}

// BasketLoad returns the lifecycle state of the basket keyed by token.
func (m *Manager) BasketLoad(token types.Address) (basket.State, error) {
	var stored storedBasketConfig
	ok, err := m.KVGet(basketConfigKey(token), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return basket.Uninitialized{}, nil
	}
	return basket.Active{Config: stored.toConfig()}, nil
}

// BasketCreate persists a new basket configuration. A second creation for the
// same basket token fails instead of overwriting the first.
func (m *Manager) BasketCreate(cfg *basket.Config) error {
	if cfg == nil {
		return fmt.Errorf("basket: nil config")
	}
	key := basketConfigKey(cfg.BasketToken)
	exists, err := m.KVGet(key, nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", basket.ErrAlreadyInitialized, cfg.BasketToken)
	}
	if err := m.KVPut(key, newStoredBasketConfig(cfg)); err != nil {
		return err
	}
	return m.KVAppend(basketIndexKey, cfg.BasketToken.Bytes())
}

// BasketTokens lists the basket tokens of every stored configuration in
// creation order.
func (m *Manager) BasketTokens() ([]types.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(basketIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, len(raw))
	for _, entry := range raw {
		out = append(out, types.BytesToAddress(entry))
	}
	return out, nil
}
