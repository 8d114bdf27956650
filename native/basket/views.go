package basket

import (
	"errors"
	"math"

	"basketvault/core/types"
)

// Basket returns the stored configuration of token.
func (e *Engine) Basket(token types.Address) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.load(token)
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Baskets lists every initialised basket in creation order.
func (e *Engine) Baskets() ([]Summary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	tokens, err := e.state.BasketTokens()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(tokens))
	for _, token := range tokens {
		cfg, err := e.load(token)
		if errors.Is(err, ErrBasketNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var supply uint64
		if meta, ok, err := e.ledger.Asset(cfg.BasketToken); err != nil {
			return nil, err
		} else if ok {
			supply = meta.Supply
		}
		out = append(out, Summary{
			BasketToken:   cfg.BasketToken,
			ConfigAddress: cfg.ConfigAddress,
			NumAssets:     cfg.NumAssets(),
			Decimals:      cfg.Decimals,
			Supply:        supply,
		})
	}
	return out, nil
}

// Holdings reports, per asset, the vault balance against the amount needed to
// redeem the full basket token supply.
func (e *Engine) Holdings(token types.Address) ([]Holding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.load(token)
	if err != nil {
		return nil, err
	}
	capability, err := e.custody(cfg)
	if err != nil {
		return nil, err
	}
	var supply uint64
	if meta, ok, err := e.ledger.Asset(cfg.BasketToken); err != nil {
		return nil, err
	} else if ok {
		supply = meta.Supply
	}
	required, overflow := payouts(cfg, supply)
	out := make([]Holding, cfg.NumAssets())
	for i, asset := range cfg.Assets {
		vault := e.ledger.HoldingAccountRef(asset, capability.Principal())
		balance, err := e.ledger.Balance(vault)
		if err != nil {
			return nil, err
		}
		h := Holding{Asset: asset, Vault: vault, PerUnit: cfg.PerUnit[i], Balance: balance}
		if overflow != nil {
			h.Required = math.MaxUint64
		} else {
			h.Required = required[i]
			h.Backed = balance >= h.Required
		}
		out[i] = h
	}
	return out, nil
}

// QuoteDeposit returns the amounts of each asset a deposit minting units
// basket tokens must carry under the configured unit basis.
func (e *Engine) QuoteDeposit(token types.Address, units uint64) ([]Leg, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if units == 0 {
		return nil, ErrZeroMint
	}
	cfg, err := e.load(token)
	if err != nil {
		return nil, err
	}
	per, err := e.unitAmounts(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]Leg, len(per))
	for i, v := range per {
		amount, err := checkedMul(units, v)
		if err != nil {
			return nil, err
		}
		out[i] = Leg{Asset: cfg.Assets[i], Amount: amount}
	}
	return out, nil
}

// QuoteRedeem returns the payout of burning amount basket tokens.
func (e *Engine) QuoteRedeem(token types.Address, amount uint64) ([]Leg, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrZeroBurn
	}
	cfg, err := e.load(token)
	if err != nil {
		return nil, err
	}
	owed, err := payouts(cfg, amount)
	if err != nil {
		return nil, err
	}
	out := make([]Leg, len(owed))
	for i, v := range owed {
		out[i] = Leg{Asset: cfg.Assets[i], Amount: v}
	}
	return out, nil
}

// VaultAccounts returns the custody holding account for every asset in
// configured order.
func (e *Engine) VaultAccounts(token types.Address) ([]types.Address, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.load(token)
	if err != nil {
		return nil, err
	}
	capability, err := e.custody(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, cfg.NumAssets())
	for i, asset := range cfg.Assets {
		out[i] = e.ledger.HoldingAccountRef(asset, capability.Principal())
	}
	return out, nil
}

// PlanVaultAccounts computes the vault accounts a first deposit into token
// must supply, whether or not the basket exists yet.
func (e *Engine) PlanVaultAccounts(token types.Address, assets []types.Address) ([]types.Address, error) {
	if e == nil || e.deriver == nil || e.ledger == nil {
		return nil, errNilDeriver
	}
	configAddr, _, err := e.deriver.ConfigAddress(token)
	if err != nil {
		return nil, err
	}
	capability, err := e.deriver.Derive(configAddr)
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, len(assets))
	for i, asset := range assets {
		out[i] = e.ledger.HoldingAccountRef(asset, capability.Principal())
	}
	return out, nil
}
