package basket

import (
	"fmt"

	"basketvault/core/types"
	"basketvault/native/authority"
)

// DepositRequest carries the inputs of a deposit. Accounts lists the asset
// identities, the vault accounts and the caller's source accounts as three
// consecutive blocks of len(PerUnit) entries each.
type DepositRequest struct {
	Caller      types.Address
	BasketToken types.Address
	PerUnit     []uint64
	Amounts     []uint64
	Decimals    uint8
	Accounts    []types.Address
	// Destination receives the minted basket tokens. When zero the caller's
	// basket token holding account is used and opened if needed.
	Destination types.Address
}

// DepositResult summarises a completed deposit.
type DepositResult struct {
	BasketToken types.Address
	Caller      types.Address
	Destination types.Address
	Minted      uint64
	Legs        []Leg
	Initialized bool
}

// Deposit moves every leg of a whole number of basket units into the vault
// and mints the matching basket tokens. The basket composition is created on
// the first deposit and verified on every later one.
func (e *Engine) Deposit(req *DepositRequest) (*DepositResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}
	n := len(req.PerUnit)
	if n == 0 {
		return nil, ErrZeroAssets
	}
	if n > e.maxAssets {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyAssets, n, e.maxAssets)
	}
	if len(req.Accounts) < 3*n {
		return nil, fmt.Errorf("%w: got %d accounts, need %d", ErrMissingAccounts, len(req.Accounts), 3*n)
	}
	assets := req.Accounts[:n]
	vaults := req.Accounts[n : 2*n]
	sources := req.Accounts[2*n : 3*n]

	plan, err := e.plan(&ConfigureRequest{
		Caller:      req.Caller,
		BasketToken: req.BasketToken,
		Assets:      assets,
		PerUnit:     req.PerUnit,
		Decimals:    req.Decimals,
	})
	if err != nil {
		return nil, err
	}
	cfg := plan.cfg
	custody := plan.custody.Principal()

	if len(req.Amounts) != n {
		return nil, fmt.Errorf("%w: got %d amounts, want %d", ErrWrongArgumentLength, len(req.Amounts), n)
	}
	units, err := e.unitAmounts(cfg)
	if err != nil {
		return nil, err
	}
	k, err := unitsFor(req.Amounts, units)
	if err != nil {
		return nil, err
	}
	if err := e.verifyVaults(cfg, custody, vaults); err != nil {
		return nil, err
	}
	e.logger.Debug("basket deposit validated",
		"basket", cfg.BasketToken.Hex(),
		"caller", req.Caller.Hex(),
		"amounts", req.Amounts,
		"units", units,
		"mint", k)

	if err := e.apply(plan); err != nil {
		return nil, err
	}
	for i, asset := range cfg.Assets {
		if _, err := e.ledger.CreateHoldingAccount(asset, custody); err != nil {
			return nil, err
		}
		e.logger.Debug("basket vault ready", "asset", asset.Hex(), "vault", vaults[i].Hex(), "owner", custody.String())
	}
	caller := authority.External(req.Caller)
	destination := req.Destination
	if destination.IsZero() {
		destination, err = e.ledger.CreateHoldingAccount(cfg.BasketToken, caller)
		if err != nil {
			return nil, err
		}
	}
	legs := make([]Leg, n)
	for i, asset := range cfg.Assets {
		if err := e.ledger.Transfer(sources[i], vaults[i], req.Amounts[i], caller); err != nil {
			return nil, fmt.Errorf("deposit leg %d: %w", i, err)
		}
		legs[i] = Leg{Asset: asset, Amount: req.Amounts[i]}
	}
	if err := e.ledger.Mint(cfg.BasketToken, destination, k, custody); err != nil {
		return nil, err
	}
	res := &DepositResult{
		BasketToken: cfg.BasketToken,
		Caller:      req.Caller,
		Destination: destination,
		Minted:      k,
		Legs:        legs,
		Initialized: plan.create,
	}
	e.emit(NewDepositedEvent(res))
	return res, nil
}
