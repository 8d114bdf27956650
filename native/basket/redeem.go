package basket

import (
	"fmt"

	"basketvault/core/types"
	"basketvault/native/authority"
)

// RedeemRequest carries the inputs of a redemption. Accounts lists the vault
// accounts followed by the caller's destination accounts, one block of
// NumAssets entries each.
type RedeemRequest struct {
	Caller      types.Address
	BasketToken types.Address
	Amount      uint64
	Accounts    []types.Address
	// Source holds the basket tokens to burn. When zero the caller's basket
	// token holding account is used.
	Source types.Address
}

// RedeemResult summarises a completed redemption.
type RedeemResult struct {
	BasketToken types.Address
	Caller      types.Address
	Source      types.Address
	Burned      uint64
	Payouts     []Leg
}

// Redeem burns basket tokens and pays out perUnit*unitScale of every asset
// for each token burned.
func (e *Engine) Redeem(req *RedeemRequest) (*RedeemResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}
	if req.Caller.IsZero() {
		return nil, errCallerUnset
	}
	cfg, err := e.load(req.BasketToken)
	if err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		return nil, ErrZeroBurn
	}
	n := cfg.NumAssets()
	if n == 0 {
		return nil, ErrZeroAssets
	}
	if len(req.Accounts) < 2*n {
		return nil, fmt.Errorf("%w: got %d accounts, need %d", ErrMissingAccounts, len(req.Accounts), 2*n)
	}
	vaults := req.Accounts[:n]
	dests := req.Accounts[n : 2*n]

	capability, err := e.custody(cfg)
	if err != nil {
		return nil, err
	}
	custody := capability.Principal()
	if err := e.verifyVaults(cfg, custody, vaults); err != nil {
		return nil, err
	}
	caller := authority.External(req.Caller)
	source := req.Source
	if source.IsZero() {
		source = e.ledger.HoldingAccountRef(cfg.BasketToken, caller)
	}
	account, ok, err := e.ledger.Account(source)
	if err != nil {
		return nil, err
	}
	if ok && account.Asset != cfg.BasketToken {
		return nil, fmt.Errorf("%w: source holds %s, basket is %s", ErrWrongBasketToken, account.Asset, cfg.BasketToken)
	}
	owed, err := payouts(cfg, req.Amount)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("basket redemption validated",
		"basket", cfg.BasketToken.Hex(),
		"caller", req.Caller.Hex(),
		"amount", req.Amount,
		"payouts", owed)

	if err := e.ledger.Burn(cfg.BasketToken, source, req.Amount, caller); err != nil {
		return nil, err
	}
	legs := make([]Leg, n)
	for i, asset := range cfg.Assets {
		if err := e.ledger.Transfer(vaults[i], dests[i], owed[i], custody); err != nil {
			return nil, fmt.Errorf("redeem leg %d: %w", i, err)
		}
		legs[i] = Leg{Asset: asset, Amount: owed[i]}
	}
	res := &RedeemResult{
		BasketToken: cfg.BasketToken,
		Caller:      req.Caller,
		Source:      source,
		Burned:      req.Amount,
		Payouts:     legs,
	}
	e.emit(NewRedeemedEvent(res))
	return res, nil
}
