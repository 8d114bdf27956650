package bank

import (
	"basketvault/core/types"
	"basketvault/native/authority"
)

// Asset captures the registry entry of a fungible asset.
type Asset struct {
	ID                   types.Address
	Decimals             uint8
	MintAuthority        types.Address
	MintAuthorityDerived bool
	Supply               uint64
}

// MintableBy reports whether p is the asset's minting authority.
func (a *Asset) MintableBy(p authority.Principal) bool {
	if a == nil {
		return false
	}
	return a.MintAuthority == p.Address() && a.MintAuthorityDerived == p.Derived()
}

// Clone returns a copy safe for the caller to mutate.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// HoldingAccount is a balance of one asset owned by one principal.
type HoldingAccount struct {
	Ref          types.Address
	Asset        types.Address
	Owner        types.Address
	OwnerDerived bool
	Balance      uint64
}

// OwnedBy reports whether p may move funds out of the account.
func (h *HoldingAccount) OwnedBy(p authority.Principal) bool {
	if h == nil {
		return false
	}
	return h.Owner == p.Address() && h.OwnerDerived == p.Derived()
}

// Clone returns a copy safe for the caller to mutate.
func (h *HoldingAccount) Clone() *HoldingAccount {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}
