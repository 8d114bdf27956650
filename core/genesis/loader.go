package genesis

import (
	"fmt"

	"basketvault/core/types"
	"basketvault/crypto"
	"basketvault/native/authority"
	"basketvault/native/bank"
)

var appliedKey = []byte("genesis/applied")

// Store is the state the genesis is written to.
type Store interface {
	bank.Storage
}

// Result summarises an applied genesis.
type Result struct {
	Applied  bool
	Assets   map[string]types.Address
	Accounts int
}

// Apply registers the genesis assets and mints the opening allocations. A
// genesis is applied once; later calls report Applied=false and change
// nothing.
func Apply(spec *Spec, store Store) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("genesis store must not be nil")
	}
	var marker bool
	done, err := store.KVGet(appliedKey, &marker)
	if err != nil {
		return nil, err
	}
	res := &Result{Assets: make(map[string]types.Address, len(spec.Assets))}
	for _, asset := range spec.Assets {
		addr, err := asset.AssetAddress()
		if err != nil {
			return nil, err
		}
		res.Assets[asset.Symbol] = addr
	}
	if done && marker {
		return res, nil
	}

	ledger := bank.NewLedger(store)
	for _, asset := range spec.Assets {
		addr := res.Assets[asset.Symbol]
		minter, err := crypto.ParseAddress(asset.MintAuthority)
		if err != nil {
			return nil, fmt.Errorf("asset %s mint_authority: %w", asset.Symbol, err)
		}
		meta, err := ledger.EnsureAsset(addr, asset.Decimals, authority.External(minter))
		if err != nil {
			return nil, fmt.Errorf("register asset %s: %w", asset.Symbol, err)
		}
		if meta.Decimals != asset.Decimals {
			return nil, fmt.Errorf("asset %s already registered with %d decimals", asset.Symbol, meta.Decimals)
		}
	}
	for i, alloc := range spec.Allocations {
		asset, _ := spec.asset(alloc.Asset)
		addr := res.Assets[asset.Symbol]
		owner, err := crypto.ParseAddress(alloc.Owner)
		if err != nil {
			return nil, fmt.Errorf("allocations[%d] owner: %w", i, err)
		}
		minter, _ := crypto.ParseAddress(asset.MintAuthority)
		ref, err := ledger.CreateHoldingAccount(addr, authority.External(owner))
		if err != nil {
			return nil, fmt.Errorf("allocations[%d]: %w", i, err)
		}
		if err := ledger.Mint(addr, ref, alloc.Amount, authority.External(minter)); err != nil {
			return nil, fmt.Errorf("allocations[%d]: %w", i, err)
		}
		res.Accounts++
	}
	if err := store.KVPut(appliedKey, true); err != nil {
		return nil, err
	}
	res.Applied = true
	return res, nil
}
