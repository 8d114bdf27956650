package bank

import (
	"errors"
	"fmt"
	"math"

	"basketvault/core/types"
	"basketvault/crypto"
	"basketvault/native/authority"
)

// Storage abstracts the subset of state manager functionality required by the
// ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrUnauthorized        = errors.New("bank: unauthorized")
	ErrSupplyOverflow      = errors.New("bank: supply overflow")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
	ErrUnknownAsset        = errors.New("bank: unknown asset")
	ErrAccountNotFound     = errors.New("bank: holding account not found")
	ErrAssetMismatch       = errors.New("bank: account asset mismatch")
	ErrInvalidAsset        = errors.New("bank: invalid asset")
)

var (
	assetPrefix   = []byte("bank/asset/")
	accountPrefix = []byte("bank/account/")
	holdingSeed   = []byte("holding")
)

func assetKey(id types.Address) []byte {
	return append(append([]byte(nil), assetPrefix...), id[:]...)
}

func accountKey(ref types.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), ref[:]...)
}

// Ledger holds asset balances and enforces ownership of holding accounts.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return fmt.Errorf("bank: ledger not initialised")
	}
	return nil
}

// EnsureAsset registers the asset when absent and returns the stored entry.
// An existing entry is returned untouched, whatever its settings; callers
// compare it against what they expected.
func (l *Ledger) EnsureAsset(id types.Address, decimals uint8, mintAuthority authority.Principal) (*Asset, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, ErrInvalidAsset
	}
	existing, ok, err := l.Asset(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}
	asset := &Asset{
		ID:                   id,
		Decimals:             decimals,
		MintAuthority:        mintAuthority.Address(),
		MintAuthorityDerived: mintAuthority.Derived(),
	}
	if err := l.store.KVPut(assetKey(id), asset); err != nil {
		return nil, err
	}
	return asset.Clone(), nil
}

// Asset loads the registry entry for id.
func (l *Ledger) Asset(id types.Address) (*Asset, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	asset := new(Asset)
	ok, err := l.store.KVGet(assetKey(id), asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return asset, true, nil
}

// HoldingAccountRef computes the account reference for (asset, owner) without
// touching state.
func (l *Ledger) HoldingAccountRef(asset types.Address, owner authority.Principal) types.Address {
	flag := byte(0)
	if owner.Derived() {
		flag = 1
	}
	ownerAddr := owner.Address()
	return crypto.Keccak256Address(holdingSeed, asset[:], ownerAddr[:], []byte{flag})
}

// CreateHoldingAccount opens the holding account for (asset, owner). Opening
// an account that already exists returns the existing reference.
func (l *Ledger) CreateHoldingAccount(asset types.Address, owner authority.Principal) (types.Address, error) {
	if err := l.ready(); err != nil {
		return types.Address{}, err
	}
	if owner.IsZero() {
		return types.Address{}, fmt.Errorf("bank: holding account owner required")
	}
	if _, ok, err := l.Asset(asset); err != nil {
		return types.Address{}, err
	} else if !ok {
		return types.Address{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	ref := l.HoldingAccountRef(asset, owner)
	if _, ok, err := l.Account(ref); err != nil {
		return types.Address{}, err
	} else if ok {
		return ref, nil
	}
	account := &HoldingAccount{
		Ref:          ref,
		Asset:        asset,
		Owner:        owner.Address(),
		OwnerDerived: owner.Derived(),
	}
	if err := l.store.KVPut(accountKey(ref), account); err != nil {
		return types.Address{}, err
	}
	return ref, nil
}

// Account loads the holding account stored at ref.
func (l *Ledger) Account(ref types.Address) (*HoldingAccount, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	account := new(HoldingAccount)
	ok, err := l.store.KVGet(accountKey(ref), account)
	if err != nil || !ok {
		return nil, false, err
	}
	return account, true, nil
}

// Balance returns the balance of ref, zero when the account does not exist.
func (l *Ledger) Balance(ref types.Address) (uint64, error) {
	account, ok, err := l.Account(ref)
	if err != nil || !ok {
		return 0, err
	}
	return account.Balance, nil
}

func (l *Ledger) mustAccount(ref types.Address) (*HoldingAccount, error) {
	account, ok, err := l.Account(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, ref)
	}
	return account, nil
}

func (l *Ledger) putAccount(account *HoldingAccount) error {
	return l.store.KVPut(accountKey(account.Ref), account)
}

// Transfer moves amount between two holding accounts of the same asset. The
// source must be owned by the authorising principal.
func (l *Ledger) Transfer(from, to types.Address, amount uint64, by authority.Principal) error {
	if err := l.ready(); err != nil {
		return err
	}
	src, err := l.mustAccount(from)
	if err != nil {
		return err
	}
	dst, err := l.mustAccount(to)
	if err != nil {
		return err
	}
	if src.Asset != dst.Asset {
		return fmt.Errorf("%w: %s -> %s", ErrAssetMismatch, src.Asset, dst.Asset)
	}
	if !src.OwnedBy(by) {
		return fmt.Errorf("%w: %s cannot debit %s", ErrUnauthorized, by, from)
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, src.Balance, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	if dst.Balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := l.putAccount(src); err != nil {
		return err
	}
	return l.putAccount(dst)
}

// Mint creates amount units of asset in the holding account to. Only the
// asset's mint authority may mint.
func (l *Ledger) Mint(asset, to types.Address, amount uint64, by authority.Principal) error {
	if err := l.ready(); err != nil {
		return err
	}
	meta, ok, err := l.Asset(asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if !meta.MintableBy(by) {
		return fmt.Errorf("%w: %s cannot mint %s", ErrUnauthorized, by, asset)
	}
	dst, err := l.mustAccount(to)
	if err != nil {
		return err
	}
	if dst.Asset != asset {
		return fmt.Errorf("%w: %s holds %s", ErrAssetMismatch, to, dst.Asset)
	}
	if meta.Supply > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	if dst.Balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	meta.Supply += amount
	dst.Balance += amount
	if err := l.store.KVPut(assetKey(asset), meta); err != nil {
		return err
	}
	return l.putAccount(dst)
}

// Burn destroys amount units of asset held in from. The account owner
// authorises the burn.
func (l *Ledger) Burn(asset, from types.Address, amount uint64, by authority.Principal) error {
	if err := l.ready(); err != nil {
		return err
	}
	meta, ok, err := l.Asset(asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	src, err := l.mustAccount(from)
	if err != nil {
		return err
	}
	if src.Asset != asset {
		return fmt.Errorf("%w: %s holds %s", ErrAssetMismatch, from, src.Asset)
	}
	if !src.OwnedBy(by) {
		return fmt.Errorf("%w: %s cannot burn from %s", ErrUnauthorized, by, from)
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, src.Balance, amount)
	}
	if meta.Supply < amount {
		return fmt.Errorf("bank: supply underflow for %s", asset)
	}
	src.Balance -= amount
	meta.Supply -= amount
	if err := l.store.KVPut(assetKey(asset), meta); err != nil {
		return err
	}
	return l.putAccount(src)
}
