package basket

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"basketvault/core/events"
	"basketvault/core/types"
	"basketvault/native/authority"
	"basketvault/native/bank"
	"basketvault/native/common"
)

type engineState interface {
	BasketLoad(token types.Address) (State, error)
	BasketCreate(cfg *Config) error
	BasketTokens() ([]types.Address, error)
}

type engineLedger interface {
	EnsureAsset(id types.Address, decimals uint8, mintAuthority authority.Principal) (*bank.Asset, error)
	Asset(id types.Address) (*bank.Asset, bool, error)
	HoldingAccountRef(asset types.Address, owner authority.Principal) types.Address
	CreateHoldingAccount(asset types.Address, owner authority.Principal) (types.Address, error)
	Account(ref types.Address) (*bank.HoldingAccount, bool, error)
	Balance(ref types.Address) (uint64, error)
	Transfer(from, to types.Address, amount uint64, by authority.Principal) error
	Mint(asset, to types.Address, amount uint64, by authority.Principal) error
	Burn(asset, from types.Address, amount uint64, by authority.Principal) error
}

// Engine validates basket compositions and drives deposits and redemptions
// against the ledger. It holds no state of its own; callers bind it to a
// state backend and ledger scoped to one atomic unit of work.
type Engine struct {
	state     engineState
	ledger    engineLedger
	deriver   *authority.Deriver
	emitter   events.Emitter
	pauses    common.PauseView
	logger    *slog.Logger
	maxAssets int
	basis     UnitBasis
	nowFn     func() int64
}

// NewEngine creates an engine with a no-op emitter, the default deriver and
// the default asset bound.
func NewEngine() *Engine {
	return &Engine{
		deriver:   authority.NewDeriver(""),
		emitter:   events.NoopEmitter{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAssets: DefaultMaxAssets,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the ledger that moves balances.
func (e *Engine) SetLedger(ledger engineLedger) { e.ledger = ledger }

// SetDeriver configures the custody derivation namespace.
func (e *Engine) SetDeriver(d *authority.Deriver) {
	if d == nil {
		d = authority.NewDeriver("")
	}
	e.deriver = d
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause view consulted before deposits and redemptions.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetLogger sets the logger used for debug tracing.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.logger = logger
}

// SetMaxAssets overrides the upper bound on assets per basket. Values below
// one restore the default.
func (e *Engine) SetMaxAssets(n int) {
	if n < 1 {
		n = DefaultMaxAssets
	}
	e.maxAssets = n
}

// MaxAssets returns the configured asset bound.
func (e *Engine) MaxAssets() int { return e.maxAssets }

// SetUnitBasis selects how deposit legs are converted to basket tokens.
func (e *Engine) SetUnitBasis(b UnitBasis) { e.basis = b }

// UnitBasis returns the configured deposit unit basis.
func (e *Engine) UnitBasis() UnitBasis { return e.basis }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.deriver == nil:
		return errNilDeriver
	}
	return nil
}

func (e *Engine) guard() error {
	return common.Guard(e.pauses, ModuleName)
}

// load returns the active configuration for token.
func (e *Engine) load(token types.Address) (*Config, error) {
	st, err := e.state.BasketLoad(token)
	if err != nil {
		return nil, err
	}
	switch s := st.(type) {
	case Active:
		if s.Config == nil {
			return nil, ErrBasketNotFound
		}
		return s.Config, nil
	default:
		return nil, ErrBasketNotFound
	}
}

// custody re-derives the capability persisted in cfg and checks it still
// names the recorded custody authority.
func (e *Engine) custody(cfg *Config) (authority.Capability, error) {
	capability, err := e.deriver.Rederive(cfg.ConfigAddress, cfg.CustodyBump)
	if err != nil {
		return authority.Capability{}, err
	}
	if capability.Address() != cfg.CustodyAuthority {
		return authority.Capability{}, ErrCustodyMismatch
	}
	return capability, nil
}

// unitAmounts returns the per-asset divisor for deposits under the active
// basis.
func (e *Engine) unitAmounts(cfg *Config) ([]uint64, error) {
	if e.basis == UnitBasisScaled {
		return scaledPerUnit(cfg)
	}
	return append([]uint64(nil), cfg.PerUnit...), nil
}

// verifyVaults requires each supplied vault account to be the custody
// authority's holding account for the matching asset.
func (e *Engine) verifyVaults(cfg *Config, custody authority.Principal, vaults []types.Address) error {
	for i, asset := range cfg.Assets {
		want := e.ledger.HoldingAccountRef(asset, custody)
		if vaults[i] != want {
			return fmt.Errorf("%w: asset %d got %s want %s", ErrVaultMismatch, i, vaults[i], want)
		}
	}
	return nil
}
