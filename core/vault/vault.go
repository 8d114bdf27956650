// Package vault runs basket operations as atomic units of work. Every
// mutating call opens one storage transaction, binds state, ledger and engine
// to it, and commits only when the whole operation succeeded. Events are held
// back until the commit lands.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"basketvault/core/events"
	"basketvault/core/genesis"
	"basketvault/core/state"
	"basketvault/core/types"
	"basketvault/crypto"
	"basketvault/native/authority"
	"basketvault/native/bank"
	"basketvault/native/basket"
	"basketvault/native/common"
	"basketvault/observability"
	"basketvault/observability/otel"
	"basketvault/storage"
)

var errNilDatabase = errors.New("vault: database required")

// Vault executes basket operations against a database.
type Vault struct {
	db        storage.Database
	deriver   *authority.Deriver
	pauses    common.PauseView
	emitter   events.Emitter
	logger    *slog.Logger
	metrics   *observability.BasketMetrics
	maxAssets int
	basis     basket.UnitBasis
	nowFn     func() int64
}

// Option customises a Vault.
type Option func(*Vault)

// WithNamespace sets the custody derivation namespace.
func WithNamespace(ns string) Option {
	return func(v *Vault) { v.deriver = authority.NewDeriver(ns) }
}

// WithPauses wires the pause view consulted by mutating operations.
func WithPauses(p common.PauseView) Option {
	return func(v *Vault) { v.pauses = p }
}

// WithEmitter receives events after their operation committed.
func WithEmitter(e events.Emitter) Option {
	return func(v *Vault) {
		if e != nil {
			v.emitter = e
		}
	}
}

// WithLogger sets the vault logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics records operation outcomes in m.
func WithMetrics(m *observability.BasketMetrics) Option {
	return func(v *Vault) { v.metrics = m }
}

// WithMaxAssets bounds the number of assets per basket.
func WithMaxAssets(n int) Option {
	return func(v *Vault) { v.maxAssets = n }
}

// WithUnitBasis selects how deposits are converted to basket tokens.
func WithUnitBasis(b basket.UnitBasis) Option {
	return func(v *Vault) { v.basis = b }
}

// WithNowFunc overrides the clock stamped on new configurations.
func WithNowFunc(now func() int64) Option {
	return func(v *Vault) { v.nowFn = now }
}

// New returns a vault over db.
func New(db storage.Database, opts ...Option) (*Vault, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	v := &Vault{
		db:        db,
		deriver:   authority.NewDeriver(""),
		emitter:   events.NoopEmitter{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAssets: basket.DefaultMaxAssets,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// scope is the set of collaborators bound to one unit of work.
type scope struct {
	state  *state.Manager
	ledger *bank.Ledger
	engine *basket.Engine
}

func (v *Vault) bind(kv storage.KV, emitter events.Emitter) *scope {
	mgr := state.NewManager(kv)
	ledger := bank.NewLedger(mgr)
	engine := basket.NewEngine()
	engine.SetState(mgr)
	engine.SetLedger(ledger)
	engine.SetDeriver(v.deriver)
	engine.SetEmitter(emitter)
	engine.SetPauses(v.pauses)
	engine.SetLogger(v.logger)
	engine.SetMaxAssets(v.maxAssets)
	engine.SetUnitBasis(v.basis)
	engine.SetNowFunc(v.nowFn)
	return &scope{state: mgr, ledger: ledger, engine: engine}
}

// view binds a read-only scope to the committed state.
func (v *Vault) view() *scope {
	return v.bind(v.db, nil)
}

// atomic runs fn inside one storage transaction. Nothing fn wrote persists
// unless it returns nil and the commit succeeds.
func (v *Vault) atomic(ctx context.Context, op string, fn func(*scope) error) (err error) {
	ctx, span := otel.Tracer().Start(ctx, "vault."+op)
	defer span.End()
	start := time.Now()
	defer func() {
		kind := ""
		if err != nil {
			kind = string(basket.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			v.logger.Debug("vault operation failed", "operation", op, "kind", kind, "error", err)
		}
		v.metrics.RecordOperation(op, kind, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	txn, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("vault: begin %s: %w", op, err)
	}
	buf := &events.Buffer{}
	if err := fn(v.bind(txn, buf)); err != nil {
		txn.Discard()
		return err
	}
	if err := txn.Commit(); err != nil {
		txn.Discard()
		return fmt.Errorf("vault: commit %s: %w", op, err)
	}
	span.SetAttributes(attribute.Int("vault.events", len(buf.Events())))
	buf.Flush(v.emitter)
	return nil
}

// Configure creates or verifies a basket composition.
func (v *Vault) Configure(ctx context.Context, req *basket.ConfigureRequest) (*basket.Config, bool, error) {
	var (
		cfg     *basket.Config
		created bool
	)
	err := v.atomic(ctx, "configure", func(s *scope) error {
		var err error
		cfg, created, err = s.engine.Configure(req)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		v.logger.Info("basket initialized",
			"basket", crypto.FormatAddress(cfg.BasketToken),
			"assets", cfg.NumAssets(),
			"unit_scale", cfg.UnitScale)
	}
	return cfg, created, nil
}

// Deposit runs a deposit as one atomic unit.
func (v *Vault) Deposit(ctx context.Context, req *basket.DepositRequest) (*basket.DepositResult, error) {
	var res *basket.DepositResult
	err := v.atomic(ctx, "deposit", func(s *scope) error {
		var err error
		res, err = s.engine.Deposit(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	token := crypto.FormatAddress(res.BasketToken)
	v.metrics.RecordMint(token, res.Minted)
	v.logger.Info("basket deposit", "basket", token, "minted", res.Minted, "initialized", res.Initialized)
	return res, nil
}

// Redeem runs a redemption as one atomic unit.
func (v *Vault) Redeem(ctx context.Context, req *basket.RedeemRequest) (*basket.RedeemResult, error) {
	var res *basket.RedeemResult
	err := v.atomic(ctx, "redeem", func(s *scope) error {
		var err error
		res, err = s.engine.Redeem(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	token := crypto.FormatAddress(res.BasketToken)
	v.metrics.RecordBurn(token, res.Burned)
	v.logger.Info("basket redemption", "basket", token, "burned", res.Burned)
	return res, nil
}

// RegisterAsset registers an underlying asset with its mint authority.
func (v *Vault) RegisterAsset(ctx context.Context, id types.Address, decimals uint8, mintAuthority types.Address) (*bank.Asset, error) {
	var asset *bank.Asset
	err := v.atomic(ctx, "register_asset", func(s *scope) error {
		var err error
		asset, err = s.ledger.EnsureAsset(id, decimals, authority.External(mintAuthority))
		return err
	})
	return asset, err
}

// OpenAccount opens (or returns) the holding account of owner for asset.
func (v *Vault) OpenAccount(ctx context.Context, asset, owner types.Address) (types.Address, error) {
	var ref types.Address
	err := v.atomic(ctx, "open_account", func(s *scope) error {
		var err error
		ref, err = s.ledger.CreateHoldingAccount(asset, authority.External(owner))
		return err
	})
	return ref, err
}

// MintAsset mints amount of asset into the holding account to. by must be the
// asset's mint authority.
func (v *Vault) MintAsset(ctx context.Context, asset, to types.Address, amount uint64, by types.Address) error {
	return v.atomic(ctx, "mint_asset", func(s *scope) error {
		return s.ledger.Mint(asset, to, amount, authority.External(by))
	})
}

// ApplyGenesis applies spec once.
func (v *Vault) ApplyGenesis(ctx context.Context, spec *genesis.Spec) (*genesis.Result, error) {
	var res *genesis.Result
	err := v.atomic(ctx, "genesis", func(s *scope) error {
		var err error
		res, err = genesis.Apply(spec, s.state)
		return err
	})
	return res, err
}

// Basket returns the configuration of token.
func (v *Vault) Basket(token types.Address) (*basket.Config, error) {
	return v.view().engine.Basket(token)
}

// Baskets lists the initialised baskets.
func (v *Vault) Baskets() ([]basket.Summary, error) {
	return v.view().engine.Baskets()
}

// Holdings reports vault balances against the outstanding supply.
func (v *Vault) Holdings(token types.Address) ([]basket.Holding, error) {
	return v.view().engine.Holdings(token)
}

// QuoteDeposit returns the legs needed to mint units basket tokens.
func (v *Vault) QuoteDeposit(token types.Address, units uint64) ([]basket.Leg, error) {
	return v.view().engine.QuoteDeposit(token, units)
}

// QuoteRedeem returns the payout of burning amount basket tokens.
func (v *Vault) QuoteRedeem(token types.Address, amount uint64) ([]basket.Leg, error) {
	return v.view().engine.QuoteRedeem(token, amount)
}

// Asset returns the ledger entry of id.
func (v *Vault) Asset(id types.Address) (*bank.Asset, bool, error) {
	return v.view().ledger.Asset(id)
}

// Account returns the holding account stored at ref.
func (v *Vault) Account(ref types.Address) (*bank.HoldingAccount, bool, error) {
	return v.view().ledger.Account(ref)
}

// HoldingAccountRef computes the holding account of an external owner.
func (v *Vault) HoldingAccountRef(asset, owner types.Address) types.Address {
	return v.view().ledger.HoldingAccountRef(asset, authority.External(owner))
}

// DepositAccounts lays out the three account blocks a deposit by caller into
// token supplies, using the caller's own holding accounts as sources.
func (v *Vault) DepositAccounts(token, caller types.Address, assets []types.Address) ([]types.Address, error) {
	s := v.view()
	vaults, err := s.engine.PlanVaultAccounts(token, assets)
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, 3*len(assets))
	out = append(out, assets...)
	out = append(out, vaults...)
	for _, asset := range assets {
		out = append(out, s.ledger.HoldingAccountRef(asset, authority.External(caller)))
	}
	return out, nil
}

// RedeemAccounts lays out the vault and destination blocks of a redemption
// by caller, paying out into the caller's own holding accounts.
func (v *Vault) RedeemAccounts(token, caller types.Address) ([]types.Address, error) {
	s := v.view()
	cfg, err := s.engine.Basket(token)
	if err != nil {
		return nil, err
	}
	vaults, err := s.engine.VaultAccounts(token)
	if err != nil {
		return nil, err
	}
	out := append([]types.Address(nil), vaults...)
	for _, asset := range cfg.Assets {
		out = append(out, s.ledger.HoldingAccountRef(asset, authority.External(caller)))
	}
	return out, nil
}

// MaxAssets returns the configured asset bound.
func (v *Vault) MaxAssets() int { return v.view().engine.MaxAssets() }

// UnitBasis returns the configured deposit unit basis.
func (v *Vault) UnitBasis() basket.UnitBasis { return v.basis }
