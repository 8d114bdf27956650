package basket

import (
	"fmt"

	"basketvault/core/types"
	"basketvault/native/authority"
	"basketvault/native/bank"
)

// ConfigureRequest declares the composition a caller expects a basket to
// have. On first use it creates the composition; afterwards it is verified
// against the stored one.
type ConfigureRequest struct {
	Caller      types.Address
	BasketToken types.Address
	Assets      []types.Address
	PerUnit     []uint64
	Decimals    uint8
}

// configPlan is the outcome of validating a ConfigureRequest before any
// effect is applied.
type configPlan struct {
	cfg     *Config
	custody authority.Capability
	create  bool
}

// Configure creates the basket composition or verifies the supplied ratio
// against the stored one. The boolean result reports whether a new
// configuration was recorded.
func (e *Engine) Configure(req *ConfigureRequest) (*Config, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if err := e.guard(); err != nil {
		return nil, false, err
	}
	plan, err := e.plan(req)
	if err != nil {
		return nil, false, err
	}
	if err := e.apply(plan); err != nil {
		return nil, false, err
	}
	return plan.cfg.Clone(), plan.create, nil
}

func (e *Engine) plan(req *ConfigureRequest) (*configPlan, error) {
	if req == nil {
		return nil, errNilRequest
	}
	if req.Caller.IsZero() {
		return nil, errCallerUnset
	}
	if req.BasketToken.IsZero() {
		return nil, fmt.Errorf("%w: basket token required", ErrInvalidConfig)
	}
	n := len(req.PerUnit)
	if n == 0 {
		return nil, ErrZeroAssets
	}
	if n > e.maxAssets {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyAssets, n, e.maxAssets)
	}
	if len(req.Assets) != n {
		return nil, fmt.Errorf("%w: %d assets, %d ratios", ErrWrongArgumentLength, len(req.Assets), n)
	}

	st, err := e.state.BasketLoad(req.BasketToken)
	if err != nil {
		return nil, err
	}
	if active, ok := st.(Active); ok && active.Config != nil {
		return e.planVerify(active.Config, req)
	}
	return e.planCreate(req)
}

func (e *Engine) planVerify(cfg *Config, req *ConfigureRequest) (*configPlan, error) {
	if err := Equivalent(cfg.PerUnit, req.PerUnit); err != nil {
		return nil, err
	}
	for i, asset := range req.Assets {
		if asset != cfg.Assets[i] {
			return nil, fmt.Errorf("%w: asset %d got %s want %s", ErrAssetMismatch, i, asset, cfg.Assets[i])
		}
	}
	custody, err := e.custody(cfg)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("basket composition verified",
		"basket", cfg.BasketToken.Hex(),
		"per_unit", cfg.PerUnit,
		"supplied", req.PerUnit)
	return &configPlan{cfg: cfg, custody: custody}, nil
}

func (e *Engine) planCreate(req *ConfigureRequest) (*configPlan, error) {
	perUnit, scale, err := Normalize(req.PerUnit)
	if err != nil {
		return nil, err
	}
	configAddr, configBump, err := e.deriver.ConfigAddress(req.BasketToken)
	if err != nil {
		return nil, err
	}
	custody, err := e.deriver.Derive(configAddr)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Authority:        req.Caller,
		BasketToken:      req.BasketToken,
		ConfigAddress:    configAddr,
		CustodyAuthority: custody.Address(),
		Assets:           append([]types.Address(nil), req.Assets...),
		PerUnit:          perUnit,
		UnitScale:        scale,
		Decimals:         req.Decimals,
		ConfigBump:       configBump,
		CustodyBump:      custody.Bump(),
		CreatedAt:        e.now(),
	}
	if err := cfg.Validate(e.maxAssets); err != nil {
		return nil, err
	}
	for i, asset := range cfg.Assets {
		if _, ok, err := e.ledger.Asset(asset); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("%w: asset %d %s", bank.ErrUnknownAsset, i, asset)
		}
	}
	meta, ok, err := e.ledger.Asset(req.BasketToken)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := checkBasketToken(meta, custody.Principal(), req.Decimals); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("basket composition normalized",
		"basket", req.BasketToken.Hex(),
		"raw", req.PerUnit,
		"per_unit", perUnit,
		"unit_scale", scale,
		"custody", custody.Address().Hex())
	return &configPlan{cfg: cfg, custody: custody, create: true}, nil
}

func (e *Engine) apply(plan *configPlan) error {
	if !plan.create {
		return nil
	}
	cfg := plan.cfg
	meta, err := e.ledger.EnsureAsset(cfg.BasketToken, cfg.Decimals, plan.custody.Principal())
	if err != nil {
		return err
	}
	if err := checkBasketToken(meta, plan.custody.Principal(), cfg.Decimals); err != nil {
		return err
	}
	if err := e.state.BasketCreate(cfg); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(cfg))
	return nil
}

func checkBasketToken(meta *bank.Asset, custody authority.Principal, decimals uint8) error {
	if !meta.MintableBy(custody) {
		return fmt.Errorf("%w: %s", ErrBadMintAuthority, meta.ID)
	}
	if meta.Decimals != decimals {
		return fmt.Errorf("%w: token has %d, declared %d", ErrBadDecimals, meta.Decimals, decimals)
	}
	return nil
}
