package basket

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"basketvault/core/events"
	"basketvault/core/types"
	"basketvault/native/authority"
	"basketvault/native/bank"
	"basketvault/native/common"
)

// memStore is an RLP key-value store for the ledger under test.
type memStore map[string][]byte

func (m memStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m[string(key)] = encoded
	return nil
}

func (m memStore) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok := m[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, rlp.DecodeBytes(data, out)
}

type mockState struct {
	configs map[types.Address]*Config
	order   []types.Address
}

func newMockState() *mockState {
	return &mockState{configs: make(map[types.Address]*Config)}
}

func (m *mockState) BasketLoad(token types.Address) (State, error) {
	cfg, ok := m.configs[token]
	if !ok {
		return Uninitialized{}, nil
	}
	return Active{Config: cfg.Clone()}, nil
}

func (m *mockState) BasketCreate(cfg *Config) error {
	if _, ok := m.configs[cfg.BasketToken]; ok {
		return ErrAlreadyInitialized
	}
	m.configs[cfg.BasketToken] = cfg.Clone()
	m.order = append(m.order, cfg.BasketToken)
	return nil
}

func (m *mockState) BasketTokens() ([]types.Address, error) {
	return append([]types.Address(nil), m.order...), nil
}

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	if e, ok := evt.(*types.Event); ok {
		c.events = append(c.events, e)
	}
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, types.AddressLength))
	return addr
}

type fixture struct {
	t       *testing.T
	engine  *Engine
	state   *mockState
	ledger  *bank.Ledger
	emitter *captureEmitter
	minter  authority.Principal
	caller  types.Address
	token   types.Address
	assets  []types.Address
	sources []types.Address
}

func newFixture(t *testing.T, numAssets int) *fixture {
	t.Helper()
	ledger := bank.NewLedger(memStore{})
	f := &fixture{
		t:       t,
		state:   newMockState(),
		ledger:  ledger,
		emitter: &captureEmitter{},
		minter:  authority.External(newTestAddress(0xEE)),
		caller:  newTestAddress(0xA1),
		token:   newTestAddress(0xB0),
	}
	caller := authority.External(f.caller)
	for i := 0; i < numAssets; i++ {
		asset := newTestAddress(byte(0x10 + i))
		if _, err := ledger.EnsureAsset(asset, 6, f.minter); err != nil {
			t.Fatalf("ensure asset: %v", err)
		}
		src, err := ledger.CreateHoldingAccount(asset, caller)
		if err != nil {
			t.Fatalf("open source: %v", err)
		}
		if err := ledger.Mint(asset, src, 1_000_000, f.minter); err != nil {
			t.Fatalf("fund source: %v", err)
		}
		f.assets = append(f.assets, asset)
		f.sources = append(f.sources, src)
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetLedger(ledger)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return f
}

func (f *fixture) depositAccounts() []types.Address {
	f.t.Helper()
	vaults, err := f.engine.PlanVaultAccounts(f.token, f.assets)
	if err != nil {
		f.t.Fatalf("plan vaults: %v", err)
	}
	accounts := append([]types.Address(nil), f.assets...)
	accounts = append(accounts, vaults...)
	return append(accounts, f.sources...)
}

func (f *fixture) redeemAccounts() []types.Address {
	f.t.Helper()
	vaults, err := f.engine.VaultAccounts(f.token)
	if err != nil {
		f.t.Fatalf("vaults: %v", err)
	}
	return append(vaults, f.sources...)
}

func (f *fixture) deposit(perUnit, amounts []uint64) (*DepositResult, error) {
	return f.engine.Deposit(&DepositRequest{
		Caller:      f.caller,
		BasketToken: f.token,
		PerUnit:     perUnit,
		Amounts:     amounts,
		Decimals:    6,
		Accounts:    f.depositAccounts(),
	})
}

func (f *fixture) redeem(amount uint64) (*RedeemResult, error) {
	return f.engine.Redeem(&RedeemRequest{
		Caller:      f.caller,
		BasketToken: f.token,
		Amount:      amount,
		Accounts:    f.redeemAccounts(),
	})
}

func (f *fixture) balance(ref types.Address) uint64 {
	f.t.Helper()
	bal, err := f.ledger.Balance(ref)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) basketBalance() uint64 {
	return f.balance(f.ledger.HoldingAccountRef(f.token, authority.External(f.caller)))
}

func TestDepositScenarioNormalizesAndMints(t *testing.T) {
	f := newFixture(t, 2)
	res, err := f.deposit([]uint64{100, 250}, []uint64{200, 500})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Minted != 100 || !res.Initialized {
		t.Fatalf("unexpected result: %+v", res)
	}
	cfg, err := f.engine.Basket(f.token)
	if err != nil {
		t.Fatalf("basket: %v", err)
	}
	if cfg.PerUnit[0] != 2 || cfg.PerUnit[1] != 5 || cfg.UnitScale != 50 {
		t.Fatalf("unexpected composition: perUnit=%v scale=%d", cfg.PerUnit, cfg.UnitScale)
	}
	if cfg.Authority != f.caller || cfg.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected metadata: %+v", cfg)
	}
	if got := f.basketBalance(); got != 100 {
		t.Fatalf("expected 100 basket tokens, got %d", got)
	}
	vaults, _ := f.engine.VaultAccounts(f.token)
	if f.balance(vaults[0]) != 200 || f.balance(vaults[1]) != 500 {
		t.Fatalf("unexpected vault balances")
	}
	quote, err := f.engine.QuoteRedeem(f.token, 100)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote[0].Amount != 10_000 || quote[1].Amount != 25_000 {
		t.Fatalf("unexpected redeem quote: %+v", quote)
	}
	meta, _, _ := f.ledger.Asset(f.token)
	if meta.MintAuthority != cfg.CustodyAuthority || !meta.MintAuthorityDerived {
		t.Fatalf("basket token minted by wrong authority")
	}
	if len(f.emitter.events) != 2 ||
		f.emitter.events[0].Type != EventTypeBasketInitialized ||
		f.emitter.events[1].Type != EventTypeBasketDeposited {
		t.Fatalf("unexpected events: %+v", f.emitter.events)
	}
	if f.emitter.events[1].Attributes["minted"] != "100" {
		t.Fatalf("unexpected minted attribute: %v", f.emitter.events[1].Attributes)
	}
}

func TestDepositInconsistentLegsRejected(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.deposit([]uint64{100, 250}, []uint64{200, 400})
	if !errors.Is(err, ErrRatioMismatch) {
		t.Fatalf("expected ratio mismatch, got %v", err)
	}
	if KindOf(err) != KindDeposit {
		t.Fatalf("expected deposit kind, got %s", KindOf(err))
	}
	if st, _ := f.state.BasketLoad(f.token); st != (Uninitialized{}) {
		t.Fatalf("failed deposit initialised the basket")
	}
	if f.balance(f.sources[0]) != 1_000_000 || f.basketBalance() != 0 {
		t.Fatalf("failed deposit moved funds")
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("unexpected events on failure")
	}
}

func TestConfigureVerifiesEquivalentRatios(t *testing.T) {
	f := newFixture(t, 2)
	req := &ConfigureRequest{Caller: f.caller, BasketToken: f.token, Assets: f.assets, PerUnit: []uint64{100, 250}, Decimals: 6}
	if _, created, err := f.engine.Configure(req); err != nil || !created {
		t.Fatalf("configure: created=%v err=%v", created, err)
	}
	for _, ratio := range [][]uint64{{2, 5}, {100, 250}, {20, 50}, {2_000_000, 5_000_000}} {
		req.PerUnit = ratio
		cfg, created, err := f.engine.Configure(req)
		if err != nil {
			t.Fatalf("verify %v: %v", ratio, err)
		}
		if created || cfg.UnitScale != 50 {
			t.Fatalf("verify %v re-initialised the basket", ratio)
		}
	}
	for _, ratio := range [][]uint64{{2, 4}, {5, 2}, {0, 0}, {4, 10, 1}} {
		req.PerUnit = ratio
		if len(ratio) != len(f.assets) {
			req.Assets = append(append([]types.Address(nil), f.assets...), newTestAddress(0x99))
		} else {
			req.Assets = f.assets
		}
		_, _, err := f.engine.Configure(req)
		if err == nil {
			t.Fatalf("expected %v to be rejected", ratio)
		}
		if KindOf(err) != KindConfiguration {
			t.Fatalf("expected configuration kind for %v, got %s (%v)", ratio, KindOf(err), err)
		}
	}
	if len(f.state.order) != 1 {
		t.Fatalf("expected single stored config, got %d", len(f.state.order))
	}
}

func TestConfigureRejectsAssetReorder(t *testing.T) {
	f := newFixture(t, 2)
	if _, err := f.deposit([]uint64{1, 1}, []uint64{5, 5}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, _, err := f.engine.Configure(&ConfigureRequest{
		Caller:      f.caller,
		BasketToken: f.token,
		Assets:      []types.Address{f.assets[1], f.assets[0]},
		PerUnit:     []uint64{1, 1},
	})
	if !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected asset mismatch, got %v", err)
	}
}

func TestDepositExactness(t *testing.T) {
	f := newFixture(t, 3)
	if _, err := f.deposit([]uint64{3, 6, 9}, []uint64{7, 14, 21}); err != nil {
		t.Fatalf("initial deposit: %v", err)
	}
	for k := uint64(1); k <= 5; k++ {
		before := f.basketBalance()
		res, err := f.deposit([]uint64{1, 2, 3}, []uint64{k, 2 * k, 3 * k})
		if err != nil {
			t.Fatalf("deposit k=%d: %v", k, err)
		}
		if res.Minted != k || f.basketBalance()-before != k {
			t.Fatalf("deposit k=%d minted %d", k, res.Minted)
		}
	}
	if _, err := f.deposit([]uint64{1, 2, 3}, []uint64{2, 4, 7}); !errors.Is(err, ErrNonMultipleDeposit) {
		t.Fatalf("expected non-multiple deposit, got %v", err)
	}
	if _, err := f.deposit([]uint64{1, 2, 3}, []uint64{2, 4, 9}); !errors.Is(err, ErrRatioMismatch) {
		t.Fatalf("expected ratio mismatch, got %v", err)
	}
	if _, err := f.deposit([]uint64{1, 2, 3}, []uint64{0, 4, 6}); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount, got %v", err)
	}
	if _, err := f.deposit([]uint64{1, 2, 3}, []uint64{1, 2}); !errors.Is(err, ErrWrongArgumentLength) {
		t.Fatalf("expected wrong argument length, got %v", err)
	}
}

func TestRoundTripReturnsDeposit(t *testing.T) {
	const k = 100
	f := newFixture(t, 2)
	amounts := []uint64{2 * 50 * k, 5 * 50 * k}
	if _, err := f.deposit([]uint64{100, 250}, amounts); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	res, err := f.redeem(k)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	for i, leg := range res.Payouts {
		if leg.Amount != amounts[i] {
			t.Fatalf("leg %d: got %d want %d", i, leg.Amount, amounts[i])
		}
		if f.balance(f.sources[i]) != 1_000_000 {
			t.Fatalf("leg %d: caller balance %d not restored", i, f.balance(f.sources[i]))
		}
	}
	if res.Burned != k {
		t.Fatalf("unexpected burn: %d", res.Burned)
	}
}

func TestRoundTripScaledBasisConservesValue(t *testing.T) {
	f := newFixture(t, 2)
	f.engine.SetUnitBasis(UnitBasisScaled)
	res, err := f.deposit([]uint64{100, 250}, []uint64{300, 750})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Minted != 3 {
		t.Fatalf("expected 3 basket tokens, got %d", res.Minted)
	}
	res, err = f.deposit([]uint64{2, 5}, []uint64{200, 500})
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if res.Minted != 2 {
		t.Fatalf("expected 2 basket tokens, got %d", res.Minted)
	}
	if _, err := f.deposit([]uint64{2, 5}, []uint64{2, 5}); !errors.Is(err, ErrNonMultipleDeposit) {
		t.Fatalf("expected non-multiple deposit under scaled basis, got %v", err)
	}
	holdings, err := f.engine.Holdings(f.token)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	for _, h := range holdings {
		if !h.Backed {
			t.Fatalf("scaled basket under-backed: %+v", h)
		}
	}
	supply := f.basketBalance()
	if _, err := f.redeem(supply); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	vaults, _ := f.engine.VaultAccounts(f.token)
	for i, vault := range vaults {
		if f.balance(vault) != 0 {
			t.Fatalf("vault %d retains %d", i, f.balance(vault))
		}
		if f.balance(f.sources[i]) != 1_000_000 {
			t.Fatalf("caller leg %d not restored", i)
		}
	}
	quote, err := f.engine.QuoteDeposit(f.token, 2)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote[0].Amount != 200 || quote[1].Amount != 500 {
		t.Fatalf("unexpected deposit quote: %+v", quote)
	}
}

func TestRedeemOverflowGuard(t *testing.T) {
	f := newFixture(t, 2)
	if _, err := f.deposit([]uint64{1 << 40, 1 << 40}, []uint64{5, 5}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, err := f.redeem(1 << 30)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if KindOf(err) != KindResource {
		t.Fatalf("expected resource kind, got %s", KindOf(err))
	}
	if f.basketBalance() != 5 {
		t.Fatalf("overflowing redemption burned tokens")
	}
	if _, err := f.engine.QuoteRedeem(f.token, 1<<30); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected quote overflow, got %v", err)
	}
	if _, err := checkedMul(1<<32, 1<<32); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected checkedMul overflow")
	}
	if v, err := checkedMul(1<<31, 1<<32); err != nil || v != 1<<63 {
		t.Fatalf("checkedMul(2^31, 2^32) = %d, %v", v, err)
	}
}

func TestDepositAssetBounds(t *testing.T) {
	f := newFixture(t, 9)
	ratios := make([]uint64, 9)
	amounts := make([]uint64, 9)
	for i := range ratios {
		ratios[i], amounts[i] = 1, 1
	}
	if _, err := f.deposit(ratios, amounts); !errors.Is(err, ErrTooManyAssets) {
		t.Fatalf("expected too many assets, got %v", err)
	}
	f.engine.SetMaxAssets(9)
	if _, err := f.deposit(ratios, amounts); err != nil {
		t.Fatalf("deposit with raised bound: %v", err)
	}
	if _, err := f.deposit(nil, nil); !errors.Is(err, ErrZeroAssets) {
		t.Fatalf("expected zero assets, got %v", err)
	}
}

func TestDepositAccountChecks(t *testing.T) {
	f := newFixture(t, 2)
	accounts := f.depositAccounts()
	_, err := f.engine.Deposit(&DepositRequest{
		Caller: f.caller, BasketToken: f.token, PerUnit: []uint64{1, 1}, Amounts: []uint64{1, 1},
		Accounts: accounts[:5],
	})
	if !errors.Is(err, ErrMissingAccounts) {
		t.Fatalf("expected missing accounts, got %v", err)
	}
	accounts[2] = newTestAddress(0x77)
	_, err = f.engine.Deposit(&DepositRequest{
		Caller: f.caller, BasketToken: f.token, PerUnit: []uint64{1, 1}, Amounts: []uint64{1, 1},
		Decimals: 6, Accounts: accounts,
	})
	if !errors.Is(err, ErrVaultMismatch) {
		t.Fatalf("expected vault mismatch, got %v", err)
	}
	accounts = f.depositAccounts()
	accounts[1] = accounts[0]
	_, err = f.engine.Deposit(&DepositRequest{
		Caller: f.caller, BasketToken: f.token, PerUnit: []uint64{1, 1}, Amounts: []uint64{1, 1},
		Decimals: 6, Accounts: accounts,
	})
	if !errors.Is(err, ErrDuplicateAsset) {
		t.Fatalf("expected duplicate asset, got %v", err)
	}
}

func TestDepositBasketTokenSanityChecks(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.ledger.EnsureAsset(f.token, 6, f.minter); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := f.deposit([]uint64{1}, []uint64{1}); !errors.Is(err, ErrBadMintAuthority) {
		t.Fatalf("expected bad mint authority, got %v", err)
	}

	g := newFixture(t, 1)
	deriver := authority.NewDeriver("")
	configAddr, _, _ := deriver.ConfigAddress(g.token)
	custody, _ := deriver.Derive(configAddr)
	if _, err := g.ledger.EnsureAsset(g.token, 9, custody.Principal()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := g.deposit([]uint64{1}, []uint64{1}); !errors.Is(err, ErrBadDecimals) {
		t.Fatalf("expected bad decimals, got %v", err)
	}
}

func TestRedeemValidation(t *testing.T) {
	f := newFixture(t, 2)
	if _, err := f.engine.Redeem(&RedeemRequest{Caller: f.caller, BasketToken: f.token, Amount: 1}); !errors.Is(err, ErrBasketNotFound) {
		t.Fatalf("expected basket not found, got %v", err)
	}
	if _, err := f.deposit([]uint64{1, 2}, []uint64{10, 20}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, err := f.redeem(0)
	if !errors.Is(err, ErrZeroBurn) || !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero burn, got %v", err)
	}
	if KindOf(err) != KindRedeem {
		t.Fatalf("expected redeem kind for zero burn, got %s", KindOf(err))
	}
	if _, err := f.engine.QuoteRedeem(f.token, 0); KindOf(err) != KindRedeem {
		t.Fatalf("expected redeem kind for zero quote, got %v", err)
	}
	if _, err := f.deposit([]uint64{1, 2}, []uint64{0, 20}); KindOf(err) != KindDeposit {
		t.Fatalf("expected deposit kind for zero leg, got %v", err)
	}
	_, err = f.engine.Redeem(&RedeemRequest{Caller: f.caller, BasketToken: f.token, Amount: 1, Accounts: f.redeemAccounts()[:3]})
	if !errors.Is(err, ErrMissingAccounts) {
		t.Fatalf("expected missing accounts, got %v", err)
	}
	_, err = f.engine.Redeem(&RedeemRequest{
		Caller: f.caller, BasketToken: f.token, Amount: 1, Accounts: f.redeemAccounts(), Source: f.sources[0],
	})
	if !errors.Is(err, ErrWrongBasketToken) {
		t.Fatalf("expected wrong basket token, got %v", err)
	}
	if _, err := f.redeem(11); !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if KindOf(err) != KindRedeem {
		t.Fatalf("expected redeem kind for wrong basket token, got %s", KindOf(err))
	}
}

func TestRedeemFromForeignAccountUnauthorized(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.deposit([]uint64{1}, []uint64{4}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	source := f.ledger.HoldingAccountRef(f.token, authority.External(f.caller))
	_, err := f.engine.Redeem(&RedeemRequest{
		Caller: newTestAddress(0xC3), BasketToken: f.token, Amount: 1, Accounts: f.redeemAccounts(), Source: source,
	})
	if !errors.Is(err, bank.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if KindOf(err) != KindAuthorization {
		t.Fatalf("expected authorization kind, got %s", KindOf(err))
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.deposit([]uint64{1}, []uint64{4}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	f.engine.SetPauses(pauseMap{ModuleName: true})
	if _, err := f.deposit([]uint64{1}, []uint64{4}); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused deposit, got %v", err)
	}
	if _, err := f.redeem(1); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused redeem, got %v", err)
	}
	if _, err := f.engine.Basket(f.token); err != nil {
		t.Fatalf("views must be served while paused: %v", err)
	}
}

func TestBasketsListsSupply(t *testing.T) {
	f := newFixture(t, 2)
	if _, err := f.deposit([]uint64{1, 1}, []uint64{3, 3}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	list, err := f.engine.Baskets()
	if err != nil {
		t.Fatalf("baskets: %v", err)
	}
	if len(list) != 1 || list[0].BasketToken != f.token || list[0].Supply != 3 || list[0].NumAssets != 2 {
		t.Fatalf("unexpected summaries: %+v", list)
	}
}
