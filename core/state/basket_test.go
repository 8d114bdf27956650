package state

import (
	"bytes"
	"errors"
	"testing"

	"basketvault/core/types"
	"basketvault/native/basket"
	"basketvault/storage"
)

func testAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, types.AddressLength))
	return addr
}

func testConfig(token byte) *basket.Config {
	return &basket.Config{
		Authority:        testAddress(0x01),
		BasketToken:      testAddress(token),
		ConfigAddress:    testAddress(0x03),
		CustodyAuthority: testAddress(0x04),
		Assets:           []types.Address{testAddress(0x10), testAddress(0x11)},
		PerUnit:          []uint64{2, 5},
		UnitScale:        50,
		Decimals:         6,
		ConfigBump:       254,
		CustodyBump:      255,
		CreatedAt:        1_700_000_000,
	}
}

func TestBasketLoadUninitialized(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	st, err := NewManager(db).BasketLoad(testAddress(0x02))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := st.(basket.Uninitialized); !ok {
		t.Fatalf("expected uninitialized state, got %T", st)
	}
}

func TestBasketCreateAndLoad(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	cfg := testConfig(0x02)
	if err := mgr.BasketCreate(cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	st, err := mgr.BasketLoad(cfg.BasketToken)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	active, ok := st.(basket.Active)
	if !ok {
		t.Fatalf("expected active state, got %T", st)
	}
	got := active.Config
	if got.UnitScale != 50 || len(got.PerUnit) != 2 || got.PerUnit[1] != 5 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.Assets[0] != cfg.Assets[0] || got.CustodyAuthority != cfg.CustodyAuthority {
		t.Fatalf("identity fields not preserved: %+v", got)
	}
	if got.CreatedAt != cfg.CreatedAt || got.CustodyBump != 255 || got.Decimals != 6 {
		t.Fatalf("scalar fields not preserved: %+v", got)
	}
}

func TestBasketCreateFirstWriterWins(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	if err := mgr.BasketCreate(testConfig(0x02)); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := testConfig(0x02)
	second.PerUnit = []uint64{1, 1}
	if err := mgr.BasketCreate(second); !errors.Is(err, basket.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	st, _ := mgr.BasketLoad(second.BasketToken)
	if st.(basket.Active).Config.PerUnit[0] != 2 {
		t.Fatalf("stored composition overwritten")
	}
}

func TestBasketTokensIndex(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	for _, token := range []byte{0x21, 0x22} {
		if err := mgr.BasketCreate(testConfig(token)); err != nil {
			t.Fatalf("create %x: %v", token, err)
		}
	}
	tokens, err := mgr.BasketTokens()
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 2 || tokens[0] != testAddress(0x21) || tokens[1] != testAddress(0x22) {
		t.Fatalf("unexpected index: %v", tokens)
	}
}
