package genesis

import (
	"strings"
	"testing"

	"basketvault/core/state"
	"basketvault/crypto"
	"basketvault/native/authority"
	"basketvault/native/bank"
	"basketvault/storage"
)

const (
	minterHex = "0x00000000000000000000000000000000000000ee"
	aliceHex  = "0x00000000000000000000000000000000000000a1"
)

var sampleGenesis = `
assets:
  - symbol: usdx
    decimals: 6
    mint_authority: ` + minterHex + `
  - symbol: GLDX
    address: "0x0000000000000000000000000000000000000042"
    decimals: 8
    mint_authority: ` + minterHex + `
allocations:
  - owner: ` + aliceHex + `
    asset: USDX
    amount: 1500000
  - owner: ` + aliceHex + `
    asset: gldx
    amount: 25
`

func TestParseAndApply(t *testing.T) {
	spec, err := Parse([]byte(sampleGenesis))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	db := storage.NewMemDB()
	defer db.Close()
	mgr := state.NewManager(db)

	res, err := Apply(spec, mgr)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Applied || res.Accounts != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	gold := res.Assets["GLDX"]
	if gold.Hex() != "0x0000000000000000000000000000000000000042" {
		t.Fatalf("configured address ignored: %s", gold.Hex())
	}
	usd := res.Assets["usdx"]
	if usd.IsZero() {
		t.Fatalf("expected derived address for usdx")
	}

	ledger := bank.NewLedger(mgr)
	alice, _ := crypto.ParseAddress(aliceHex)
	bal, err := ledger.Balance(ledger.HoldingAccountRef(usd, authority.External(alice)))
	if err != nil || bal != 1_500_000 {
		t.Fatalf("unexpected usdx balance %d (%v)", bal, err)
	}
	meta, ok, _ := ledger.Asset(gold)
	if !ok || meta.Decimals != 8 || meta.Supply != 25 {
		t.Fatalf("unexpected gold asset: %+v", meta)
	}

	again, err := Apply(spec, mgr)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if again.Applied {
		t.Fatalf("genesis applied twice")
	}
	bal, _ = ledger.Balance(ledger.HoldingAccountRef(usd, authority.External(alice)))
	if bal != 1_500_000 {
		t.Fatalf("second apply minted again: %d", bal)
	}
}

func TestValidateRejectsBadSpecs(t *testing.T) {
	cases := map[string]string{
		"duplicate symbol": "assets:\n  - {symbol: A, mint_authority: " + minterHex + "}\n  - {symbol: a, mint_authority: " + minterHex + "}\n",
		"unknown asset":    "assets:\n  - {symbol: A, mint_authority: " + minterHex + "}\nallocations:\n  - {owner: " + aliceHex + ", asset: B, amount: 1}\n",
		"zero amount":      "assets:\n  - {symbol: A, mint_authority: " + minterHex + "}\nallocations:\n  - {owner: " + aliceHex + ", asset: A, amount: 0}\n",
		"bad authority":    "assets:\n  - {symbol: A, mint_authority: nope}\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if _, err := Parse([]byte("assets: [")); err == nil || !strings.Contains(err.Error(), "decode genesis") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
