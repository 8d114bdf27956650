package authority

import (
	"testing"

	"basketvault/core/types"
)

func testToken(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestDeriveIsDeterministic(t *testing.T) {
	d := NewDeriver("")
	config, bump, err := d.ConfigAddress(testToken(0x11))
	if err != nil {
		t.Fatalf("config address: %v", err)
	}
	again, againBump, err := d.ConfigAddress(testToken(0x11))
	if err != nil || again != config || againBump != bump {
		t.Fatalf("config derivation not deterministic")
	}

	capability, err := d.Derive(config)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !capability.Valid() || !capability.Principal().Derived() {
		t.Fatalf("derived capability must be valid and derived")
	}
	if capability.Config() != config {
		t.Fatalf("capability should remember its config")
	}
	re, err := d.Rederive(config, capability.Bump())
	if err != nil {
		t.Fatalf("rederive: %v", err)
	}
	if re.Address() != capability.Address() {
		t.Fatalf("rederived address mismatch")
	}
}

func TestDerivationDependsOnNamespaceAndSeed(t *testing.T) {
	a, _, _ := NewDeriver("alpha").ConfigAddress(testToken(0x01))
	b, _, _ := NewDeriver("beta").ConfigAddress(testToken(0x01))
	c, _, _ := NewDeriver("alpha").ConfigAddress(testToken(0x02))
	if a == b || a == c {
		t.Fatalf("derivations collided: %s %s %s", a, b, c)
	}
}

func TestExternalPrincipalIsNotDerived(t *testing.T) {
	d := NewDeriver("")
	config, _, _ := d.ConfigAddress(testToken(0x22))
	capability, err := d.Derive(config)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	impostor := External(capability.Address())
	if impostor == capability.Principal() {
		t.Fatalf("external principal must not equal the derived principal")
	}
	if (Capability{}).Valid() {
		t.Fatalf("zero capability must be invalid")
	}
}
