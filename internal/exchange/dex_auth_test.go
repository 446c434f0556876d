package exchange

import (
	"testing"

	"cexdexarb/internal/config"
)

const testDEXPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"

func TestNewDEXAuthDerivesAddress(t *testing.T) {
	t.Parallel()

	a, err := NewDEXAuth(config.DEXConfig{PrivateKey: testDEXPrivateKey})
	if err != nil {
		t.Fatalf("NewDEXAuth: %v", err)
	}
	if a.Address().Hex() == "" {
		t.Error("expected a non-empty derived address")
	}
}

func TestNewDEXAuthRejectsMismatchedWallet(t *testing.T) {
	t.Parallel()

	_, err := NewDEXAuth(config.DEXConfig{
		PrivateKey: testDEXPrivateKey,
		WalletAddr: "0x0000000000000000000000000000000000dEaD",
	})
	if err == nil {
		t.Error("expected error for mismatched wallet_address")
	}
}

func TestDEXAuthSignOrderDeterministic(t *testing.T) {
	t.Parallel()

	a, err := NewDEXAuth(config.DEXConfig{PrivateKey: testDEXPrivateKey})
	if err != nil {
		t.Fatalf("NewDEXAuth: %v", err)
	}

	var hash [32]byte
	copy(hash[:], []byte("01234567890123456789012345678901"))

	r1, s1, v1, err := a.SignOrder(hash)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	r2, s2, v2, err := a.SignOrder(hash)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}

	if r1 != r2 || s1 != s2 || v1 != v2 {
		t.Error("SignOrder should be deterministic for the same action hash")
	}
	if v1 != 27 && v1 != 28 {
		t.Errorf("v = %d, want 27 or 28", v1)
	}
}
