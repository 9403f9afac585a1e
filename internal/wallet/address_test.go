package wallet

import (
	"errors"
	"testing"

	"trust-trader/internal/domain"
)

func TestValidateAddress_Solana(t *testing.T) {
	// System program address: valid base58, 32 bytes.
	valid := "11111111111111111111111111111111"
	if err := ValidateAddress(domain.ChainSolana, valid); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}

	for _, addr := range []string{"", "not-base58-0OIl", "abc"} {
		err := ValidateAddress(domain.ChainSolana, addr)
		if !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ValidateAddress(%q) = %v, want ErrInvalidAddress", addr, err)
		}
	}
}

func TestIsOnCurve(t *testing.T) {
	// The wrapped SOL mint is a keypair-derived account, on curve.
	if !IsOnCurve(SolMint) {
		t.Error("SolMint reported off curve")
	}
	if IsOnCurve("tooshort") {
		t.Error("malformed address reported on curve")
	}
}
