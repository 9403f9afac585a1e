package wallet

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"trust-trader/internal/domain"
)

// ValidateAddress checks that addr is plausible for the given chain.
// Solana addresses must be 32 bytes of base58; other chains only get a
// length sanity check.
func ValidateAddress(chain domain.Chain, addr string) error {
	switch chain {
	case domain.ChainSolana:
		raw, err := base58.Decode(addr)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("%w: %s: not 32 bytes", ErrInvalidAddress, addr)
		}
	default:
		if len(addr) < 4 {
			return fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
		}
	}
	return nil
}

// IsOnCurve reports whether a Solana address is a valid ed25519 point,
// i.e. a keypair-backed account rather than a program-derived address.
func IsOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
