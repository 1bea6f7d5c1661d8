package types

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// ValidateLamports rejects negative amounts.
func ValidateLamports(field string, amount *big.Int) error {
	if amount == nil {
		return NewValidationError(field, "cannot be nil")
	}
	if amount.Sign() < 0 {
		return NewValidationError(field, "must not be negative")
	}
	return nil
}

// ValidatePublicKey validates a public key is not zero.
func ValidatePublicKey(name string, key solana.PublicKey) error {
	if key.IsZero() {
		return NewValidationError(name, "cannot be zero")
	}
	return nil
}

// ValidateNotEmpty rejects empty strings.
func ValidateNotEmpty(name, value string) error {
	if value == "" {
		return NewValidationError(name, "cannot be empty")
	}
	return nil
}
