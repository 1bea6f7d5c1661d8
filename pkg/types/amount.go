package types

import (
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/math"
)

var lamportsPerSol = big.NewInt(1_000_000_000)

// ParseSOL converts a decimal SOL amount such as "0.25" into lamports without going
// through floating point. Digits below one lamport are truncated.
func ParseSOL(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return new(big.Int), nil
	}
	dec, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return nil, NewValidationError("amount", fmt.Sprintf("invalid SOL amount %q: %v", amount, err))
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("%w: %s SOL", ErrNegativeAmount, s)
	}
	return dec.MulInt64(lamportsPerSol.Int64()).TruncateInt().BigInt(), nil
}

// FormatLamports renders lamports as a decimal SOL string with trailing zeros trimmed.
func FormatLamports(lamports *big.Int) string {
	if lamports == nil {
		return "0"
	}
	neg := lamports.Sign() < 0
	abs := new(big.Int).Abs(lamports)
	whole, frac := new(big.Int).QuoRem(abs, lamportsPerSol, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", 9-len(digits)) + digits
		out += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
