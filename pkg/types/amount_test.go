package types

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSOL(t *testing.T) {
	cases := map[string]int64{
		"1":            1_000_000_000,
		"0.5":          500_000_000,
		"0.001":        1_000_000,
		" 2.25 ":       2_250_000_000,
		"":             0,
		"0.1234567899": 123_456_789,
	}
	for in, want := range cases {
		got, err := ParseSOL(in)
		require.NoError(t, err, in)
		assert.Equal(t, big.NewInt(want).String(), got.String(), in)
	}
}

func TestParseSOLRejects(t *testing.T) {
	_, err := ParseSOL("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseSOL("one")
	var v ValidationError
	assert.True(t, errors.As(err, &v))
}

func TestFormatLamports(t *testing.T) {
	assert.Equal(t, "1", FormatLamports(big.NewInt(1_000_000_000)))
	assert.Equal(t, "0.5", FormatLamports(big.NewInt(500_000_000)))
	assert.Equal(t, "0.000000001", FormatLamports(big.NewInt(1)))
	assert.Equal(t, "-1.25", FormatLamports(big.NewInt(-1_250_000_000)))
	assert.Equal(t, "0", FormatLamports(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(ErrNegativeAllocation))
	assert.False(t, IsRetryableError(ErrInsufficientBalance))
	assert.False(t, IsRetryableError(NewValidationError("x", "y")))
	assert.True(t, IsRetryableError(ErrBundleNotConfirmed))
	assert.True(t, IsRetryableError(RPCError{Op: "getSlot", Err: errors.New("timeout")}))
}
