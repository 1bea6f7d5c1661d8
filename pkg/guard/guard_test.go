package guard

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
)

func TestEncodeData(t *testing.T) {
	data := EncodeData(513)
	require.Len(t, data, 24)

	sum := sha256.Sum256([]byte("global:submit_once"))
	assert.Equal(t, sum[:8], data[:8])
	assert.Equal(t, uint64(513), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[16:24]))
}

func TestNewInstructionAccounts(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	ix, err := NewInstruction(payer, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, constants.DoubleCheckProgramID, ix.ProgramID())
	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)

	state, err := StatePDA()
	require.NoError(t, err)
	assert.Equal(t, state, accounts[1].PublicKey)
	assert.False(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
}

func TestNonceRange(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	payer := solana.NewWallet().PublicKey()
	for i := 0; i < 500; i++ {
		ix, err := NewInstruction(payer, rng)
		require.NoError(t, err)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.LessOrEqual(t, binary.LittleEndian.Uint64(data[8:16]), uint64(MaxNonce))
	}
}
