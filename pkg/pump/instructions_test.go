package pump

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
)

func testAccounts(t *testing.T) (MintAccounts, solana.PublicKey) {
	t.Helper()
	mint := solana.NewWallet().PublicKey()
	dev := solana.NewWallet().PublicKey()
	accts, err := DeriveMintAccounts(mint, dev)
	require.NoError(t, err)
	return accts, dev
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{102, 6, 61, 18, 1, 218, 235, 234}, BuyDiscriminator)
	assert.Equal(t, [8]byte{24, 30, 200, 40, 5, 28, 7, 119}, CreateDiscriminator)
}

func TestBuyInstructionLayout(t *testing.T) {
	accts, dev := testAccounts(t)
	fee := constants.PumpFeeRecipients[0]

	ix, err := NewBuyInstruction(accts, dev, fee, BuyArgs{Amount: 34_612_903_225_806, MaxSolCost: 1_000_000_000, TrackVolume: OptionBool{Field0: true}})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 25)
	assert.Equal(t, BuyDiscriminator[:], data[:8])
	assert.Equal(t, uint64(34_612_903_225_806), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[16:24]))
	assert.Equal(t, byte(1), data[24])

	metas := ix.Accounts()
	require.Len(t, metas, 16)
	assert.Equal(t, GlobalPDA, metas[0].PublicKey)
	assert.Equal(t, fee, metas[1].PublicKey)
	assert.True(t, metas[1].IsWritable)
	assert.Equal(t, dev, metas[6].PublicKey)
	assert.True(t, metas[6].IsSigner)
	assert.Equal(t, accts.CreatorVault, metas[9].PublicKey)

	ata, err := AssociatedTokenAddress(dev, accts.Mint)
	require.NoError(t, err)
	assert.Equal(t, ata, metas[5].PublicKey)

	signers := 0
	for _, m := range metas {
		if m.IsSigner {
			signers++
		}
	}
	assert.Equal(t, 1, signers)
}

func TestCreateInstructionLayout(t *testing.T) {
	accts, dev := testAccounts(t)
	args := CreateArgs{Name: "Moon", Symbol: "MN", URI: "https://ipfs.io/ipfs/x", Creator: dev}

	ix, err := NewCreateInstruction(accts, dev, args)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, CreateDiscriminator[:], data[:8])
	assert.Len(t, data, 8+4+4+4+2+4+len(args.URI)+32)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, "Moon", string(data[12:16]))
	assert.Equal(t, dev[:], data[len(data)-32:])

	metas := ix.Accounts()
	require.Len(t, metas, 14)
	assert.Equal(t, accts.Mint, metas[0].PublicKey)
	assert.True(t, metas[0].IsSigner)
	assert.Equal(t, dev, metas[7].PublicKey)
	assert.True(t, metas[7].IsSigner)
	assert.Equal(t, accts.Metadata, metas[6].PublicKey)
}

func TestCreateATAIdempotent(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ix, err := NewCreateATAIdempotentInstruction(payer, payer, mint)
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
	assert.Equal(t, constants.AssociatedTokenProgramID, ix.ProgramID())

	ata, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	require.NoError(t, err)
	assert.Equal(t, ata, ix.Accounts()[1].PublicKey)
}

func TestPickFeeRecipientSeeded(t *testing.T) {
	a := PickFeeRecipient(nil, rand.New(rand.NewSource(5)))
	b := PickFeeRecipient(nil, rand.New(rand.NewSource(5)))
	assert.Equal(t, a, b)
	assert.Contains(t, constants.PumpFeeRecipients, a)
}
