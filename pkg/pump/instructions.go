package pump

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/rand"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
)

// Instruction discriminators.
var (
	CreateDiscriminator = anchorDiscriminator("create")
	BuyDiscriminator    = anchorDiscriminator("buy")
)

// OptionBool mirrors the program's single-field bool wrapper.
type OptionBool struct {
	Field0 bool
}

// CreateArgs are the Borsh-encoded arguments of create.
type CreateArgs struct {
	Name    string
	Symbol  string
	URI     string
	Creator solana.PublicKey
}

// BuyArgs are the Borsh-encoded arguments of buy.
type BuyArgs struct {
	Amount      uint64
	MaxSolCost  uint64
	TrackVolume OptionBool
}

// NewCreateInstruction creates the token, its bonding curve and metadata. Both user and
// mint must sign.
func NewCreateInstruction(accts MintAccounts, user solana.PublicKey, args CreateArgs) (solana.Instruction, error) {
	data, err := encode(CreateDiscriminator, args)
	if err != nil {
		return nil, fmt.Errorf("encode create args: %w", err)
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accts.Mint, true, true),
		solana.NewAccountMeta(MintAuthorityPDA, false, false),
		solana.NewAccountMeta(accts.BondingCurve, true, false),
		solana.NewAccountMeta(accts.AssociatedBondingCurve, true, false),
		solana.NewAccountMeta(GlobalPDA, false, false),
		solana.NewAccountMeta(constants.MetadataProgramID, false, false),
		solana.NewAccountMeta(accts.Metadata, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
		solana.NewAccountMeta(constants.AssociatedTokenProgramID, false, false),
		solana.NewAccountMeta(constants.SysvarRentProgramID, false, false),
		solana.NewAccountMeta(EventAuthorityPDA, false, false),
		solana.NewAccountMeta(constants.PumpProgramID, false, false),
	}
	return solana.NewInstruction(constants.PumpProgramID, metas, data), nil
}

// NewBuyInstruction buys exactly args.Amount tokens for at most args.MaxSolCost lamports.
func NewBuyInstruction(accts MintAccounts, user, feeRecipient solana.PublicKey, args BuyArgs) (solana.Instruction, error) {
	data, err := encode(BuyDiscriminator, args)
	if err != nil {
		return nil, fmt.Errorf("encode buy args: %w", err)
	}
	assocUser, err := AssociatedTokenAddress(user, accts.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive user ATA: %w", err)
	}
	userVolume, err := UserVolumeAccumulatorPDA(user)
	if err != nil {
		return nil, fmt.Errorf("derive user volume accumulator: %w", err)
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(GlobalPDA, false, false),
		solana.NewAccountMeta(feeRecipient, true, false),
		solana.NewAccountMeta(accts.Mint, false, false),
		solana.NewAccountMeta(accts.BondingCurve, true, false),
		solana.NewAccountMeta(accts.AssociatedBondingCurve, true, false),
		solana.NewAccountMeta(assocUser, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
		solana.NewAccountMeta(accts.CreatorVault, true, false),
		solana.NewAccountMeta(EventAuthorityPDA, false, false),
		solana.NewAccountMeta(constants.PumpProgramID, false, false),
		solana.NewAccountMeta(GlobalVolumeAccumulatorPDA, false, false),
		solana.NewAccountMeta(userVolume, true, false),
		solana.NewAccountMeta(FeeConfigPDA, false, false),
		solana.NewAccountMeta(constants.PumpFeeProgramID, false, false),
	}
	return solana.NewInstruction(constants.PumpProgramID, metas, data), nil
}

// NewCreateATAIdempotentInstruction creates owner's token account for mint unless it exists.
func NewCreateATAIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive ATA: %w", err)
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
	}
	// 1 = CreateIdempotent
	return solana.NewInstruction(constants.AssociatedTokenProgramID, metas, []byte{1}), nil
}

// PickFeeRecipient draws one recipient uniformly from set.
func PickFeeRecipient(set []solana.PublicKey, rng *rand.Rand) solana.PublicKey {
	if len(set) == 0 {
		set = constants.PumpFeeRecipients
	}
	return set[rng.Intn(len(set))]
}

func encode(discriminator [8]byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func anchorDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
