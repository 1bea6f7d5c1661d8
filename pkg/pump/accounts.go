// Package pump encodes the pump.fun create and buy instructions used by a launch.
package pump

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
)

// Program-level PDAs, identical for every mint.
var (
	GlobalPDA                  = mustPDA(constants.PumpProgramID, []byte(constants.SeedGlobal))
	MintAuthorityPDA           = mustPDA(constants.PumpProgramID, []byte(constants.SeedMintAuthority))
	EventAuthorityPDA          = mustPDA(constants.PumpProgramID, []byte(constants.SeedEventAuthority))
	GlobalVolumeAccumulatorPDA = mustPDA(constants.PumpProgramID, []byte(constants.SeedGlobalVolumeAccumulator))
	FeeConfigPDA               = mustPDA(constants.PumpFeeProgramID, []byte(constants.SeedFeeConfig), constants.PumpProgramID[:])
)

// MintAccounts holds the addresses derived from a mint and its creator.
type MintAccounts struct {
	Mint                   solana.PublicKey
	Creator                solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	Metadata               solana.PublicKey
	CreatorVault           solana.PublicKey
}

// DeriveMintAccounts derives the bonding curve, its token account, the metadata account and
// the creator vault of a mint.
func DeriveMintAccounts(mint, creator solana.PublicKey) (MintAccounts, error) {
	accts := MintAccounts{Mint: mint, Creator: creator}

	var err error
	accts.BondingCurve, _, err = solana.FindProgramAddress([][]byte{
		[]byte(constants.SeedBondingCurve),
		mint[:],
	}, constants.PumpProgramID)
	if err != nil {
		return accts, fmt.Errorf("derive bonding curve: %w", err)
	}

	accts.AssociatedBondingCurve, err = AssociatedTokenAddress(accts.BondingCurve, mint)
	if err != nil {
		return accts, fmt.Errorf("derive bonding curve ATA: %w", err)
	}

	accts.Metadata, _, err = solana.FindProgramAddress([][]byte{
		[]byte(constants.SeedMetadata),
		constants.MetadataProgramID[:],
		mint[:],
	}, constants.MetadataProgramID)
	if err != nil {
		return accts, fmt.Errorf("derive metadata: %w", err)
	}

	accts.CreatorVault, _, err = solana.FindProgramAddress([][]byte{
		[]byte(constants.SeedCreatorVault),
		creator[:],
	}, constants.PumpProgramID)
	if err != nil {
		return accts, fmt.Errorf("derive creator vault: %w", err)
	}
	return accts, nil
}

// UserVolumeAccumulatorPDA derives the per-user volume tracking account.
func UserVolumeAccumulatorPDA(user solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{
		[]byte(constants.SeedUserVolumeAccumulator),
		user[:],
	}, constants.PumpProgramID)
	return pda, err
}

// AssociatedTokenAddress derives the classic SPL token account of wallet for mint.
func AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindProgramAddress([][]byte{
		wallet[:],
		constants.TokenProgramID[:],
		mint[:],
	}, constants.AssociatedTokenProgramID)
	return ata, err
}

func mustPDA(program solana.PublicKey, seeds ...[]byte) solana.PublicKey {
	pda, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		panic(fmt.Sprintf("derive pda for %s: %v", program, err))
	}
	return pda
}
