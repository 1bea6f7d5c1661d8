package constants

import "github.com/gagliardetto/solana-go"

// Well-known program IDs
var (
	// SPL Programs
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	SysvarRentProgramID      = solana.SysVarRentPubkey
	MetadataProgramID        = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// Address lookup table program
	AddressLookupTableProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

	// Pump.fun Program
	PumpProgramID    = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	PumpFeeProgramID = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")

	// Double-check (submit once) program used as the bundle replay guard
	DoubleCheckProgramID = solana.MustPublicKeyFromBase58("7dNDKN621rXdL1Zec3UZB6VbaKsJ98Gi7g6cpPyTRCVY")
)

// PumpFeeRecipients is the fee recipient set published in the pump global account.
var PumpFeeRecipients = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"),
	solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV"),
	solana.MustPublicKeyFromBase58("7VtfL8fvgNfhz17qKRMjzQEXgbdpnHHHQRh54R9jP2RJ"),
	solana.MustPublicKeyFromBase58("7hTckgnGnLQR6sdH7YkqFTAA7VwTfYFaZ6EhEsU3saCX"),
	solana.MustPublicKeyFromBase58("9rPYyANsfQZw3DnDmKE3YCQF5E8oD89UXoHn9JFEhJUz"),
	solana.MustPublicKeyFromBase58("AVmoTthdrX6tKt4nDjco2D775W2YK3sDhxPcMmzUAmTY"),
	solana.MustPublicKeyFromBase58("FWsW1xNtWscwNmKv6wVsU1iTzRN6wmmk3MjxRP5tT7hz"),
	solana.MustPublicKeyFromBase58("G5UZAVbAf46s7cKWoyKu8kYTip9DGTpbLZ2qa9Aq69dP"),
}

// PDA seeds
const (
	SeedGlobal                  = "global"
	SeedBondingCurve            = "bonding-curve"
	SeedCreatorVault            = "creator-vault"
	SeedMintAuthority           = "mint-authority"
	SeedEventAuthority          = "__event_authority"
	SeedGlobalVolumeAccumulator = "global_volume_accumulator"
	SeedUserVolumeAccumulator   = "user_volume_accumulator"
	SeedFeeConfig               = "fee_config"
	SeedMetadata                = "metadata"
	SeedDedupBuffer             = "dedup_buffer"
)

// Chain limits
const (
	// MaxTransactionSize is the maximum serialized transaction size in bytes.
	MaxTransactionSize = 1232
	// MaxBundleTransactions is the block engine ceiling on transactions per bundle.
	MaxBundleTransactions = 5
	// MaxExtendAddresses is the number of addresses a single extend instruction may add.
	MaxExtendAddresses = 20
	// LamportsPerSol is the number of lamports in one SOL.
	LamportsPerSol uint64 = 1_000_000_000
	// LamportsPerSignature is the base fee charged per transaction signature.
	LamportsPerSignature uint64 = 5_000
	// RentExemptLamportsPerByte is two years of rent at the default rate, per account byte.
	RentExemptLamportsPerByte uint64 = 6_960
	// AccountStorageOverhead is the per-account byte count rent is charged on beyond its data.
	AccountStorageOverhead = 128
)
