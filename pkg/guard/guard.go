// Package guard builds the submit-once instruction that makes a bundle fail if an
// identical bundle already landed.
package guard

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/gagliardetto/solana-go"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
)

// MaxNonce bounds the random nonce carried in every instruction.
const MaxNonce = 65535

// Discriminator is the Anchor discriminator of submit_once.
var Discriminator = anchorDiscriminator("submit_once")

// StatePDA is the dedup buffer the guard program records submissions in.
func StatePDA() (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte(constants.SeedDedupBuffer)}, constants.DoubleCheckProgramID)
	return pda, err
}

// NewInstruction builds a submit_once instruction with a nonce drawn from rng.
func NewInstruction(payer solana.PublicKey, rng *rand.Rand) (solana.Instruction, error) {
	return NewInstructionWithNonce(payer, uint64(rng.Intn(MaxNonce+1)))
}

// NewInstructionWithNonce builds a submit_once instruction with an explicit nonce.
func NewInstructionWithNonce(payer solana.PublicKey, nonce uint64) (solana.Instruction, error) {
	state, err := StatePDA()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		constants.DoubleCheckProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(state, true, false),
		},
		EncodeData(nonce),
	), nil
}

// EncodeData lays out discriminator, nonce and a zero u64, all little endian.
func EncodeData(nonce uint64) []byte {
	data := make([]byte, 0, 24)
	data = append(data, Discriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, nonce)
	data = binary.LittleEndian.AppendUint64(data, 0)
	return data
}

func anchorDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
