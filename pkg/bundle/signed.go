package bundle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// ExecuteSigned sends transactions that are already signed against blockhash, behind a
// separate tip transaction from payer, and waits for the tip transaction to confirm.
// Unlike Execute it makes a single attempt.
func (e *Executor) ExecuteSigned(ctx context.Context, txs []*solana.Transaction, payer wallet.Signer, tipLamports uint64, blockhash *solanarpc.GetLatestBlockhashResult) Result {
	if payer == nil {
		return Result{Err: types.ErrNilFeePayer}
	}
	if len(txs) == 0 {
		return Result{Err: types.ErrNoGroups}
	}
	if len(txs)+1 > constants.MaxBundleTransactions {
		return Result{Err: types.NewValidationError("transactions", fmt.Sprintf("at most %d besides the tip, got %d", constants.MaxBundleTransactions-1, len(txs)))}
	}
	if blockhash == nil || blockhash.Value == nil {
		return Result{Err: types.NewValidationError("blockhash", "is required")}
	}

	e.rngMu.Lock()
	tipAccount := e.relay.RandomTipAccount(e.rng)
	e.rngMu.Unlock()

	tipGroup := Group{
		Instructions: []solana.Instruction{system.NewTransferInstruction(tipLamports, payer.PublicKey(), tipAccount).Build()},
		Signers:      []wallet.Signer{payer},
	}
	tipTx, tipRaw, err := txbuilder.CompileAndSign(ctx, tipGroup, blockhash.Value.Blockhash, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("tip transaction: %w", err)}
	}

	raws := [][]byte{tipRaw}
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return Result{Err: fmt.Errorf("encode transaction %d: %w", i, err)}
		}
		raws = append(raws, raw)
	}

	bundleID, err := e.relay.SendBundle(ctx, raws)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", types.ErrBundleNotConfirmed, err)}
	}
	sig := tipTx.Signatures[0]
	if err := txbuilder.WaitForConfirmation(ctx, e.chain, sig, blockhash.Value.LastValidBlockHeight, e.opts.Confirmation, e.opts.PollInterval); err != nil {
		return Result{Err: fmt.Errorf("%w: %w", types.ErrBundleNotConfirmed, err)}
	}
	return Result{Confirmed: true, Signature: sig, BundleID: bundleID, Round: 1}
}
