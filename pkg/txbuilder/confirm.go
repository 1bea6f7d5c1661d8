package txbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// ConfirmationLevel represents transaction confirmation depth.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// StatusReader is the slice of the chain confirmation needs.
type StatusReader interface {
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
}

// DefaultPollInterval is how often confirmation polls signature status.
const DefaultPollInterval = 400 * time.Millisecond

// WaitForConfirmation polls sig until it reaches level, fails on chain, or the chain's
// block height passes lastValidBlockHeight, after which the transaction can never land.
func WaitForConfirmation(ctx context.Context, chain StatusReader, sig solana.Signature, lastValidBlockHeight uint64, level ConfirmationLevel, interval time.Duration) error {
	if chain == nil {
		return types.ErrNilRPC
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		statuses, err := chain.GetSignatureStatuses(ctx, sig)
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			status := statuses[0]
			if status.Err != nil {
				return types.OnChainError{Signature: sig.String(), Detail: status.Err}
			}
			if reached(status.ConfirmationStatus, level) {
				return nil
			}
			continue
		}

		height, err := chain.GetBlockHeight(ctx)
		if err != nil {
			continue // retry on transient errors
		}
		if height > lastValidBlockHeight {
			return fmt.Errorf("%w: %s at height %d", types.ErrBlockhashExpired, sig, height)
		}
	}
}

func reached(status solanarpc.ConfirmationStatusType, level ConfirmationLevel) bool {
	switch level {
	case ConfirmationProcessed:
		return true
	case ConfirmationFinalized:
		return status == solanarpc.ConfirmationStatusFinalized
	default:
		return status == solanarpc.ConfirmationStatusConfirmed ||
			status == solanarpc.ConfirmationStatusFinalized
	}
}
