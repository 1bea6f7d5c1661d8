package txbuilder

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Group is an ordered list of instructions compiled into one transaction, together with
// every key that must sign it. The first signer pays the transaction fee.
type Group struct {
	Instructions []solana.Instruction
	Signers      []wallet.Signer
}

// Payer returns the fee payer of the group.
func (g Group) Payer() solana.PublicKey {
	if len(g.Signers) == 0 {
		return solana.PublicKey{}
	}
	return g.Signers[0].PublicKey()
}

// Clone copies the instruction and signer slices so appends never leak between callers.
func (g Group) Clone() Group {
	return Group{
		Instructions: append([]solana.Instruction(nil), g.Instructions...),
		Signers:      append([]wallet.Signer(nil), g.Signers...),
	}
}

// Empty reports whether the group has nothing to execute.
func (g Group) Empty() bool {
	return len(g.Instructions) == 0
}

// AddSigner appends s unless a signer with the same key is already present.
func (g *Group) AddSigner(s wallet.Signer) {
	for _, existing := range g.Signers {
		if existing.PublicKey().Equals(s.PublicKey()) {
			return
		}
	}
	g.Signers = append(g.Signers, s)
}

// LookupTable is an activated address lookup table usable in v0 messages.
type LookupTable struct {
	Address   solana.PublicKey
	Addresses solana.PublicKeySlice
}

// Tables converts an optional table into the form solana-go expects.
func (t *LookupTable) Tables() map[solana.PublicKey]solana.PublicKeySlice {
	if t == nil || len(t.Addresses) == 0 {
		return nil
	}
	return map[solana.PublicKey]solana.PublicKeySlice{t.Address: t.Addresses}
}

// Compile builds an unsigned v0 transaction for the group.
func Compile(group Group, blockhash solana.Hash, table *LookupTable) (*solana.Transaction, error) {
	if group.Empty() {
		return nil, types.ErrNoInstructions
	}
	if len(group.Signers) == 0 {
		return nil, types.ErrNilFeePayer
	}
	opts := []solana.TransactionOption{solana.TransactionPayer(group.Payer())}
	if tables := table.Tables(); tables != nil {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}
	tx, err := solana.NewTransaction(group.Instructions, blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	tx.Message.SetVersion(solana.MessageVersionV0)
	return tx, nil
}

// CompileAndSign compiles the group, signs it with its own signers and returns the
// transaction with its wire encoding.
func CompileAndSign(ctx context.Context, group Group, blockhash solana.Hash, table *LookupTable) (*solana.Transaction, []byte, error) {
	tx, err := Compile(group, blockhash, table)
	if err != nil {
		return nil, nil, err
	}
	if err := SignTransaction(ctx, tx, group.Signers...); err != nil {
		return nil, nil, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("encode transaction: %w", err)
	}
	return tx, raw, nil
}

// SignedSize returns the wire size of the group once compiled and signed.
func SignedSize(ctx context.Context, group Group, blockhash solana.Hash, table *LookupTable) (int, error) {
	_, raw, err := CompileAndSign(ctx, group, blockhash, table)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// CheckSize fails with types.ErrTransactionTooLarge when the signed group does not fit
// in a single transaction.
func CheckSize(ctx context.Context, group Group, table *LookupTable) (int, error) {
	// Any hash works; the blockhash has a fixed width.
	size, err := SignedSize(ctx, group, solana.Hash{}, table)
	if err != nil {
		return 0, err
	}
	if size > constants.MaxTransactionSize {
		return size, fmt.Errorf("%w: %d > %d bytes", types.ErrTransactionTooLarge, size, constants.MaxTransactionSize)
	}
	return size, nil
}

// SignTransaction signs using the provided signers in account-key order.
func SignTransaction(ctx context.Context, tx *solana.Transaction, signers ...wallet.Signer) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 {
		return nil
	}
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("not enough account keys for required signatures")
	}

	signerMap := make(map[solana.PublicKey]wallet.Signer, len(signers))
	for _, s := range signers {
		signerMap[s.PublicKey()] = s
	}

	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	tx.Signatures = make([]solana.Signature, required)
	for i := 0; i < required; i++ {
		pk := tx.Message.AccountKeys[i]
		signer, ok := signerMap[pk]
		if !ok {
			return fmt.Errorf("missing signer for %s", pk.String())
		}
		sig, err := signer.SignMessage(ctx, messageBytes)
		if err != nil {
			return fmt.Errorf("sign message for %s: %w", pk.String(), err)
		}
		tx.Signatures[i] = sig
	}
	return nil
}
