// Package wallet holds the signers used to build bundles and the parsers for the key
// encodings users store their wallets in.
package wallet

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// Signer produces detached ed25519 signatures over transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Local is a Signer backed by an in-memory private key.
type Local struct {
	key solana.PrivateKey
}

// NewLocal wraps key. The key is not copied.
func NewLocal(key solana.PrivateKey) Local {
	return Local{key: key}
}

// NewRandomLocal generates a fresh keypair, used for sub wallets and non-vanity mints.
func NewRandomLocal() (Local, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Local{}, fmt.Errorf("generate keypair: %w", err)
	}
	return NewLocal(key), nil
}

// LoadLocal reads a key file. solana-keygen JSON files parse as a JSON array; any other
// encoding ParseKey accepts works too.
func LoadLocal(path string) (Local, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Local{}, fmt.Errorf("read key file: %w", err)
	}
	l, err := NewLocalFromString(string(raw))
	if err != nil {
		return Local{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func (l Local) PublicKey() solana.PublicKey {
	return l.key.PublicKey()
}

// PrivateKey returns the wrapped key, for persisting freshly generated wallets.
func (l Local) PrivateKey() solana.PrivateKey {
	return l.key
}

func (l Local) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	sig, err := l.key.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}
