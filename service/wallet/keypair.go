package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer is the wallet surface the claim flow needs: an address to pay
// fees from and a way to sign a batch of transactions in one request.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// Keypair signs with a local ed25519 key.
type Keypair struct {
	key solana.PrivateKey
}

// LoadKeypair reads a solana-keygen JSON key file.
func LoadKeypair(path string) (*Keypair, error) {
	if path == "" {
		return nil, errors.New("keypair path is empty")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return &Keypair{key: key}, nil
}

// NewKeypair wraps an in-memory private key.
func NewKeypair(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// SignAllTransactions signs every transaction in place and returns them.
// Each must name this key as its only required signer.
func (k *Keypair) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	pub := k.key.PublicKey()
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := tx.Sign(func(signer solana.PublicKey) *solana.PrivateKey {
			if signer.Equals(pub) {
				return &k.key
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction %d: %w", i, err)
		}
	}
	return txs, nil
}
