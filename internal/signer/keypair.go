// Package signer implements wallet signing for serialized Solana
// transactions.
package signer

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Sentinel errors
var (
	// ErrRejected means the user declined to sign.
	ErrRejected = errors.New("user rejected the request")

	// ErrNotSigner means the key is not a required signer of the transaction.
	ErrNotSigner = errors.New("key is not a required signer")
)

// KeypairSigner signs with a local ed25519 key. Existing signatures from
// other signers are kept, so partially signed transactions work.
type KeypairSigner struct {
	key solana.PrivateKey
}

// NewKeypairSigner creates a signer for key.
func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key), nil
}

// PublicKey returns the signer's public key.
func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Address returns the base58 wallet address.
func (s *KeypairSigner) Address() string {
	return s.key.PublicKey().String()
}

// SignTransaction decodes raw, signs its message and re-encodes it.
func (s *KeypairSigner) SignTransaction(ctx context.Context, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	pub := s.key.PublicKey()
	required := int(tx.Message.Header.NumRequiredSignatures)
	idx := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(pub) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", pub, ErrNotSigner)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	sig, err := s.key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[idx] = sig

	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return out, nil
}

// Decode parses a serialized transaction.
func Decode(raw []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// Describe summarizes a serialized transaction for confirmation prompts.
func Describe(raw []byte) string {
	tx, err := Decode(raw)
	if err != nil {
		return fmt.Sprintf("%d bytes (undecodable)", len(raw))
	}
	payer := "unknown"
	if len(tx.Message.AccountKeys) > 0 {
		payer = tx.Message.AccountKeys[0].String()
	}
	return fmt.Sprintf("fee payer %s, %d instruction(s)", payer, len(tx.Message.Instructions))
}
