// Package solanatx accumulates Solana program instructions into
// fee-payer-rooted, size-bounded transaction packs, resolves their
// signers, and materializes them into signed transactions.
package solanatx

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Signer is the capability every key-material variant exposes: an
// in-memory keypair, a hardware wallet, or a remote signing service.
// Implementations must be safe for repeated sequential use; concurrent
// use requires wrapping with Shareable.
type Signer interface {
	PublicKey() (solana.PublicKey, error)
	Sign(message []byte) (solana.Signature, error)
	IsInteractive() bool
}

// LocalSigner wraps an in-memory keypair held directly by the process.
type LocalSigner struct {
	key solana.PrivateKey
}

// NewLocalSigner wraps key as a Signer.
func NewLocalSigner(key solana.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

// PublicKey never fails for a local keypair.
func (s *LocalSigner) PublicKey() (solana.PublicKey, error) {
	return s.key.PublicKey(), nil
}

// Sign produces an ed25519 signature over message.
func (s *LocalSigner) Sign(message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

// IsInteractive is always false for a local keypair.
func (s *LocalSigner) IsInteractive() bool {
	return false
}

// Shareable wraps any Signer with a mutex scoped to a single call, so
// the same underlying signer can be handed to concurrent goroutines.
// The lock is held only for the duration of one PublicKey/Sign/
// IsInteractive call, never across a suspension point.
type Shareable struct {
	mu     sync.Mutex
	signer Signer
}

// NewShareable wraps signer for cross-goroutine use.
func NewShareable(signer Signer) *Shareable {
	return &Shareable{signer: signer}
}

// PublicKey delegates to the wrapped signer under lock.
func (s *Shareable) PublicKey() (solana.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer.PublicKey()
}

// Sign delegates to the wrapped signer under lock.
func (s *Shareable) Sign(message []byte) (solana.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer.Sign(message)
}

// IsInteractive delegates to the wrapped signer under lock.
func (s *Shareable) IsInteractive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer.IsInteractive()
}
