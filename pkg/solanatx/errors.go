package solanatx

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// UnknownSignerError is returned by admission when an instruction
// declares a signer account the builder has no key material for.
// Recoverable: register the signer and retry admission.
type UnknownSignerError struct {
	PublicKey solana.PublicKey
}

func (e *UnknownSignerError) Error() string {
	return fmt.Sprintf("unknown signer %s", e.PublicKey)
}

// TooBigTransactionError is returned by admission when adding an
// instruction would push the current pack's candidate transaction past
// the builder's size budget. Recoverable: finish the pack and retry.
type TooBigTransactionError struct {
	Size    int
	MaxSize int
}

func (e *TooBigTransactionError) Error() string {
	return fmt.Sprintf("transaction too big: %d bytes exceeds budget of %d bytes", e.Size, e.MaxSize)
}

// MissingSignerError is returned when a PreparedTransaction is
// constructed from a transaction whose required-signatures prefix
// references a public key the registry does not hold. Unlike
// UnknownSignerError this indicates a builder invariant violation, not
// a recoverable caller mistake.
type MissingSignerError struct {
	PublicKey solana.PublicKey
}

func (e *MissingSignerError) Error() string {
	return fmt.Sprintf("missing signer for public key %s", e.PublicKey)
}

// SigningError wraps a failure from an individual signer during
// PreparedTransaction.Sign.
type SigningError struct {
	PublicKey solana.PublicKey
	Cause     error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed for %s: %v", e.PublicKey, e.Cause)
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}
