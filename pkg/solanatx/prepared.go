package solanatx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// VersionedTransaction is the wire envelope produced by SignVersioned.
// solana-go's Transaction/Message already distinguish legacy from v0
// messages via Message.Version; this thin wrapper gives callers a
// distinct "ready to submit" type mirroring the two sibling sign entry
// points of the reference design, without reaching into solana-go's
// versioned-message internals.
type VersionedTransaction struct {
	Transaction *solana.Transaction
}

// MarshalBinary serializes the wrapped transaction for submission.
func (v *VersionedTransaction) MarshalBinary() ([]byte, error) {
	return v.Transaction.MarshalBinary()
}

// Signature returns the fee payer's signature, the transaction's
// effective identifier once landed.
func (v *VersionedTransaction) Signature() solana.Signature {
	if len(v.Transaction.Signatures) == 0 {
		return solana.Signature{}
	}
	return v.Transaction.Signatures[0]
}

// PreparedTransaction bundles an unsigned transaction with the signer
// set resolved for its required-signatures prefix. It is immutable:
// every signing call starts from a clone of the stored transaction, so
// the same PreparedTransaction can be signed repeatedly against
// different blockhashes (e.g. one per priority-fee retry attempt).
type PreparedTransaction struct {
	unsigned     *solana.Transaction
	signers      []Signer
	descriptions []string
}

// NewPreparedTransaction resolves signers for tx via registry and
// pairs them with the optional per-instruction descriptions (may be
// nil or shorter than tx's instruction count).
func NewPreparedTransaction(tx *solana.Transaction, registry *Registry, descriptions []string) (*PreparedTransaction, error) {
	signers, err := registry.SignersFor(tx)
	if err != nil {
		return nil, err
	}
	return &PreparedTransaction{unsigned: tx, signers: signers, descriptions: descriptions}, nil
}

// Sign clones the unsigned transaction, binds it to blockhash, and
// invokes every resolved signer over the serialized message bytes,
// writing signatures into account-keys order.
func (p *PreparedTransaction) Sign(blockhash solana.Hash) (*solana.Transaction, error) {
	signed := cloneTransaction(p.unsigned)
	signed.Message.RecentBlockhash = blockhash

	messageData, err := signed.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	signed.Signatures = make([]solana.Signature, len(p.signers))
	for i, signer := range p.signers {
		sig, err := signer.Sign(messageData)
		if err != nil {
			pub, _ := signer.PublicKey()
			return nil, &SigningError{PublicKey: pub, Cause: err}
		}
		signed.Signatures[i] = sig
	}
	return signed, nil
}

// SignVersioned signs as Sign and wraps the result in the versioned
// envelope.
func (p *PreparedTransaction) SignVersioned(blockhash solana.Hash) (*VersionedTransaction, error) {
	signed, err := p.Sign(blockhash)
	if err != nil {
		return nil, err
	}
	return &VersionedTransaction{Transaction: signed}, nil
}

// IntoShareable converts the owned signers into mutex-wrapped
// references so the prepared transaction becomes safe to sign from
// concurrent goroutines.
func (p *PreparedTransaction) IntoShareable() *SharablePreparedTransaction {
	shared := make([]Signer, len(p.signers))
	for i, s := range p.signers {
		if already, ok := s.(*Shareable); ok {
			shared[i] = already
			continue
		}
		shared[i] = NewShareable(s)
	}
	return &SharablePreparedTransaction{
		PreparedTransaction: &PreparedTransaction{
			unsigned:     p.unsigned,
			signers:      shared,
			descriptions: p.descriptions,
		},
	}
}

// SingleDescription joins the non-empty per-instruction descriptions,
// each prefixed with its zero-based index, separated by newlines.
// Returns ok=false when every description is empty.
func (p *PreparedTransaction) SingleDescription() (joined string, ok bool) {
	var lines []string
	for i, desc := range p.descriptions {
		if desc == "" {
			continue
		}
		lines = append(lines, strconv.Itoa(i)+": "+desc)
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// SharablePreparedTransaction is a PreparedTransaction whose signers
// are each guarded by a mutex scoped to one signing call, safe to pass
// to concurrent goroutines (e.g. the parallel execution batch).
type SharablePreparedTransaction struct {
	*PreparedTransaction
}

// cloneTransaction copies tx's top-level fields and Signatures slice.
// Message's slice fields (AccountKeys, Instructions) are never mutated
// in place, so sharing their backing arrays between clone and original
// is safe; only the clone's Message.RecentBlockhash is ever set.
func cloneTransaction(tx *solana.Transaction) *solana.Transaction {
	clone := *tx
	clone.Signatures = make([]solana.Signature, len(tx.Signatures))
	copy(clone.Signatures, tx.Signatures)
	return &clone
}
