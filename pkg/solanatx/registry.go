package solanatx

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// Registry owns key material keyed by public key and resolves signer
// sets for a transaction's required-signatures prefix. Keys are
// unique; insertion order is irrelevant. Ownership is shared — the
// same signer may be referenced by multiple PreparedTransactions.
type Registry struct {
	signers map[solana.PublicKey]Signer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{signers: make(map[solana.PublicKey]Signer)}
}

// Add registers signer and returns its public key.
func (r *Registry) Add(signer Signer) (solana.PublicKey, error) {
	pub, err := signer.PublicKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("resolve signer public key: %w", err)
	}
	r.signers[pub] = signer
	return pub, nil
}

// NewEphemeral generates a fresh keypair, registers it, and returns its
// public key.
func (r *Registry) NewEphemeral() (solana.PublicKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	return r.Add(NewLocalSigner(key))
}

// Contains reports whether a signer is registered for pub.
func (r *Registry) Contains(pub solana.PublicKey) bool {
	_, ok := r.signers[pub]
	return ok
}

// Get returns the signer registered for pub, if any.
func (r *Registry) Get(pub solana.PublicKey) (Signer, bool) {
	signer, ok := r.signers[pub]
	return signer, ok
}

// SignersFor returns the signer for each of tx's required signatures,
// in account-keys order. It fails with a *MissingSignerError naming the
// first absent key.
func (r *Registry) SignersFor(tx *solana.Transaction) ([]Signer, error) {
	n := int(tx.Message.Header.NumRequiredSignatures)
	keys := tx.Message.AccountKeys
	if n > len(keys) {
		return nil, fmt.Errorf("transaction header declares %d required signatures but only has %d account keys", n, len(keys))
	}

	signers := make([]Signer, n)
	for i := 0; i < n; i++ {
		signer, ok := r.signers[keys[i]]
		if !ok {
			return nil, &MissingSignerError{PublicKey: keys[i]}
		}
		signers[i] = signer
	}
	return signers, nil
}

// Pubkeys returns every registered public key in a deterministic,
// sorted order, supporting bulk signing over every held key.
func (r *Registry) Pubkeys() []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(r.signers))
	for k := range r.signers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}

// SignMessage signs one message with every held signer, aligned to the
// public-key order returned by Pubkeys.
func (r *Registry) SignMessage(message []byte) ([]solana.Signature, error) {
	keys := r.Pubkeys()
	sigs := make([]solana.Signature, len(keys))
	for i, k := range keys {
		sig, err := r.signers[k].Sign(message)
		if err != nil {
			return nil, fmt.Errorf("sign message with %s: %w", k, err)
		}
		sigs[i] = sig
	}
	return sigs, nil
}

// IsInteractive is always false: the bulk signing capability never
// prompts a user.
func (r *Registry) IsInteractive() bool {
	return false
}
