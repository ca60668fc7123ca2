package solanatx

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

func newTestSigner(t *testing.T) Signer {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewLocalSigner(key)
}

func TestRegistryPubkeysSortedDeterministically(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		if _, err := r.Add(newTestSigner(t)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	first := r.Pubkeys()
	second := r.Pubkeys()
	if len(first) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Pubkeys order not stable across calls")
		}
	}
	for i := 1; i < len(first); i++ {
		if string(first[i-1][:]) >= string(first[i][:]) {
			t.Fatalf("Pubkeys not sorted ascending at index %d", i)
		}
	}
}

func TestRegistrySignersForResolvesFeePayerPrefix(t *testing.T) {
	payer := newTestSigner(t)
	r := NewRegistry()
	payerPub, _ := r.Add(payer)

	other, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	ix := system.NewTransferInstruction(1, payerPub, other.PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(payerPub))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	// Required-signatures prefix is just the fee payer here, so
	// resolution succeeds with exactly one signer.
	signers, err := r.SignersFor(tx)
	if err != nil {
		t.Fatalf("SignersFor: %v", err)
	}
	if len(signers) != 1 {
		t.Fatalf("expected 1 signer, got %d", len(signers))
	}
}

func TestRegistryMissingSignerError(t *testing.T) {
	payer := newTestSigner(t)
	other := newTestSigner(t)
	otherPub, _ := other.PublicKey()

	r := NewRegistry()
	payerPub, err := r.Add(payer)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if r.Contains(otherPub) {
		t.Fatalf("registry should not contain unregistered key")
	}
	if _, ok := r.Get(otherPub); ok {
		t.Fatalf("Get should report false for unregistered key")
	}

	// Two signer accounts in the instruction; only the fee payer is
	// registered, so resolving the required-signatures prefix must fail
	// naming the unregistered key.
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payerPub, true, true),
		solana.NewAccountMeta(otherPub, true, true),
	}
	ix := solana.NewInstruction(solana.SystemProgramID, accounts, []byte{0, 0, 0, 0})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(payerPub))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	_, err = r.SignersFor(tx)
	if err == nil {
		t.Fatalf("expected SignersFor to fail for an unregistered required signer")
	}
	var missingErr *MissingSignerError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected *MissingSignerError, got %T: %v", err, err)
	}
	if missingErr.PublicKey != otherPub {
		t.Fatalf("expected missing signer %s, got %s", otherPub, missingErr.PublicKey)
	}
}
