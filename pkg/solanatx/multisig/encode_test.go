package multisig

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/memo"
	"github.com/gagliardetto/solana-go/programs/system"
)

func TestEncodeDecodeInstructionRoundTrips(t *testing.T) {
	from, _ := solana.NewRandomPrivateKey()
	to, _ := solana.NewRandomPrivateKey()
	ix := system.NewTransferInstruction(42, from.PublicKey(), to.PublicKey()).Build()

	encoded, err := EncodeInstruction(ix)
	if err != nil {
		t.Fatalf("EncodeInstruction: %v", err)
	}

	decoded, err := DecodeInstruction(encoded)
	if err != nil {
		t.Fatalf("DecodeInstruction: %v", err)
	}

	if decoded.ProgramID != ix.ProgramID() {
		t.Fatalf("program id mismatch: got %s want %s", decoded.ProgramID, ix.ProgramID())
	}
	wantData, err := ix.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if string(decoded.Data) != string(wantData) {
		t.Fatalf("data mismatch: got %x want %x", decoded.Data, wantData)
	}
	if len(decoded.Accounts) != len(ix.Accounts()) {
		t.Fatalf("account count mismatch: got %d want %d", len(decoded.Accounts), len(ix.Accounts()))
	}
	for i, meta := range ix.Accounts() {
		got := decoded.Accounts[i]
		if got.PublicKey != meta.PublicKey || got.IsWritable != meta.IsWritable || got.IsSigner != meta.IsSigner {
			t.Fatalf("account %d mismatch: got %+v want pubkey=%s writable=%t signer=%t", i, got, meta.PublicKey, meta.IsWritable, meta.IsSigner)
		}
	}
}

func TestDecodeInstructionRebuildsSubmittableInstruction(t *testing.T) {
	from, _ := solana.NewRandomPrivateKey()
	to, _ := solana.NewRandomPrivateKey()
	ix := system.NewTransferInstruction(7, from.PublicKey(), to.PublicKey()).Build()

	encoded, err := EncodeInstruction(ix)
	if err != nil {
		t.Fatalf("EncodeInstruction: %v", err)
	}
	decoded, err := DecodeInstruction(encoded)
	if err != nil {
		t.Fatalf("DecodeInstruction: %v", err)
	}

	rebuilt := decoded.ToSolanaInstruction()
	if rebuilt.ProgramID() != ix.ProgramID() {
		t.Fatalf("rebuilt program id mismatch")
	}
	rebuiltData, err := rebuilt.Data()
	if err != nil {
		t.Fatalf("rebuilt Data: %v", err)
	}
	originalData, _ := ix.Data()
	if string(rebuiltData) != string(originalData) {
		t.Fatalf("rebuilt data mismatch")
	}
}

func TestFormatProposalListsEachInstruction(t *testing.T) {
	signer, _ := solana.NewRandomPrivateKey()
	recipient, _ := solana.NewRandomPrivateKey()
	instructions := []solana.Instruction{
		system.NewTransferInstruction(1, signer.PublicKey(), recipient.PublicKey()).Build(),
		memo.NewMemoInstruction([]byte("proposal note"), signer.PublicKey()).Build(),
	}

	proposal := FormatProposal(instructions)

	if !strings.Contains(proposal, "instruction 1:") || !strings.Contains(proposal, "instruction 2:") {
		t.Fatalf("expected both instructions listed, got:\n%s", proposal)
	}
	if !strings.Contains(proposal, signer.PublicKey().String()) {
		t.Fatalf("expected signer pubkey present, got:\n%s", proposal)
	}
}

func TestDecodeInstructionRejectsInvalidBase64(t *testing.T) {
	if _, err := DecodeInstruction("not-valid-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
