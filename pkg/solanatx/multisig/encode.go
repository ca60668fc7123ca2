// Package multisig serializes instructions for out-of-band multisig
// proposal review: a Borsh-encoded, base64-wrapped representation that
// any cosigner's wallet can decode, inspect, and re-build without
// needing the original typed instruction struct.
package multisig

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// AccountMeta is the wire representation of one instruction account:
// its pubkey plus the writable/signer flags.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsWritable bool
	IsSigner   bool
}

// Instruction is the wire representation of a single instruction: its
// program id, its ordered account list, and its opaque data payload.
// Borsh-encodes ProgramID as a fixed 32-byte array, Accounts and Data
// as u32-length-prefixed sequences; this is not the compact-u16 layout
// of a serialized Solana transaction.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// EncodeInstruction Borsh-encodes ix's program id, account metas, and
// data, then base64-wraps the result for inclusion in a multisig
// proposal payload.
func EncodeInstruction(ix solana.Instruction) (string, error) {
	data, err := ix.Data()
	if err != nil {
		return "", fmt.Errorf("read instruction data: %w", err)
	}

	accounts := ix.Accounts()
	metas := make([]AccountMeta, len(accounts))
	for i, a := range accounts {
		metas[i] = AccountMeta{PublicKey: a.PublicKey, IsWritable: a.IsWritable, IsSigner: a.IsSigner}
	}

	wire := Instruction{ProgramID: ix.ProgramID(), Accounts: metas, Data: data}
	raw, err := bin.MarshalBorsh(wire)
	if err != nil {
		return "", fmt.Errorf("borsh-encode instruction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeInstruction reverses EncodeInstruction.
func DecodeInstruction(encoded string) (*Instruction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64-decode instruction: %w", err)
	}

	var wire Instruction
	if err := bin.UnmarshalBorsh(&wire, raw); err != nil {
		return nil, fmt.Errorf("borsh-decode instruction: %w", err)
	}
	return &wire, nil
}

// ToSolanaInstruction rebuilds a generic, submittable solana.Instruction
// from the decoded wire representation.
func (ix *Instruction) ToSolanaInstruction() solana.Instruction {
	accounts := make(solana.AccountMetaSlice, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		accounts[i] = solana.NewAccountMeta(meta.PublicKey, meta.IsWritable, meta.IsSigner)
	}
	return solana.NewInstruction(ix.ProgramID, accounts, ix.Data)
}

// FormatProposal renders a human-readable multisig proposal listing
// one block per instruction, prefixed by its program id, for cosigner
// review ahead of signing.
func FormatProposal(instructions []solana.Instruction) string {
	var sb strings.Builder
	for i, ix := range instructions {
		fmt.Fprintf(&sb, "instruction %d: program %s\n", i+1, ix.ProgramID())

		for j, a := range ix.Accounts() {
			fmt.Fprintf(&sb, "  account %d: %s (writable=%t signer=%t)\n", j, a.PublicKey, a.IsWritable, a.IsSigner)
		}

		data, err := ix.Data()
		if err != nil {
			fmt.Fprintf(&sb, "  data: <error: %v>\n", err)
			continue
		}
		fmt.Fprintf(&sb, "  data: %s\n", base64.StdEncoding.EncodeToString(data))
	}
	return sb.String()
}
