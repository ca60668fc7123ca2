// Package anchor adapts Anchor-style generated request builders
// (objects that accumulate a set of instructions behind a fluent API
// and expose them via an Instructions() method) into a
// solanatx.Builder pack.
package anchor

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solanatoolkit/txbuilder/pkg/solanatx"
)

// RequestBuilder is satisfied by Anchor's generated per-instruction
// request builders (e.g. *program.TransferRequestBuilder) and by
// anything else that can materialize a finished set of instructions.
type RequestBuilder interface {
	Instructions() ([]solana.Instruction, error)
}

// ImportFromRequestBuilder drains rb's instructions and admits each
// into b through the builder's normal admission path (so unknown
// signers and oversized packs are rejected exactly as they would be
// for a hand-assembled instruction), then finishes the current pack
// once so the whole batch lands atomically. On admission failure only
// the offending instruction is rolled back (AddInstruction's own
// behavior): any instructions already admitted from rb remain in the
// builder's current pack un-finished, and the pack is not finished.
func ImportFromRequestBuilder(b *solanatx.Builder, rb RequestBuilder) error {
	instructions, err := rb.Instructions()
	if err != nil {
		return fmt.Errorf("materialize request builder instructions: %w", err)
	}

	for i, ix := range instructions {
		if err := b.AddInstruction(ix); err != nil {
			return fmt.Errorf("admit instruction %d/%d: %w", i+1, len(instructions), err)
		}
	}

	b.FinishInstructionPack()
	return nil
}
