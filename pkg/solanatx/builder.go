package solanatx

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solanatoolkit/txbuilder/internal/metrics"
)

// MaxTransactionSizeBytes is Solana's on-wire packet limit
// (PACKET_DATA_SIZE), the default budget for a Limited builder.
const MaxTransactionSizeBytes = 1232

// Described pairs an instruction with an optional human-readable
// description. Descriptions travel with their instruction through
// packing and appear on the emitted PreparedTransaction in
// instruction order.
type Described struct {
	Instruction solana.Instruction
	Description string
}

type pack []Described

// Builder accumulates instructions into fee-payer-rooted, size-bounded
// packs and emits them as PreparedTransactions. Packs are delimited by
// FinishInstructionPack; the builder is drained by Sequence or
// SequenceCombined.
type Builder struct {
	feePayer solana.PublicKey
	registry *Registry
	packs    []pack
	current  pack
	maxSize  int
	metrics  *metrics.Metrics
}

// SetMetrics wires m into the builder so every pack finalized from
// this point on is observed via ObservePackBuilt. Optional; a builder
// with no metrics wired simply skips recording.
func (b *Builder) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// NewBuilder constructs a builder rooted at feePayer with a serialized
// size budget of maxSize bytes (0 means unbounded).
func NewBuilder(feePayer Signer, maxSize int) (*Builder, error) {
	registry := NewRegistry()
	pub, err := registry.Add(feePayer)
	if err != nil {
		return nil, err
	}
	return &Builder{
		feePayer: pub,
		registry: registry,
		maxSize:  maxSize,
		current:  pack{},
	}, nil
}

// Limited constructs a builder capped at MaxTransactionSizeBytes —
// every emitted PreparedTransaction fits in one network packet.
func Limited(feePayer Signer) (*Builder, error) {
	return NewBuilder(feePayer, MaxTransactionSizeBytes)
}

// Unlimited constructs a builder with no serialized-size cap; emitted
// transactions may need to be split across multiple submissions by the
// caller if they exceed the network's packet limit.
func Unlimited(feePayer Signer) (*Builder, error) {
	return NewBuilder(feePayer, 0)
}

// FeePayer returns the builder's root signer's public key.
func (b *Builder) FeePayer() solana.PublicKey {
	return b.feePayer
}

// FeePayerSigner returns the registered fee-payer signer.
func (b *Builder) FeePayerSigner() Signer {
	signer, _ := b.registry.Get(b.feePayer)
	return signer
}

// GetSigner returns the signer registered for pub, if any.
func (b *Builder) GetSigner(pub solana.PublicKey) (Signer, bool) {
	return b.registry.Get(pub)
}

// AddSigner registers an additional signer, returning its public key.
func (b *Builder) AddSigner(signer Signer) (solana.PublicKey, error) {
	return b.registry.Add(signer)
}

// AddSignerChecked registers signer only if its public key is not
// already held by the builder.
func (b *Builder) AddSignerChecked(signer Signer) error {
	pub, err := signer.PublicKey()
	if err != nil {
		return err
	}
	if b.registry.Contains(pub) {
		return nil
	}
	_, err = b.registry.Add(signer)
	return err
}

// GenerateSigner adds a fresh ephemeral keypair to the registry.
func (b *Builder) GenerateSigner() (solana.PublicKey, error) {
	return b.registry.NewEphemeral()
}

func (b *Builder) checkSigners(ix solana.Instruction) error {
	for _, meta := range ix.Accounts() {
		if meta.IsSigner && !b.registry.Contains(meta.PublicKey) {
			return &UnknownSignerError{PublicKey: meta.PublicKey}
		}
	}
	return nil
}

// AddInstruction admits ix into the current pack.
func (b *Builder) AddInstruction(ix solana.Instruction) error {
	return b.addInstruction(ix, "")
}

// AddInstructionWithDescription admits ix into the current pack,
// pairing it with desc.
func (b *Builder) AddInstructionWithDescription(ix solana.Instruction, desc string) error {
	return b.addInstruction(ix, desc)
}

func (b *Builder) addInstruction(ix solana.Instruction, desc string) error {
	if err := b.checkSigners(ix); err != nil {
		return err
	}

	b.current = append(b.current, Described{Instruction: ix, Description: desc})

	if b.maxSize > 0 {
		size, err := b.sizeOf(b.current)
		if err != nil {
			b.current = b.current[:len(b.current)-1]
			return err
		}
		if size > b.maxSize {
			b.current = b.current[:len(b.current)-1]
			return &TooBigTransactionError{Size: size, MaxSize: b.maxSize}
		}
	}
	return nil
}

func (b *Builder) sizeOf(p pack) (int, error) {
	tx, err := b.transactionFor(p)
	if err != nil {
		return 0, err
	}
	return signedSize(tx)
}

// signedSize returns the wire length tx will have once signed: one
// zero-valued 64-byte signature slot is reserved per required signer
// before serializing.
func signedSize(tx *solana.Transaction) (int, error) {
	sized := *tx
	sized.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	wire, err := sized.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return len(wire), nil
}

// transactionFor compiles p into a Transaction rooted at the fee
// payer. The blockhash is a placeholder: serialized size does not
// depend on its value, only on its fixed 32-byte presence, so size
// checks performed here hold for the eventual signed transaction too.
func (b *Builder) transactionFor(p pack) (*solana.Transaction, error) {
	instructions := make([]solana.Instruction, len(p))
	for i, d := range p {
		instructions[i] = d.Instruction
	}
	return solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(b.feePayer))
}

// FinishInstructionPack moves the current pack into the completed-pack
// list and starts a fresh empty current pack.
func (b *Builder) FinishInstructionPack() {
	b.packs = append(b.packs, b.current)
	b.current = pack{}
}

// AbortInstructionPack discards the current pack and starts fresh.
func (b *Builder) AbortInstructionPack() {
	b.current = pack{}
}

func (b *Builder) currentEmpty() bool {
	return len(b.current) == 0
}

// IsEmpty reports whether the builder holds no admitted instructions
// at all, completed or in progress.
func (b *Builder) IsEmpty() bool {
	return b.currentEmpty() && len(b.packs) == 0
}

func (b *Builder) finishIfNeeded() {
	if !b.currentEmpty() {
		b.FinishInstructionPack()
	}
}

// BuildNext finishes the current pack if non-empty, then pops the
// oldest completed pack and materializes it into a PreparedTransaction.
// Returns nil, nil when no packs remain.
func (b *Builder) BuildNext() (*PreparedTransaction, error) {
	b.finishIfNeeded()
	if len(b.packs) == 0 {
		return nil, nil
	}
	next := b.packs[0]
	b.packs = b.packs[1:]
	tx, err := b.transactionFor(next)
	if err != nil {
		return nil, err
	}
	b.observePackBuilt("single", tx, len(next))
	return NewPreparedTransaction(tx, b.registry, descriptionsOf(next))
}

// observePackBuilt records a finalized pack's serialized size and
// instruction count, when metrics are wired in.
func (b *Builder) observePackBuilt(mode string, tx *solana.Transaction, instructionCount int) {
	if b.metrics == nil {
		return
	}
	size, err := signedSize(tx)
	if err != nil {
		return
	}
	b.metrics.ObservePackBuilt(mode, size, instructionCount)
}

// BuildNextCombined finishes the current pack if non-empty, then
// greedily merges as many leading packs as fit the size budget (or all
// of them, when unbounded) into one PreparedTransaction. Returns nil,
// nil when no packs remain.
func (b *Builder) BuildNextCombined() (*PreparedTransaction, error) {
	b.finishIfNeeded()
	if len(b.packs) == 0 {
		return nil, nil
	}

	if b.maxSize == 0 {
		combined := pack{}
		for _, p := range b.packs {
			combined = append(combined, p...)
		}
		b.packs = nil
		tx, err := b.transactionFor(combined)
		if err != nil {
			return nil, err
		}
		b.observePackBuilt("combined", tx, len(combined))
		return NewPreparedTransaction(tx, b.registry, descriptionsOf(combined))
	}

	// The first pack must fit on its own: admission policy guarantees
	// every completed pack alone serializes within the budget.
	accumulated := append(pack{}, b.packs[0]...)
	b.packs = b.packs[1:]
	for len(b.packs) > 0 {
		candidate := append(append(pack{}, accumulated...), b.packs[0]...)
		size, err := b.sizeOf(candidate)
		if err != nil {
			return nil, err
		}
		if size > b.maxSize {
			break
		}
		accumulated = candidate
		b.packs = b.packs[1:]
	}

	tx, err := b.transactionFor(accumulated)
	if err != nil {
		return nil, err
	}
	b.observePackBuilt("combined", tx, len(accumulated))
	return NewPreparedTransaction(tx, b.registry, descriptionsOf(accumulated))
}

// Sequence returns an iterator emitting one PreparedTransaction per
// completed pack.
func (b *Builder) Sequence() *Iterator {
	return &Iterator{next: b.BuildNext}
}

// SequenceCombined returns an iterator emitting greedily combined
// PreparedTransactions. This is the production default: it minimizes
// round-trips while preserving the invariant that every emitted
// transaction fits the packet limit when one is set.
func (b *Builder) SequenceCombined() *Iterator {
	return &Iterator{next: b.BuildNextCombined}
}

// FitsSingleTransaction reports whether every currently accumulated
// instruction (completed packs plus the current pack) would serialize
// within the size budget as one transaction.
func (b *Builder) FitsSingleTransaction() (bool, error) {
	if b.maxSize == 0 {
		return true, nil
	}
	size, err := b.sizeOf(b.allInstructions())
	if err != nil {
		return false, err
	}
	return size <= b.maxSize, nil
}

func (b *Builder) allInstructions() pack {
	var all pack
	for _, p := range b.packs {
		all = append(all, p...)
	}
	all = append(all, b.current...)
	return all
}

// Instructions flattens every admitted instruction (completed packs
// plus the current pack), dropping descriptions.
func (b *Builder) Instructions() []solana.Instruction {
	all := b.allInstructions()
	out := make([]solana.Instruction, len(all))
	for i, d := range all {
		out[i] = d.Instruction
	}
	return out
}

func descriptionsOf(p pack) []string {
	out := make([]string, len(p))
	for i, d := range p {
		out[i] = d.Description
	}
	return out
}

// Iterator yields PreparedTransactions until the builder is drained.
type Iterator struct {
	next func() (*PreparedTransaction, error)
}

// Next returns the next PreparedTransaction. ok is false once the
// builder is drained; a non-nil err means materialization of that pack
// failed (the pack is still consumed).
func (it *Iterator) Next() (tx *PreparedTransaction, ok bool, err error) {
	tx, err = it.next()
	if err != nil {
		return nil, false, err
	}
	if tx == nil {
		return nil, false, nil
	}
	return tx, true, nil
}
