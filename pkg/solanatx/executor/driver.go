package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"

	"github.com/solanatoolkit/txbuilder/internal/logger"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
	"github.com/solanatoolkit/txbuilder/pkg/solanatx"
)

// PriorityFeeConfig is one (compute-unit price, compute-unit limit)
// pair tried during escalation. Applying it to a transaction's
// compute-budget instructions is the external executor's
// responsibility (this driver only threads the configuration through
// for logging and simulation); callers who want the compute-budget
// instructions baked into the pack itself add them via the builder
// like any other instruction, targeting the native Compute Budget
// program (ComputeBudget111111111111111111111111111111).
type PriorityFeeConfig struct {
	ComputeUnitPrice uint64
	ComputeUnitLimit uint32
}

// PriorityFeePolicy is a non-empty, ordered sequence of fee tiers
// tried in escalation order.
type PriorityFeePolicy []PriorityFeeConfig

// Validate reports an error if the policy is empty — traversing an
// empty policy is a programming error, not a runtime condition to
// recover from.
func (p PriorityFeePolicy) Validate() error {
	if len(p) == 0 {
		return errors.New("priority fee policy must contain at least one tier")
	}
	return nil
}

// ErrPolicyTooShortForSimulation is returned by NewSimulationLoop when
// a policy has fewer than two tiers: the simulator always submits the
// second tier, so a one-tier policy can never be simulated.
var ErrPolicyTooShortForSimulation = errors.New("priority fee policy must have at least 2 tiers to support simulation")

// ExecutionData bundles everything one transaction's execution needs:
// which endpoint to hit, which fee tiers to escalate through, and the
// prepared (unsigned) transaction to sign per attempt. A fresh UUID is
// minted on construction and threaded through every log line and
// aggregated error for this execution.
type ExecutionData struct {
	RPCURL      string
	Policy      PriorityFeePolicy
	Prepared    *solanatx.PreparedTransaction
	Description string
	UUID        string
}

// NewExecutionData mints a fresh UUID and validates the supplied
// policy.
func NewExecutionData(rpcURL string, policy PriorityFeePolicy, prepared *solanatx.PreparedTransaction, description string) (ExecutionData, error) {
	if err := policy.Validate(); err != nil {
		return ExecutionData{}, err
	}
	return ExecutionData{
		RPCURL:      rpcURL,
		Policy:      policy,
		Prepared:    prepared,
		Description: description,
		UUID:        uuid.NewString(),
	}, nil
}

// BuildResult is one item of a candidate stream: either a signed,
// ready-to-submit versioned transaction, or the error encountered
// while building it (typically a signing failure).
type BuildResult struct {
	Tx  *solanatx.VersionedTransaction
	Err error
}

// Executor is the external collaborator this driver hands candidate
// streams to. It is consumed, never implemented, by this package;
// production callers wire in an adapter over the real JSON-RPC
// send-and-confirm loop, tests wire in a fake.
type Executor interface {
	ExecuteTransaction(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error)
}

// CandidateStream lazily yields one BuildResult per tier of data's
// policy, in order. Each yield reads the blockhash cache, asks the
// prepared transaction to sign under that blockhash, then returns. The
// channel closes after the last tier; it is not restartable — build a
// fresh stream to retry from the top.
func CandidateStream(ctx context.Context, cache *BlockhashCache, m *metrics.Metrics, data ExecutionData) <-chan BuildResult {
	out := make(chan BuildResult)

	go func() {
		defer close(out)

		for tier, cfg := range data.Policy {
			log := logger.FromContext(ctx).With().
				Str("tx_uuid", data.UUID).
				Int("priority_fee_tier", tier).
				Str("rpc_url", data.RPCURL).
				Logger()

			blockhash, err := cache.GetLatestBlockhash(ctx, data.RPCURL)
			if err != nil {
				log.Warn().Err(err).Msg("executor.blockhash_fetch_failed")
				if !yield(ctx, out, BuildResult{Err: fmt.Errorf("fetch blockhash: %w", err)}) {
					return
				}
				continue
			}

			signed, err := data.Prepared.Sign(blockhash)
			if err != nil {
				log.Warn().Err(err).Msg("executor.sign_failed")
				if !yield(ctx, out, BuildResult{Err: fmt.Errorf("sign candidate: %w", err)}) {
					return
				}
				continue
			}

			vtx := &solanatx.VersionedTransaction{Transaction: signed}
			m.ObserveFeeTierEscalation(tier)
			log.Debug().Uint64("compute_unit_price", cfg.ComputeUnitPrice).Msg("executor.candidate_built")

			if !yield(ctx, out, BuildResult{Tx: vtx}) {
				return
			}
		}
	}()

	return out
}

func yield(ctx context.Context, out chan<- BuildResult, result BuildResult) bool {
	select {
	case out <- result:
		return true
	case <-ctx.Done():
		return false
	}
}
