package executor

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/solanatoolkit/txbuilder/internal/logger"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
)

// RunSimulationLoop starts a loop structurally identical to SpawnLoop,
// except each batch entry is simulated rather than submitted live: the
// second priority-fee tier of its policy (a representative
// non-minimum fee, by design) is built and handed to
// Executor.SimulateTransaction. RunSimulationLoop itself validates no
// policy and always returns a nil error; NewSimulationLoop checks a
// known set of entries before starting it. An entry whose policy has
// fewer than two tiers that reaches the running loop is logged and
// skipped.
func RunSimulationLoop(ctx context.Context, cfg SpawnConfig) (*Loop, error) {
	outer := cfg.OuterConcurrency
	if outer <= 0 {
		outer = SpawnOuterConcurrency
	}

	input := make(chan []ExecutionData, SpawnChannelDepth)
	done := make(chan struct{})
	sem := semaphore.NewWeighted(int64(outer))

	go func() {
		defer close(done)
		var wg sync.WaitGroup

		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case batch, ok := <-input:
				if !ok {
					wg.Wait()
					return
				}
				if err := sem.Acquire(ctx, 1); err != nil {
					wg.Wait()
					return
				}
				wg.Add(1)
				go func(batch []ExecutionData) {
					defer wg.Done()
					defer sem.Release(1)
					simulateBatch(ctx, cfg, batch)
				}(batch)
			}
		}
	}()

	return &Loop{Input: input, done: done}, nil
}

// NewSimulationLoop validates every entry's policy before handing back
// a startable loop, so a mis-configured batch fails at construction
// rather than mid-run.
func NewSimulationLoop(ctx context.Context, cfg SpawnConfig, data []ExecutionData) (*Loop, error) {
	for _, entry := range data {
		if len(entry.Policy) < 2 {
			return nil, ErrPolicyTooShortForSimulation
		}
	}
	return RunSimulationLoop(ctx, cfg)
}

func simulateBatch(ctx context.Context, cfg SpawnConfig, batch []ExecutionData) {
	log := logger.FromContext(ctx)

	for index, entry := range batch {
		humanIndex := index + 1
		entryLog := log.With().Str("tx_uuid", entry.UUID).Int("ordinal", humanIndex).Logger()

		if len(entry.Policy) < 2 {
			entryLog.Error().Msg("executor.simulation_policy_too_short")
			continue
		}
		tier := entry.Policy[1]
		entryLog = entryLog.With().Uint64("compute_unit_price", tier.ComputeUnitPrice).Logger()

		blockhash, err := cfg.Cache.GetLatestBlockhash(ctx, entry.RPCURL)
		if err != nil {
			entryLog.Warn().Err(err).Msg("executor.simulation_blockhash_failed")
			continue
		}

		signed, err := entry.Prepared.SignVersioned(blockhash)
		if err != nil {
			entryLog.Warn().Err(err).Msg("executor.simulation_sign_failed")
			continue
		}

		result, err := cfg.Executor.SimulateTransaction(ctx, signed)
		if err != nil {
			entryLog.Error().Err(err).Msg("executor.simulation_failed")
			continue
		}

		logSimulationResult(entryLog, result)
		cfg.Metrics.ObserveFeeTierEscalation(1)
	}
}

// logSimulationResult reports a simulation's outcome at the
// appropriate level: failed-on-chain simulations (a non-nil Err inside
// the RPC response) log as a warning, successful ones as debug with
// consumed compute units.
func logSimulationResult(log zerolog.Logger, result *rpc.SimulateTransactionResult) {
	if result == nil {
		return
	}
	if result.Err != nil {
		log.Warn().Interface("simulation_error", result.Err).Strs("logs", result.Logs).Msg("executor.simulation_reverted")
		return
	}
	unitsConsumed := uint64(0)
	if result.UnitsConsumed != nil {
		unitsConsumed = *result.UnitsConsumed
	}
	log.Debug().Uint64("units_consumed", unitsConsumed).Msg("executor.simulation_ok")
}
