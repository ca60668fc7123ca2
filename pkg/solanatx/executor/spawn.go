package executor

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/solanatoolkit/txbuilder/internal/logger"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
)

// SpawnChannelDepth is the buffered capacity of a spawned loop's input
// channel.
const SpawnChannelDepth = 2

// SpawnOuterConcurrency is the default number of batches a spawned
// loop runs concurrently.
const SpawnOuterConcurrency = 4

// SpawnConfig configures a long-running loop that drains batches of
// ExecutionData from a channel and executes each through the
// sequential path.
type SpawnConfig struct {
	Cache             *BlockhashCache
	Metrics           *metrics.Metrics
	Executor          Executor
	OuterConcurrency  int
	ExitOnError       bool
	ExitFunc          func(code int)
	FailOnFirstInBatch bool
}

// Loop is a running spawned-executor (or simulator) loop. Close its
// input channel to begin a graceful drain; Wait blocks until every
// in-flight batch has completed and the loop has exited.
type Loop struct {
	Input chan<- []ExecutionData
	done  chan struct{}
}

// Wait blocks until the loop has fully drained and exited.
func (l *Loop) Wait() {
	<-l.done
}

// SpawnLoop starts a loop that consumes batches from a channel of
// capacity SpawnChannelDepth, running each through ExecuteInSequence,
// itself bounded by an outer semaphore (cfg.OuterConcurrency,
// SpawnOuterConcurrency when unset). On batch failure: if
// cfg.ExitOnError, the process aborts via cfg.ExitFunc (os.Exit(1)
// when unset); otherwise the failure is logged and the loop continues.
// Closing the returned channel drains all in-flight permits before the
// loop exits.
func SpawnLoop(ctx context.Context, cfg SpawnConfig) *Loop {
	outer := cfg.OuterConcurrency
	if outer <= 0 {
		outer = SpawnOuterConcurrency
	}
	exitFunc := cfg.ExitFunc
	if exitFunc == nil {
		exitFunc = os.Exit
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

					err := ExecuteInSequence(ctx, cfg.Cache, cfg.Metrics, cfg.Executor, batch, cfg.FailOnFirstInBatch)
					if err != nil {
						log := logger.FromContext(ctx)
						log.Error().Err(err).Int("batch_size", len(batch)).Msg("executor.spawn_batch_failed")
						if cfg.ExitOnError {
							exitFunc(1)
						}
						return
					}
					logger.FromContext(ctx).Debug().Int("batch_size", len(batch)).Msg("executor.spawn_batch_succeeded")
				}(batch)
			}
		}
	}()

	return &Loop{Input: input, done: done}
}
