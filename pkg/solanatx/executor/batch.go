package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/solanatoolkit/txbuilder/internal/logger"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
)

// instrumentedStream wraps src so the caller can observe how many
// candidates the downstream Executor actually consumed before
// returning, without altering the stream's contents or ordering.
func instrumentedStream(src <-chan BuildResult) (<-chan BuildResult, *int64) {
	var count int64
	out := make(chan BuildResult)
	go func() {
		defer close(out)
		for v := range src {
			out <- v
			atomic.AddInt64(&count, 1)
		}
	}()
	return out, &count
}

func executionOutcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// DefaultParallelLimit is the default number of concurrent executions
// allowed by ExecuteInParallel.
const DefaultParallelLimit = 30

// ExecuteInSequence runs each entry of data through executor in order,
// preserving order across the completion events it observes. With
// failOnFirstError, the first failure aborts and is returned
// immediately; otherwise every entry runs and all failures are
// aggregated into the returned error.
func ExecuteInSequence(ctx context.Context, cache *BlockhashCache, m *metrics.Metrics, exec Executor, data []ExecutionData, failOnFirstError bool) error {
	m.ObserveBatch(len(data))
	var errs ExecutionErrors

	for index, entry := range data {
		humanIndex := index + 1
		log := logger.FromContext(ctx).With().Str("tx_uuid", entry.UUID).Int("ordinal", humanIndex).Logger()
		log.Debug().Int("batch_size", len(data)).Msg("executor.sequence_building")

		stream, attempts := instrumentedStream(CandidateStream(ctx, cache, m, entry))
		start := time.Now()
		sig, err := exec.ExecuteTransaction(ctx, stream)
		m.ObserveExecution(executionOutcome(err), time.Since(start), int(atomic.LoadInt64(attempts)))
		if err != nil {
			desc := fmt.Sprintf("transaction %d/%d (%s) sequential execution failed", humanIndex, len(data), entry.UUID)
			log.Error().Err(err).Msg("executor.sequence_failed")
			errs.Add(err, entry.UUID, humanIndex, desc)
			if failOnFirstError {
				return &errs
			}
			continue
		}
		log.Debug().Str("signature", sig.String()).Msg("executor.sequence_succeeded")
	}

	return errs.ErrorOrNil()
}

// ExecuteInParallel runs every entry of data through executor
// concurrently, bounded by limit permits (DefaultParallelLimit when
// limit <= 0). All entries run to completion; errors are aggregated
// and returned together. There is no inter-entry ordering guarantee;
// within one entry the candidate stream is still traversed in policy
// order.
func ExecuteInParallel(ctx context.Context, cache *BlockhashCache, m *metrics.Metrics, exec Executor, data []ExecutionData, limit int) error {
	if limit <= 0 {
		limit = DefaultParallelLimit
	}
	m.ObserveBatch(len(data))

	sem := semaphore.NewWeighted(int64(limit))
	type outcome struct {
		humanIndex int
		entry      ExecutionData
		err        error
	}
	results := make(chan outcome, len(data))

	for index, entry := range data {
		humanIndex := index + 1
		entry := entry
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- outcome{humanIndex: humanIndex, entry: entry, err: err}
			continue
		}
		go func() {
			defer sem.Release(1)
			m.IncInFlight()
			defer m.DecInFlight()

			stream, attempts := instrumentedStream(CandidateStream(ctx, cache, m, entry))
			start := time.Now()
			_, err := exec.ExecuteTransaction(ctx, stream)
			m.ObserveExecution(executionOutcome(err), time.Since(start), int(atomic.LoadInt64(attempts)))
			results <- outcome{humanIndex: humanIndex, entry: entry, err: err}
		}()
	}

	var errs ExecutionErrors
	for i := 0; i < len(data); i++ {
		result := <-results
		if result.err != nil {
			desc := fmt.Sprintf("transaction %d/%d (%s) parallel execution failed", result.humanIndex, len(data), result.entry.UUID)
			logger.FromContext(ctx).Error().Err(result.err).Str("tx_uuid", result.entry.UUID).Msg("executor.parallel_failed")
			errs.Add(result.err, result.entry.UUID, result.humanIndex, desc)
		}
	}

	return errs.ErrorOrNil()
}

// SendExecutionDataCombined is the Go analogue of the reference
// design's combined-send helper: it sends the populated data slice it
// was handed through the sequential path and returns the resulting
// error, never silently substituting an empty batch.
func SendExecutionDataCombined(ctx context.Context, cache *BlockhashCache, m *metrics.Metrics, exec Executor, data []ExecutionData) error {
	return ExecuteInSequence(ctx, cache, m, exec, data, false)
}
