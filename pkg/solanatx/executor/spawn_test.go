package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solanatoolkit/txbuilder/internal/metrics"
)

var errBoom = errors.New("boom")

func baseSpawnConfig(t *testing.T, exec Executor) SpawnConfig {
	t.Helper()
	return SpawnConfig{
		Cache:    newCandidateTestCache(t),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Executor: exec,
	}
}

func TestSpawnLoopProcessesEveryBatchThenDrains(t *testing.T) {
	policy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	var processed int64
	exec := &fakeExecutor{
		executeFunc: func(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error) {
			atomic.AddInt64(&processed, 1)
			sig, err := takeFirstSignature(stream)
			for range stream {
			}
			return sig, err
		},
	}

	cfg := baseSpawnConfig(t, exec)
	loop := SpawnLoop(context.Background(), cfg)

	loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	loop.Input <- []ExecutionData{newTestExecutionData(t, policy), newTestExecutionData(t, policy)}
	close(loop.Input)

	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}

	if atomic.LoadInt64(&processed) != 3 {
		t.Fatalf("expected 3 executions across both batches, got %d", processed)
	}
}

func waitDone(l *Loop) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()
	return done
}

func TestSpawnLoopInvokesExitFuncOnFailureWhenConfigured(t *testing.T) {
	policy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	exec := &fakeExecutor{
		executeFunc: func(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error) {
			for range stream {
			}
			return solana.Signature{}, errBoom
		},
	}

	var exitCode int64 = -1
	cfg := baseSpawnConfig(t, exec)
	cfg.ExitOnError = true
	cfg.ExitFunc = func(code int) { atomic.StoreInt64(&exitCode, int64(code)) }

	loop := SpawnLoop(context.Background(), cfg)
	loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	close(loop.Input)

	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}

	if atomic.LoadInt64(&exitCode) != 1 {
		t.Fatalf("expected exit func invoked with code 1, got %d", exitCode)
	}
}

func TestSpawnLoopContinuesAfterFailureWithoutExitOnError(t *testing.T) {
	policy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	var processed int64
	exec := &fakeExecutor{
		executeFunc: func(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error) {
			n := atomic.AddInt64(&processed, 1)
			for range stream {
			}
			if n == 1 {
				return solana.Signature{}, errBoom
			}
			return solana.Signature{}, nil
		},
	}

	cfg := baseSpawnConfig(t, exec)
	loop := SpawnLoop(context.Background(), cfg)
	loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	close(loop.Input)

	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}

	if atomic.LoadInt64(&processed) != 2 {
		t.Fatalf("expected both batches processed despite first failing, got %d", processed)
	}
}

func TestSpawnLoopRespectsOuterConcurrencyBound(t *testing.T) {
	policy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	var inFlight, maxInFlight int64
	release := make(chan struct{})

	exec := &fakeExecutor{
		executeFunc: func(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error) {
			current := atomic.AddInt64(&inFlight, 1)
			for {
				m := atomic.LoadInt64(&maxInFlight)
				if current <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, current) {
					break
				}
			}
			<-release
			atomic.AddInt64(&inFlight, -1)
			sig, err := takeFirstSignature(stream)
			for range stream {
			}
			return sig, err
		},
	}

	cfg := baseSpawnConfig(t, exec)
	cfg.OuterConcurrency = 2
	loop := SpawnLoop(context.Background(), cfg)

	for i := 0; i < 5; i++ {
		loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	}

	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt64(&maxInFlight) > 2 {
		t.Fatalf("expected at most 2 concurrent batches, observed %d", maxInFlight)
	}
	close(release)
	close(loop.Input)

	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}
}
