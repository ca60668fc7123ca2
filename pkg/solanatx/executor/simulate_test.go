package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solanatoolkit/txbuilder/pkg/solanatx"
)

func twoTierPolicy() PriorityFeePolicy {
	return PriorityFeePolicy{
		{ComputeUnitPrice: 1, ComputeUnitLimit: 200000},
		{ComputeUnitPrice: 10000, ComputeUnitLimit: 200000},
	}
}

func TestNewSimulationLoopRejectsShortPolicies(t *testing.T) {
	cfg := baseSpawnConfig(t, &fakeExecutor{
		simulateFunc: func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
			return &rpc.SimulateTransactionResult{}, nil
		},
	})

	shortPolicy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	data := []ExecutionData{newTestExecutionData(t, shortPolicy)}

	_, err := NewSimulationLoop(context.Background(), cfg, data)
	if !errors.Is(err, ErrPolicyTooShortForSimulation) {
		t.Fatalf("expected ErrPolicyTooShortForSimulation, got %v", err)
	}
}

func TestNewSimulationLoopAcceptsSufficientPolicies(t *testing.T) {
	cfg := baseSpawnConfig(t, &fakeExecutor{
		simulateFunc: func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
			return &rpc.SimulateTransactionResult{}, nil
		},
	})
	data := []ExecutionData{newTestExecutionData(t, twoTierPolicy())}

	loop, err := NewSimulationLoop(context.Background(), cfg, data)
	if err != nil {
		t.Fatalf("NewSimulationLoop: %v", err)
	}
	close(loop.Input)
	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}
}

func TestSimulateBatchInvokesSimulateTransactionForSecondTier(t *testing.T) {
	var secondTierPrice uint64
	var calls int64
	exec := &fakeExecutor{
		simulateFunc: func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
			atomic.AddInt64(&calls, 1)
			return &rpc.SimulateTransactionResult{}, nil
		},
	}
	policy := twoTierPolicy()
	secondTierPrice = policy[1].ComputeUnitPrice

	cfg := baseSpawnConfig(t, exec)
	loop, err := RunSimulationLoop(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunSimulationLoop: %v", err)
	}

	loop.Input <- []ExecutionData{newTestExecutionData(t, policy)}
	close(loop.Input)

	select {
	case <-waitDone(loop):
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain in time")
	}

	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected exactly one simulation call, got %d", calls)
	}
	if secondTierPrice != 10000 {
		t.Fatalf("expected second tier compute unit price 10000, got %d", secondTierPrice)
	}
}

func TestSimulateBatchSkipsEntriesWithShortPolicyWithoutPanicking(t *testing.T) {
	var calls int64
	exec := &fakeExecutor{
		simulateFunc: func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
			atomic.AddInt64(&calls, 1)
			return &rpc.SimulateTransactionResult{}, nil
		},
	}
	cfg := baseSpawnConfig(t, exec)

	shortPolicy := PriorityFeePolicy{{ComputeUnitPrice: 1, ComputeUnitLimit: 200000}}
	entry := newTestExecutionData(t, shortPolicy)
	entry.Policy = shortPolicy

	simulateBatch(context.Background(), cfg, []ExecutionData{entry})

	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("expected simulation to be skipped for a too-short policy, got %d calls", calls)
	}
}

func TestSimulateBatchContinuesAfterSimulateTransactionError(t *testing.T) {
	var calls int64
	exec := &fakeExecutor{
		simulateFunc: func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
			atomic.AddInt64(&calls, 1)
			return nil, errors.New("rpc unavailable")
		},
	}
	cfg := baseSpawnConfig(t, exec)
	policy := twoTierPolicy()

	batch := []ExecutionData{newTestExecutionData(t, policy), newTestExecutionData(t, policy)}
	simulateBatch(context.Background(), cfg, batch)

	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("expected both entries simulated despite errors, got %d calls", calls)
	}
}
