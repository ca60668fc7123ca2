package executor

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solanatoolkit/txbuilder/internal/metrics"
	"github.com/solanatoolkit/txbuilder/pkg/solanatx"
)

func newTestExecutionData(t *testing.T, policy PriorityFeePolicy) ExecutionData {
	t.Helper()
	payerKey, _ := solana.NewRandomPrivateKey()
	recipient, _ := solana.NewRandomPrivateKey()
	payer := solanatx.NewLocalSigner(payerKey)

	b, err := solanatx.Unlimited(payer)
	if err != nil {
		t.Fatalf("Unlimited: %v", err)
	}
	ix := system.NewTransferInstruction(1, b.FeePayer(), recipient.PublicKey()).Build()
	if err := b.AddInstruction(ix); err != nil {
		t.Fatalf("AddInstruction: %v", err)
	}
	b.FinishInstructionPack()

	tx, ok, err := b.Sequence().Next()
	if err != nil || !ok {
		t.Fatalf("Sequence.Next: ok=%v err=%v", ok, err)
	}

	data, err := NewExecutionData("https://example.invalid", policy, tx, "test transfer")
	if err != nil {
		t.Fatalf("NewExecutionData: %v", err)
	}
	return data
}

func newCandidateTestCache(t *testing.T) *BlockhashCache {
	t.Helper()
	server := newFakeRPCServer(t, "11111111111111111111111111111111", new(int64))
	t.Cleanup(server.Close)
	cache := NewBlockhashCache(nil, metrics.New(prometheus.NewRegistry()))
	cache.newClient = func(url string) *rpc.Client {
		return rpc.New(server.URL)
	}
	return cache
}

func TestCandidateStreamYieldsOnePerPolicyTier(t *testing.T) {
	policy := PriorityFeePolicy{
		{ComputeUnitPrice: 1, ComputeUnitLimit: 200000},
		{ComputeUnitPrice: 1000, ComputeUnitLimit: 200000},
		{ComputeUnitPrice: 10000, ComputeUnitLimit: 200000},
	}
	data := newTestExecutionData(t, policy)
	cache := newCandidateTestCache(t)
	m := metrics.New(prometheus.NewRegistry())

	stream := CandidateStream(context.Background(), cache, m, data)

	count := 0
	for result := range stream {
		if result.Err != nil {
			t.Fatalf("unexpected candidate error: %v", result.Err)
		}
		if result.Tx == nil {
			t.Fatal("expected non-nil candidate transaction")
		}
		count++
	}
	if count != len(policy) {
		t.Fatalf("expected %d candidates, got %d", len(policy), count)
	}
}

func TestCandidateStreamStopsOnContextCancellation(t *testing.T) {
	policy := PriorityFeePolicy{
		{ComputeUnitPrice: 1, ComputeUnitLimit: 200000},
		{ComputeUnitPrice: 1000, ComputeUnitLimit: 200000},
	}
	data := newTestExecutionData(t, policy)
	cache := newCandidateTestCache(t)
	m := metrics.New(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := CandidateStream(ctx, cache, m, data)
	for range stream {
		// Drain; a cancelled context should yield zero or partial
		// results without the goroutine leaking (channel always closes).
	}
}

type fakeExecutor struct {
	executeFunc  func(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error)
	simulateFunc func(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error)
}

func (f *fakeExecutor) ExecuteTransaction(ctx context.Context, stream <-chan BuildResult) (solana.Signature, error) {
	return f.executeFunc(ctx, stream)
}

func (f *fakeExecutor) SimulateTransaction(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
	return f.simulateFunc(ctx, tx)
}

func takeFirstSignature(stream <-chan BuildResult) (solana.Signature, error) {
	for result := range stream {
		if result.Err != nil {
			return solana.Signature{}, result.Err
		}
		return result.Tx.Signature(), nil
	}
	return solana.Signature{}, nil
}

func TestPriorityFeePolicyValidateRejectsEmpty(t *testing.T) {
	var policy PriorityFeePolicy
	if err := policy.Validate(); err == nil {
		t.Fatal("expected error for empty policy")
	}
}

func TestNewExecutionDataRejectsEmptyPolicy(t *testing.T) {
	payerKey, _ := solana.NewRandomPrivateKey()
	recipient, _ := solana.NewRandomPrivateKey()
	payer := solanatx.NewLocalSigner(payerKey)
	b, _ := solanatx.Unlimited(payer)
	ix := system.NewTransferInstruction(1, b.FeePayer(), recipient.PublicKey()).Build()
	_ = b.AddInstruction(ix)
	b.FinishInstructionPack()
	tx, _, _ := b.Sequence().Next()

	_, err := NewExecutionData("https://example.invalid", nil, tx, "")
	if err == nil {
		t.Fatal("expected error for nil policy")
	}
}
