// Command txbuilder-demo builds, signs, and sends a single SOL transfer
// (packed with its compute-unit limit and price instructions) through
// the executor package end to end:
// config, logger, circuit breaker, blockhash cache, builder, and a
// thin live Executor wired to a single RPC endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"

	"github.com/solanatoolkit/txbuilder/internal/circuitbreaker"
	"github.com/solanatoolkit/txbuilder/internal/config"
	"github.com/solanatoolkit/txbuilder/internal/logger"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
	"github.com/solanatoolkit/txbuilder/pkg/solanatx"
	"github.com/solanatoolkit/txbuilder/pkg/solanatx/executor"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to txbuilder config file (optional, falls back to defaults + env)")
		envPath   = flag.String("env", ".env", "path to .env file to load before config resolution")
		keypair   = flag.String("keypair", "", "path to a Solana keypair JSON file (fee payer)")
		recipient = flag.String("recipient", "", "recipient public key, base58")
		lamports  = flag.Uint64("lamports", 1, "lamports to transfer")
		simulate  = flag.Bool("simulate-only", false, "simulate instead of submitting")
	)
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: load %s: %v\n", *envPath, err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "txbuilder-demo",
		Version:     "dev",
		Environment: cfg.Logging.Environment,
	})
	ctx := logger.WithContext(context.Background(), baseLogger)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *keypair == "" || *recipient == "" {
		baseLogger.Fatal().Msg("both -keypair and -recipient are required")
	}

	payerKey, err := solana.PrivateKeyFromSolanaKeygenFile(*keypair)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("load keypair")
	}
	recipientPub, err := solana.PublicKeyFromBase58(*recipient)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("parse recipient")
	}

	m := metrics.New(nil)

	payer := solanatx.NewLocalSigner(payerKey)
	builder, err := solanatx.Unlimited(payer)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("construct builder")
	}
	builder.SetMetrics(m)

	baselineTier := cfg.Execution.PriorityFeePolicy[0]
	if err := builder.AddInstruction(computeUnitLimitInstruction(baselineTier.ComputeUnitLimit)); err != nil {
		baseLogger.Fatal().Err(err).Msg("add compute unit limit instruction")
	}
	if err := builder.AddInstruction(computeUnitPriceInstruction(baselineTier.ComputeUnitPrice)); err != nil {
		baseLogger.Fatal().Err(err).Msg("add compute unit price instruction")
	}

	ix := system.NewTransferInstruction(*lamports, builder.FeePayer(), recipientPub).Build()
	if err := builder.AddInstruction(ix); err != nil {
		baseLogger.Fatal().Err(err).Msg("add transfer instruction")
	}
	builder.FinishInstructionPack()

	tx, ok, err := builder.Sequence().Next()
	if err != nil || !ok {
		baseLogger.Fatal().Err(err).Bool("ok", ok).Msg("materialize prepared transaction")
	}

	data, err := executor.NewExecutionData(cfg.RPC.URL, policyFromConfig(cfg), tx, "txbuilder-demo transfer")
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("construct execution data")
	}

	breakers := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker, m)
	cache := executor.NewBlockhashCache(breakers, m)
	exec := newLiveExecutor(cfg.RPC.URL)

	if *simulate {
		loop, err := executor.NewSimulationLoop(ctx, executor.SpawnConfig{
			Cache:    cache,
			Metrics:  m,
			Executor: exec,
		}, []executor.ExecutionData{data})
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("construct simulation loop")
		}
		loop.Input <- []executor.ExecutionData{data}
		close(loop.Input)
		loop.Wait()
		return
	}

	if err := executor.SendExecutionDataCombined(ctx, cache, m, exec, []executor.ExecutionData{data}); err != nil {
		baseLogger.Fatal().Err(err).Msg("demo.execution_failed")
	}
	logger.FromContext(ctx).Info().Msg("demo.execution_succeeded")
}

func policyFromConfig(cfg *config.Config) executor.PriorityFeePolicy {
	policy := make(executor.PriorityFeePolicy, len(cfg.Execution.PriorityFeePolicy))
	for i, tier := range cfg.Execution.PriorityFeePolicy {
		policy[i] = executor.PriorityFeeConfig{
			ComputeUnitPrice: tier.ComputeUnitPrice,
			ComputeUnitLimit: tier.ComputeUnitLimit,
		}
	}
	return policy
}

// liveExecutor submits candidates off the stream in order via the raw
// JSON-RPC send call and returns the signature of the first one the
// endpoint accepts, skipping build errors. It does not poll for
// confirmation: landing status is the caller's concern, out of scope
// for this library.
type liveExecutor struct {
	client *rpc.Client
}

func newLiveExecutor(rpcURL string) *liveExecutor {
	return &liveExecutor{client: rpc.New(rpcURL)}
}

func (e *liveExecutor) ExecuteTransaction(ctx context.Context, stream <-chan executor.BuildResult) (solana.Signature, error) {
	var lastErr error
	for candidate := range stream {
		if candidate.Err != nil {
			lastErr = candidate.Err
			continue
		}
		sig, err := e.client.SendTransactionWithOpts(ctx, candidate.Tx.Transaction, rpc.TransactionOpts{
			SkipPreflight: false,
		})
		if err != nil {
			lastErr = err
			continue
		}
		return sig, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidates produced")
	}
	return solana.Signature{}, lastErr
}

func (e *liveExecutor) SimulateTransaction(ctx context.Context, tx *solanatx.VersionedTransaction) (*rpc.SimulateTransactionResult, error) {
	result, err := e.client.SimulateTransaction(ctx, tx.Transaction)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// computeBudgetProgramID is the native Compute Budget program.
var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// computeUnitLimitInstruction builds a SetComputeUnitLimit instruction
// (discriminator 2 followed by a little-endian u32).
func computeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	data[1] = byte(units)
	data[2] = byte(units >> 8)
	data[3] = byte(units >> 16)
	data[4] = byte(units >> 24)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// computeUnitPriceInstruction builds a SetComputeUnitPrice instruction
// (discriminator 3 followed by a little-endian u64 microlamports price).
func computeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	for i := 0; i < 8; i++ {
		data[1+i] = byte(microLamports >> (8 * i))
	}
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
