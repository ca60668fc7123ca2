package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	RPC            RPCConfig            `yaml:"rpc"`
	Execution      ExecutionConfig      `yaml:"execution"`
	BlockhashCache BlockhashCacheConfig `yaml:"blockhash_cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// RPCConfig holds the JSON-RPC endpoint(s) this module submits
// transactions and fetches blockhashes against.
type RPCConfig struct {
	URL        string `yaml:"url"`
	Commitment string `yaml:"commitment"` // processed | confirmed | finalized (default: finalized)
}

// ExecutionConfig holds the bounds governing batch execution: pack
// size, parallelism, and priority-fee escalation tiers.
type ExecutionConfig struct {
	MaxTransactionSizeBytes int                 `yaml:"max_transaction_size_bytes"` // 0 = unlimited pack
	ParallelLimit            int                `yaml:"parallel_limit"`             // concurrent ExecuteInParallel permits (default: 30)
	SpawnOuterConcurrency    int                `yaml:"spawn_outer_concurrency"`    // concurrent batches a spawned loop runs (default: 4)
	SpawnChannelDepth        int                `yaml:"spawn_channel_depth"`        // buffered capacity of a spawned loop's input channel (default: 2)
	ExitOnError              bool               `yaml:"exit_on_error"`              // abort the process on a spawn-loop batch failure
	PriorityFeePolicy        []PriorityFeeTier  `yaml:"priority_fee_policy"`        // fee tiers tried in escalation order
}

// PriorityFeeTier is one compute-unit price/limit pair tried during
// priority-fee escalation.
type PriorityFeeTier struct {
	ComputeUnitPrice uint64 `yaml:"compute_unit_price"`
	ComputeUnitLimit uint32 `yaml:"compute_unit_limit"`
}

// BlockhashCacheConfig holds the read-through blockhash cache's TTL.
type BlockhashCacheConfig struct {
	TTL Duration `yaml:"ttl"` // default: 10s
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// CircuitBreakerConfig holds circuit breaker configuration for the
// Solana RPC endpoint. Prevents cascading failures by failing fast
// when the endpoint is degraded.
type CircuitBreakerConfig struct {
	Enabled   bool                 `yaml:"enabled"`    // Enable circuit breaker (default: true)
	SolanaRPC BreakerServiceConfig `yaml:"solana_rpc"` // Solana RPC circuit breaker
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // Stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // Open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Consecutive failures to trip (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // Failure ratio to trip 0.0-1.0 (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before checking ratio (default: 10)
}
