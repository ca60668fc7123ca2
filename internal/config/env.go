package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use TXBUILDER_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.RPC.URL, "TXBUILDER_RPC_URL")
	setIfEnv(&c.RPC.Commitment, "TXBUILDER_RPC_COMMITMENT")

	setIntIfEnv(&c.Execution.MaxTransactionSizeBytes, "TXBUILDER_MAX_TRANSACTION_SIZE_BYTES")
	setIntIfEnv(&c.Execution.ParallelLimit, "TXBUILDER_PARALLEL_LIMIT")
	setIntIfEnv(&c.Execution.SpawnOuterConcurrency, "TXBUILDER_SPAWN_OUTER_CONCURRENCY")
	setIntIfEnv(&c.Execution.SpawnChannelDepth, "TXBUILDER_SPAWN_CHANNEL_DEPTH")
	setBoolIfEnv(&c.Execution.ExitOnError, "TXBUILDER_EXIT_ON_ERROR")

	setDurationIfEnv(&c.BlockhashCache.TTL, "TXBUILDER_BLOCKHASH_CACHE_TTL")

	setIfEnv(&c.Logging.Level, "TXBUILDER_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "TXBUILDER_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "TXBUILDER_ENVIRONMENT")

	setBoolIfEnv(&c.CircuitBreaker.Enabled, "TXBUILDER_CIRCUIT_BREAKER_ENABLED")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}
