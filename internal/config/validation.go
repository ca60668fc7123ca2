package config

import (
	"errors"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}

	if c.RPC.Commitment == "" {
		c.RPC.Commitment = string(rpc.CommitmentFinalized)
	}
	switch strings.ToLower(c.RPC.Commitment) {
	case "processed", "confirmed", "finalized", "finalised":
	default:
		c.RPC.Commitment = string(rpc.CommitmentFinalized)
	}

	if c.Execution.ParallelLimit <= 0 {
		c.Execution.ParallelLimit = 30
	}
	if c.Execution.SpawnOuterConcurrency <= 0 {
		c.Execution.SpawnOuterConcurrency = 4
	}
	if c.Execution.SpawnChannelDepth <= 0 {
		c.Execution.SpawnChannelDepth = 2
	}
	if c.BlockhashCache.TTL.Duration <= 0 {
		c.BlockhashCache.TTL = Duration{Duration: 10 * time.Second}
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	if c.RPC.URL == "" {
		errs = append(errs, "rpc.url is required")
	}
	if len(c.Execution.PriorityFeePolicy) == 0 {
		errs = append(errs, "execution.priority_fee_policy must contain at least one tier")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
