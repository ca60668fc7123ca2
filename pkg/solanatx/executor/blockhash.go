// Package executor drives signed-transaction candidates, one per
// priority-fee tier, through an externally supplied executor, with
// blockhash caching, bounded concurrency, and structured error
// aggregation.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solanatoolkit/txbuilder/internal/cacheutil"
	"github.com/solanatoolkit/txbuilder/internal/circuitbreaker"
	"github.com/solanatoolkit/txbuilder/internal/metrics"
	"github.com/solanatoolkit/txbuilder/internal/rpcutil"
)

// BlockhashCacheTTL is the memoization window for a fetched blockhash.
const BlockhashCacheTTL = 10 * time.Second

type blockhashEntry struct {
	mu    sync.RWMutex
	value cacheutil.CachedValue[solana.Hash]
	valid bool
}

// BlockhashCache memoizes the latest finalized blockhash per RPC
// endpoint URL. Concurrent fetches for the same URL collapse onto one
// in-flight request: the second caller blocks on that URL's entry
// lock and observes the now-populated cache rather than issuing a
// redundant RPC call.
type BlockhashCache struct {
	ttl       time.Duration
	entries   sync.Map // string -> *blockhashEntry
	breakers  *circuitbreaker.Manager
	metrics   *metrics.Metrics
	newClient func(url string) *rpc.Client
}

// NewBlockhashCache constructs a cache wrapping blockhash fetches in
// breakers (may be nil to disable circuit breaking) and reporting
// through m (may be nil).
func NewBlockhashCache(breakers *circuitbreaker.Manager, m *metrics.Metrics) *BlockhashCache {
	return &BlockhashCache{
		ttl:       BlockhashCacheTTL,
		breakers:  breakers,
		metrics:   m,
		newClient: rpc.New,
	}
}

func (c *BlockhashCache) entryFor(url string) *blockhashEntry {
	entry, _ := c.entries.LoadOrStore(url, &blockhashEntry{})
	return entry.(*blockhashEntry)
}

// GetLatestBlockhash returns the cached blockhash for rpcURL,
// refreshing it via RPC if stale or absent. Fetch failures are never
// cached.
func (c *BlockhashCache) GetLatestBlockhash(ctx context.Context, rpcURL string) (solana.Hash, error) {
	entry := c.entryFor(rpcURL)
	servedFromCache := false

	hash, err := cacheutil.ReadThrough(
		&entry.mu,
		func(now time.Time) (solana.Hash, bool) {
			if !entry.valid {
				return solana.Hash{}, false
			}
			if now.Sub(entry.value.FetchedAt) >= c.ttl {
				return solana.Hash{}, false
			}
			servedFromCache = true
			return entry.value.Value, true
		},
		func(now time.Time) (solana.Hash, error) {
			hash, err := c.fetch(ctx, rpcURL)
			if err != nil {
				return solana.Hash{}, err
			}
			entry.value = cacheutil.CachedValue[solana.Hash]{Value: hash, FetchedAt: now}
			entry.valid = true
			return hash, nil
		},
	)

	if servedFromCache {
		c.metrics.ObserveBlockhashCacheHit()
	} else if err == nil {
		c.metrics.ObserveBlockhashCacheMiss()
	}
	return hash, err
}

func (c *BlockhashCache) fetch(ctx context.Context, rpcURL string) (solana.Hash, error) {
	client := c.newClient(rpcURL)

	fetch := func() (*rpc.GetLatestBlockhashResult, error) {
		start := time.Now()
		result, err := rpcutil.WithRetry(ctx, func() (*rpc.GetLatestBlockhashResult, error) {
			return client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		})
		c.metrics.ObserveRPCCall("getLatestBlockhash", time.Since(start), err)
		return result, err
	}

	if c.breakers == nil {
		result, err := fetch()
		if err != nil {
			return solana.Hash{}, err
		}
		return result.Value.Blockhash, nil
	}

	raw, err := c.breakers.Execute(circuitbreaker.ServiceSolanaRPC, func() (interface{}, error) {
		return fetch()
	})
	if err != nil {
		return solana.Hash{}, err
	}
	return raw.(*rpc.GetLatestBlockhashResult).Value.Blockhash, nil
}
