// Package blocks maps wall-clock timestamps to block numbers.
package blocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/rs/zerolog"
)

// Resolution policies
const (
	PolicyLinear = "linear" // Estimate from an assumed block time, no verification
	PolicyBinary = "binary" // Binary search over block timestamps
)

type resolveKey struct {
	policy string
	target uint64
}

// Resolver resolves timestamps to blocks and caches what it learns
type Resolver struct {
	client    domain.ChainClient
	blockTime uint64
	retrier   *utils.Retrier
	cacheRepo *clientdata.Repository
	log       zerolog.Logger

	mu       sync.Mutex
	resolved map[resolveKey]uint64
	headers  map[uint64]*domain.BlockHeader
}

// NewResolver creates a resolver.
// cacheRepo is optional - if nil, binary search results are only kept in memory.
func NewResolver(
	client domain.ChainClient,
	blockTimeSeconds int,
	retrier *utils.Retrier,
	cacheRepo *clientdata.Repository,
	log zerolog.Logger,
) *Resolver {
	if blockTimeSeconds < 1 {
		blockTimeSeconds = 1
	}
	return &Resolver{
		client:    client,
		blockTime: uint64(blockTimeSeconds),
		retrier:   retrier,
		cacheRepo: cacheRepo,
		log:       log.With().Str("component", "block_resolver").Logger(),
		resolved:  make(map[resolveKey]uint64),
		headers:   make(map[uint64]*domain.BlockHeader),
	}
}

// BlockTime returns the assumed seconds per block
func (r *Resolver) BlockTime() uint64 {
	return r.blockTime
}

// Resolve maps target (unix seconds) to a block number using policy
func (r *Resolver) Resolve(ctx context.Context, policy string, target uint64) (uint64, error) {
	switch policy {
	case PolicyLinear:
		return r.Linear(ctx, target)
	case PolicyBinary:
		n, _, err := r.Binary(ctx, target)
		return n, err
	default:
		return 0, fmt.Errorf("unknown block resolution policy %q", policy)
	}
}

// Schedule resolves one block per interval from start to end inclusive.
// Duplicate consecutive blocks (targets past the head) are collapsed.
func (r *Resolver) Schedule(ctx context.Context, policy string, start, end time.Time, interval time.Duration) ([]uint64, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}

	var out []uint64
	for ts := start; !ts.After(end); ts = ts.Add(interval) {
		n, err := r.Resolve(ctx, policy, uint64(ts.Unix()))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve block for %s: %w", ts.Format(time.RFC3339), err)
		}
		if len(out) > 0 && out[len(out)-1] == n {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Latest returns the current head block header
func (r *Resolver) Latest(ctx context.Context) (*domain.BlockHeader, error) {
	var latest uint64
	err := r.retrier.Do(ctx, "block_number", func() error {
		var err error
		latest, err = r.client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return r.Header(ctx, latest)
}

// Header returns the header of block number, retrying transient failures.
// A block the node does not know about yields domain.ErrBlockNotFound.
func (r *Resolver) Header(ctx context.Context, number uint64) (*domain.BlockHeader, error) {
	r.mu.Lock()
	if h, ok := r.headers[number]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	var h *domain.BlockHeader
	err := r.retrier.Do(ctx, "get_block", func() error {
		var err error
		h, err = r.client.BlockByNumber(ctx, number)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrBlockNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}

	r.mu.Lock()
	r.headers[number] = h
	r.mu.Unlock()

	return h, nil
}

// Linear estimates the block at target as
// max(1, latest - (latestTimestamp - target) / blockTime).
// Linear estimates are kept in memory only, they drift as the head moves.
func (r *Resolver) Linear(ctx context.Context, target uint64) (uint64, error) {
	key := resolveKey{policy: PolicyLinear, target: target}
	r.mu.Lock()
	n, ok := r.resolved[key]
	r.mu.Unlock()
	if ok {
		return n, nil
	}

	latest, err := r.Latest(ctx)
	if err != nil {
		return 0, err
	}

	n = latest.Number
	if target < latest.Timestamp {
		blockDiff := (latest.Timestamp - target) / r.blockTime
		if blockDiff >= latest.Number {
			n = 1
		} else {
			n = latest.Number - blockDiff
		}
	}

	r.mu.Lock()
	r.resolved[key] = n
	r.mu.Unlock()
	return n, nil
}

// Binary searches [1, latest] for the block at target. An exact timestamp
// match returns immediately; otherwise the search ends when the bounds cross
// and the right bound is returned, which is the last block at or before
// target. A failed header read is treated as "too far right".
// Assumes strictly increasing block timestamps.
//
// Results are persisted only when they cannot change: exact matches, and
// crossings below the head reached without a failed header read. Targets at
// or past the head, and searches skewed by a failed read, are kept in memory
// for this run only.
func (r *Resolver) Binary(ctx context.Context, target uint64) (uint64, *domain.BlockHeader, error) {
	key := resolveKey{policy: PolicyBinary, target: target}
	if n, ok := r.lookup(key); ok {
		h, err := r.Header(ctx, n)
		if err != nil {
			return 0, nil, err
		}
		return n, h, nil
	}

	latest, err := r.Latest(ctx)
	if err != nil {
		return 0, nil, err
	}

	left, right := int64(1), int64(latest.Number)
	steps := 0
	skewed := false
	for left <= right {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		steps++

		mid := left + (right-left)/2
		h, err := r.Header(ctx, uint64(mid))
		if err != nil {
			r.log.Debug().Err(err).Int64("block", mid).Msg("Block fetch failed during search")
			skewed = true
			right = mid - 1
			continue
		}

		switch {
		case h.Timestamp == target:
			r.remember(key, uint64(mid), true)
			return uint64(mid), h, nil
		case h.Timestamp < target:
			left = mid + 1
		default:
			right = mid - 1
		}
	}

	if right < 0 {
		right = 0
	}
	h, err := r.Header(ctx, uint64(right))
	if err != nil {
		return 0, nil, err
	}

	r.log.Debug().
		Uint64("target", target).
		Int64("block", right).
		Int("steps", steps).
		Bool("skewed", skewed).
		Msg("Resolved block by binary search")

	r.remember(key, uint64(right), !skewed && target < latest.Timestamp)
	return uint64(right), h, nil
}

func (r *Resolver) lookup(key resolveKey) (uint64, bool) {
	r.mu.Lock()
	n, ok := r.resolved[key]
	r.mu.Unlock()
	if ok {
		return n, true
	}

	if r.cacheRepo == nil {
		return 0, false
	}
	data, err := r.cacheRepo.GetIfFresh(clientdata.TableBlockByTimestamp, lookupKey(key))
	if err != nil {
		r.log.Warn().Err(err).Uint64("target", key.target).Msg("Failed to get from cache")
		return 0, false
	}
	if data == nil {
		return 0, false
	}
	if err := json.Unmarshal(data, &n); err != nil {
		r.log.Warn().Err(err).Uint64("target", key.target).Msg("Failed to unmarshal cached data")
		return 0, false
	}

	r.mu.Lock()
	r.resolved[key] = n
	r.mu.Unlock()
	return n, true
}

// remember keeps n in memory and, when persist is set, in block_by_timestamp
func (r *Resolver) remember(key resolveKey, n uint64, persist bool) {
	r.mu.Lock()
	r.resolved[key] = n
	r.mu.Unlock()

	if !persist || r.cacheRepo == nil {
		return
	}
	if err := r.cacheRepo.Store(clientdata.TableBlockByTimestamp, lookupKey(key), n, clientdata.TTLBlockLookup); err != nil {
		r.log.Warn().Err(err).Uint64("target", key.target).Msg("Failed to cache resolved block")
	}
}

func lookupKey(key resolveKey) string {
	return key.policy + ":" + strconv.FormatUint(key.target, 10)
}
