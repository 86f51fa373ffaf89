// Package vaults reads ERC4626 vault share prices from chain.
package vaults

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aristath/vaultbench/internal/chain"
	"github.com/aristath/vaultbench/internal/clients/rpc"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/modules/blocks"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/aristath/vaultbench/pkg/formulas"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultInterval is the spacing of fetched price points
const DefaultInterval = 24 * time.Hour

// ErrAssetMismatch is returned when a vault's asset() is not the configured asset
var ErrAssetMismatch = errors.New("vault asset mismatch")

// Options configures a Fetcher
type Options struct {
	AssetDecimals int    // Decimals of the underlying asset (USDC: 6)
	AssetAddress  string // Expected asset() of the vault, empty skips the check
	Policy        string // Block resolution policy used by FetchPrices
}

// Fetcher reads one vault's share price at arbitrary blocks
type Fetcher struct {
	client   domain.ChainClient
	resolver *blocks.Resolver
	retrier  *utils.Retrier
	vault    domain.Vault
	address  string
	decimals uint8
	oneShare *uint256.Int
	opts     Options
	log      zerolog.Logger
}

// NewFetcher verifies the node is reachable, reads the vault's decimals and,
// when Options.AssetAddress is set, checks the vault's underlying asset.
// Connection failure is returned wrapped in rpc.ErrNotConnected.
func NewFetcher(
	ctx context.Context,
	client domain.ChainClient,
	resolver *blocks.Resolver,
	retrier *utils.Retrier,
	vault domain.Vault,
	opts Options,
	log zerolog.Logger,
) (*Fetcher, error) {
	if _, err := client.ChainID(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", rpc.ErrNotConnected, err)
	}
	return newFetcher(ctx, client, resolver, retrier, vault, opts, log)
}

// newFetcher builds a fetcher without the connectivity check
func newFetcher(
	ctx context.Context,
	client domain.ChainClient,
	resolver *blocks.Resolver,
	retrier *utils.Retrier,
	vault domain.Vault,
	opts Options,
	log zerolog.Logger,
) (*Fetcher, error) {
	address, err := chain.ChecksumAddress(vault.Address)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", vault.Key, err)
	}
	if opts.Policy == "" {
		opts.Policy = blocks.PolicyLinear
	}

	f := &Fetcher{
		client:   client,
		resolver: resolver,
		retrier:  retrier,
		vault:    vault,
		address:  address,
		opts:     opts,
		log:      log.With().Str("component", "vault_fetcher").Str("vault", vault.Key).Logger(),
	}

	ret, err := f.call(ctx, chain.MethodDecimals, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read decimals of vault %s: %w", vault.Key, err)
	}
	f.decimals, err = chain.UnpackUint8(chain.MethodDecimals, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode decimals of vault %s: %w", vault.Key, err)
	}
	f.oneShare = chain.Pow10(f.decimals)

	if opts.AssetAddress != "" {
		if err := f.checkAsset(ctx, opts.AssetAddress); err != nil {
			return nil, fmt.Errorf("vault %s: %w", vault.Key, err)
		}
	}

	f.log.Debug().Uint8("decimals", f.decimals).Str("address", address).Msg("Vault fetcher ready")
	return f, nil
}

// Vault returns the vault this fetcher reads
func (f *Fetcher) Vault() domain.Vault {
	return f.vault
}

// PriceAtBlock returns the underlying assets one share converts to at block,
// in whole asset units.
func (f *Fetcher) PriceAtBlock(ctx context.Context, block uint64) (float64, error) {
	ret, err := f.call(ctx, chain.MethodConvertToAssets, new(big.Int).SetUint64(block), f.oneShare.ToBig())
	if err != nil {
		return 0, fmt.Errorf("failed to get price at block %d: %w", block, err)
	}
	assets, err := chain.UnpackUint256(chain.MethodConvertToAssets, ret)
	if err != nil {
		return 0, fmt.Errorf("failed to decode price at block %d: %w", block, err)
	}
	return f.scaleAssets(assets), nil
}

// StateAtBlock reads totalAssets and totalSupply at block. Share price is
// their raw ratio, 1 when there is no supply.
func (f *Fetcher) StateAtBlock(ctx context.Context, block uint64) (*domain.VaultState, error) {
	at := new(big.Int).SetUint64(block)

	assets, err := f.readUint(ctx, chain.MethodTotalAssets, at)
	if err != nil {
		return nil, err
	}
	supply, err := f.readUint(ctx, chain.MethodTotalSupply, at)
	if err != nil {
		return nil, err
	}

	price := 1.0
	if !supply.IsZero() {
		price = decimal.NewFromBigInt(assets.ToBig(), 0).
			DivRound(decimal.NewFromBigInt(supply.ToBig(), 0), 36).
			InexactFloat64()
	}

	return &domain.VaultState{
		Block:       block,
		TotalAssets: assets.ToBig().String(),
		TotalSupply: supply.ToBig().String(),
		SharePrice:  price,
	}, nil
}

// FetchPrices samples the share price from start to end inclusive. Both dates
// are truncated to UTC midnight; interval defaults to 24h. Points that fail
// to resolve or read are logged and skipped.
func (f *Fetcher) FetchPrices(ctx context.Context, start, end time.Time, interval time.Duration) []domain.PricePoint {
	defer utils.OperationTimer("fetch_prices", f.log)()

	if interval <= 0 {
		interval = DefaultInterval
	}
	start = TruncateToDay(start)
	end = TruncateToDay(end)

	var points []domain.PricePoint
	for ts := start; !ts.After(end); ts = ts.Add(interval) {
		if ctx.Err() != nil {
			break
		}

		point, err := f.pricePoint(ctx, ts)
		if err != nil {
			f.log.Warn().Err(err).Time("timestamp", ts).Msg("Error fetching price point, skipping")
			continue
		}
		points = append(points, *point)
	}

	f.log.Info().
		Int("points", len(points)).
		Time("start", start).
		Time("end", end).
		Msg("Fetched price series")

	return points
}

func (f *Fetcher) pricePoint(ctx context.Context, ts time.Time) (*domain.PricePoint, error) {
	block, err := f.resolver.Resolve(ctx, f.opts.Policy, uint64(ts.Unix()))
	if err != nil {
		return nil, fmt.Errorf("could not find block: %w", err)
	}

	price, err := f.PriceAtBlock(ctx, block)
	if err != nil {
		return nil, err
	}

	header, err := f.resolver.Header(ctx, block)
	if err != nil {
		return nil, err
	}

	return &domain.PricePoint{Timestamp: header.Time(), Block: block, Price: price}, nil
}

// FetchStates reads the vault state at each block, skipping failed blocks
func (f *Fetcher) FetchStates(ctx context.Context, blockNumbers []uint64) []domain.VaultState {
	states := make([]domain.VaultState, 0, len(blockNumbers))
	for _, block := range blockNumbers {
		state, err := f.StateAtBlock(ctx, block)
		if err != nil {
			f.log.Warn().Err(err).Uint64("block", block).Msg("Error fetching vault state, skipping")
			continue
		}
		states = append(states, *state)
	}
	return states
}

// PriceData reports the price at start (binary search) and at end together
// with the annualized yield between them, in percent. A zero end, or one
// past the head, uses the latest block.
func (f *Fetcher) PriceData(ctx context.Context, start, end time.Time) (*domain.PriceReport, error) {
	startBlock, startHeader, err := f.resolver.Binary(ctx, uint64(start.Unix()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve start block: %w", err)
	}

	endHeader, err := f.resolver.Latest(ctx)
	if err != nil {
		return nil, err
	}
	endBlock := endHeader.Number
	if !end.IsZero() && uint64(end.Unix()) < endHeader.Timestamp {
		endBlock, endHeader, err = f.resolver.Binary(ctx, uint64(end.Unix()))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve end block: %w", err)
		}
	}

	startPrice, err := f.PriceAtBlock(ctx, startBlock)
	if err != nil {
		return nil, err
	}
	endPrice, err := f.PriceAtBlock(ctx, endBlock)
	if err != nil {
		return nil, err
	}

	elapsed := int64(endHeader.Timestamp) - int64(startHeader.Timestamp)
	return &domain.PriceReport{
		Start: domain.PriceReportPoint{Block: startBlock, Timestamp: startHeader.Time(), Price: startPrice},
		End:   domain.PriceReportPoint{Block: endBlock, Timestamp: endHeader.Time(), Price: endPrice},
		APY:   formulas.AnnualizeGrowth(startPrice, endPrice, elapsed) * 100,
	}, nil
}

// checkAsset fails unless the vault's asset() is want
func (f *Fetcher) checkAsset(ctx context.Context, want string) error {
	ret, err := f.call(ctx, chain.MethodAsset, nil)
	if err != nil {
		return fmt.Errorf("failed to read asset: %w", err)
	}
	got, err := chain.UnpackAddress(chain.MethodAsset, ret)
	if err != nil {
		return fmt.Errorf("failed to decode asset: %w", err)
	}
	if got != common.HexToAddress(want) {
		return fmt.Errorf("%w: asset is %s, want %s", ErrAssetMismatch, got.Hex(), common.HexToAddress(want).Hex())
	}
	return nil
}

func (f *Fetcher) readUint(ctx context.Context, method string, at *big.Int) (*uint256.Int, error) {
	ret, err := f.call(ctx, method, at)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at block %s: %w", method, at, err)
	}
	v, err := chain.UnpackUint256(method, ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s at block %s: %w", method, at, err)
	}
	return v, nil
}

// call packs method with args and runs eth_call at block at through the
// retrier. A nil at reads the latest block.
func (f *Fetcher) call(ctx context.Context, method string, at *big.Int, args ...interface{}) ([]byte, error) {
	data, err := chain.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	var ret []byte
	err = f.retrier.Do(ctx, method, func() error {
		var err error
		ret, err = f.client.CallContract(ctx, f.address, data, at)
		return err
	})
	return ret, err
}

// scaleAssets converts a raw asset amount to whole units exactly before
// rounding to float64
func (f *Fetcher) scaleAssets(assets *uint256.Int) float64 {
	return decimal.NewFromBigInt(assets.ToBig(), -int32(f.opts.AssetDecimals)).InexactFloat64()
}

// TruncateToDay returns midnight UTC of t's date
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
