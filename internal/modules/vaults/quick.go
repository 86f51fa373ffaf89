package vaults

import (
	"context"
	"fmt"

	"github.com/aristath/vaultbench/internal/clients/rpc"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/modules/blocks"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/aristath/vaultbench/pkg/formulas"
	"github.com/rs/zerolog"
)

const secondsPerDay = 86400

// QuickInfo compares each vault's current share price with the price one
// day of blocks ago. A vault that fails is reported through its Err field;
// only a connection failure is returned as an error.
func QuickInfo(
	ctx context.Context,
	client domain.ChainClient,
	resolver *blocks.Resolver,
	retrier *utils.Retrier,
	vaults []domain.Vault,
	opts Options,
	log zerolog.Logger,
) ([]domain.QuickInfo, error) {
	log = log.With().Str("component", "quick_info").Logger()

	if _, err := client.ChainID(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", rpc.ErrNotConnected, err)
	}

	current, err := resolver.Latest(ctx)
	if err != nil {
		return nil, err
	}

	blocksPerDay := secondsPerDay / resolver.BlockTime()
	var historicalBlock uint64
	if current.Number > blocksPerDay {
		historicalBlock = current.Number - blocksPerDay
	}

	log.Info().
		Uint64("current_block", current.Number).
		Uint64("historical_block", historicalBlock).
		Msg("Connected to network")

	results := make([]domain.QuickInfo, 0, len(vaults))
	for _, vault := range vaults {
		info := domain.QuickInfo{
			Vault:           vault,
			CurrentBlock:    current.Number,
			HistoricalBlock: historicalBlock,
		}
		if err := fillQuickInfo(ctx, client, resolver, retrier, opts, log, current, &info); err != nil {
			log.Warn().Err(err).Str("vault", vault.Key).Msg("Failed to get quick info")
			info.Err = err
		}
		results = append(results, info)
	}

	return results, nil
}

func fillQuickInfo(
	ctx context.Context,
	client domain.ChainClient,
	resolver *blocks.Resolver,
	retrier *utils.Retrier,
	opts Options,
	log zerolog.Logger,
	current *domain.BlockHeader,
	info *domain.QuickInfo,
) error {
	f, err := newFetcher(ctx, client, resolver, retrier, info.Vault, opts, log)
	if err != nil {
		return err
	}

	info.CurrentPrice, err = f.PriceAtBlock(ctx, info.CurrentBlock)
	if err != nil {
		return err
	}
	info.HistoricalPrice, err = f.PriceAtBlock(ctx, info.HistoricalBlock)
	if err != nil {
		return err
	}

	historical, err := resolver.Header(ctx, info.HistoricalBlock)
	if err != nil {
		return err
	}

	elapsed := int64(current.Timestamp) - int64(historical.Timestamp)
	info.APY = formulas.AnnualizeGrowth(info.HistoricalPrice, info.CurrentPrice, elapsed) * 100
	return nil
}
