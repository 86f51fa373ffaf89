// Package backtest compares lending and vault strategies by compounding
// their period returns into portfolio value series.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/aristath/vaultbench/pkg/formulas"
	"github.com/rs/zerolog"
)

// SupplyStrategyName names the lending supply strategy in comparisons
const SupplyStrategyName = "Morpho Supply"

// ErrNoData is returned when a strategy has nothing to compound
var ErrNoData = errors.New("no data for strategy")

// StateFetcher reads vault states at blocks
type StateFetcher interface {
	FetchStates(ctx context.Context, blockNumbers []uint64) []domain.VaultState
}

// FetcherFactory opens a StateFetcher for a vault
type FetcherFactory func(ctx context.Context, vault domain.Vault) (StateFetcher, error)

// Config holds backtest parameters
type Config struct {
	InitialCapital float64
	RiskFreeRate   float64 // Annual, as decimal
}

// Backtester runs strategies against a rate source and a set of vaults
type Backtester struct {
	rates      domain.RateSource
	vaults     []domain.Vault
	newFetcher FetcherFactory
	cfg        Config
	log        zerolog.Logger
}

// NewBacktester creates a backtester. newFetcher may be nil when only rate
// and price-series strategies are used.
func NewBacktester(rates domain.RateSource, vaults []domain.Vault, newFetcher FetcherFactory, cfg Config, log zerolog.Logger) *Backtester {
	return &Backtester{
		rates:      rates,
		vaults:     vaults,
		newFetcher: newFetcher,
		cfg:        cfg,
		log:        log.With().Str("component", "backtester").Logger(),
	}
}

// BasicSupplyStrategy compounds the supply rate of each period
func (b *Backtester) BasicSupplyStrategy(ctx context.Context, asset domain.Asset, start, end time.Time) (*domain.StrategyResult, error) {
	points, err := b.rates.HistoricalRates(ctx, asset, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical rates for %s: %w", asset.Symbol, err)
	}

	returns := make([]float64, len(points))
	for i, p := range points {
		returns[i] = p.SupplyRate
	}

	return b.result(SupplyStrategyName, returns), nil
}

// VaultStrategy compounds the share price changes of vault across blocks
func (b *Backtester) VaultStrategy(ctx context.Context, vault domain.Vault, blockNumbers []uint64) (*domain.StrategyResult, error) {
	if b.newFetcher == nil {
		return nil, fmt.Errorf("no vault fetcher configured")
	}

	fetcher, err := b.newFetcher(ctx, vault)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault %s: %w", vault.Key, err)
	}

	states := fetcher.FetchStates(ctx, blockNumbers)
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: vault %s", ErrNoData, vault.Key)
	}

	prices := make([]float64, len(states))
	for i, s := range states {
		prices[i] = s.SharePrice
	}

	return b.result(vault.Key, formulas.CalculateReturns(prices)), nil
}

// PriceSeriesStrategy compounds the share price changes of stored price points
func (b *Backtester) PriceSeriesStrategy(name string, points []domain.PricePoint) (*domain.StrategyResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, name)
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	return b.result(name, formulas.CalculateReturns(prices)), nil
}

// CompareAll runs the supply strategy followed by every configured vault, in
// registry order. A vault that fails is logged and left out.
func (b *Backtester) CompareAll(ctx context.Context, asset domain.Asset, blockNumbers []uint64, start, end time.Time) ([]domain.StrategyResult, error) {
	defer utils.OperationTimer("compare_all_strategies", b.log)()

	supply, err := b.BasicSupplyStrategy(ctx, asset, start, end)
	if err != nil {
		return nil, err
	}
	results := []domain.StrategyResult{*supply}

	for _, vault := range b.vaults {
		res, err := b.VaultStrategy(ctx, vault, blockNumbers)
		if err != nil {
			b.log.Warn().Err(err).Str("vault", vault.Key).Msg("Vault strategy failed, skipping")
			continue
		}
		results = append(results, *res)
	}

	return results, nil
}

func (b *Backtester) result(name string, returns []float64) *domain.StrategyResult {
	series := NewSeries(b.cfg.InitialCapital, returns)
	metrics := Evaluate(series, b.cfg.RiskFreeRate)

	b.log.Info().
		Str("strategy", name).
		Int("periods", len(returns)).
		Float64("total_return", metrics.TotalReturn).
		Float64("sharpe_ratio", metrics.SharpeRatio).
		Float64("max_drawdown", metrics.MaxDrawdown).
		Msg("Strategy evaluated")

	return &domain.StrategyResult{Name: name, Series: series, Metrics: metrics}
}
