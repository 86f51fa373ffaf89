package rates

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/vaultbench/internal/clients/morpho"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/pkg/formulas"
	"github.com/rs/zerolog"
)

// MorphoSource reads daily rates of one Morpho Blue market. The API reports
// annual APYs; points carry the equivalent daily rate (1+apy)^(1/365) - 1.
type MorphoSource struct {
	client   *morpho.Client
	marketID string
	chainID  uint64
	log      zerolog.Logger
}

// NewMorphoSource creates a rate source backed by the Morpho API
func NewMorphoSource(client *morpho.Client, marketID string, chainID uint64, log zerolog.Logger) *MorphoSource {
	return &MorphoSource{
		client:   client,
		marketID: marketID,
		chainID:  chainID,
		log:      log.With().Str("component", "morpho_rates").Logger(),
	}
}

// HistoricalRates returns the market's daily supply and borrow rates
func (s *MorphoSource) HistoricalRates(ctx context.Context, asset domain.Asset, start, end time.Time) ([]domain.RatePoint, error) {
	m, err := s.market(ctx, asset, truncate(start), truncate(end))
	if err != nil {
		return nil, err
	}
	if m.HistoricalState == nil {
		return nil, fmt.Errorf("market %s has no historical state", s.marketID)
	}

	borrow := make(map[int64]float64, len(m.HistoricalState.BorrowAPY))
	for _, p := range m.HistoricalState.BorrowAPY {
		borrow[int64(p.X)] = p.Y
	}

	points := make([]domain.RatePoint, 0, len(m.HistoricalState.SupplyAPY))
	for _, p := range m.HistoricalState.SupplyAPY {
		ts := int64(p.X)
		borrowAPY, ok := borrow[ts]
		if !ok {
			s.log.Warn().Int64("timestamp", ts).Str("market", s.marketID).Msg("No borrow rate for supply point, skipping")
			continue
		}
		points = append(points, domain.RatePoint{
			Timestamp:  time.Unix(ts, 0).UTC(),
			SupplyRate: dailyRate(p.Y),
			BorrowRate: dailyRate(borrowAPY),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	s.log.Debug().Int("points", len(points)).Str("market", s.marketID).Msg("Fetched historical rates")
	return points, nil
}

// CurrentMarketData returns the market's current size and annual rates
func (s *MorphoSource) CurrentMarketData(ctx context.Context, asset domain.Asset) (*domain.MarketData, error) {
	today := truncate(time.Now())
	m, err := s.market(ctx, asset, today, today)
	if err != nil {
		return nil, err
	}
	if m.State == nil {
		return nil, fmt.Errorf("market %s has no state", s.marketID)
	}

	return &domain.MarketData{
		TotalSupplied:     m.State.SupplyAssetsUSD,
		TotalBorrowed:     m.State.BorrowAssetsUSD,
		CurrentSupplyRate: m.State.SupplyAPY,
		CurrentBorrowRate: m.State.BorrowAPY,
		UtilizationRatio:  m.State.Utilization,
	}, nil
}

func (s *MorphoSource) market(ctx context.Context, asset domain.Asset, start, end time.Time) (*morpho.Market, error) {
	m, err := s.client.Market(ctx, s.marketID, s.chainID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Morpho market %s: %w", s.marketID, err)
	}
	if asset.Address != "" && !strings.EqualFold(m.LoanAsset.Address, asset.Address) {
		return nil, fmt.Errorf("market %s lends %s, not %s", s.marketID, m.LoanAsset.Symbol, asset.Symbol)
	}
	return m, nil
}

func dailyRate(apy float64) float64 {
	if apy <= -1 {
		return -1
	}
	return math.Pow(1+apy, 1.0/formulas.DaysPerYear) - 1
}
