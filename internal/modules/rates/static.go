// Package rates provides lending market supply and borrow rate sources.
package rates

import (
	"context"
	"time"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/pkg/formulas"
)

// Placeholder market size reported by the static source, in USD
const (
	staticTotalSupplied = 1000000
	staticTotalBorrowed = 500000
)

// StaticSource reports constant rates. Configured values are APRs; each
// daily point carries APR/365.
type StaticSource struct {
	supplyAPR float64
	borrowAPR float64
}

// NewStaticSource creates a constant rate source
func NewStaticSource(supplyAPR, borrowAPR float64) *StaticSource {
	return &StaticSource{supplyAPR: supplyAPR, borrowAPR: borrowAPR}
}

// HistoricalRates returns one point per day from start to end inclusive
func (s *StaticSource) HistoricalRates(ctx context.Context, asset domain.Asset, start, end time.Time) ([]domain.RatePoint, error) {
	var points []domain.RatePoint
	for _, day := range days(start, end) {
		points = append(points, domain.RatePoint{
			Timestamp:  day,
			SupplyRate: s.supplyAPR / formulas.DaysPerYear,
			BorrowRate: s.borrowAPR / formulas.DaysPerYear,
		})
	}
	return points, nil
}

// CurrentMarketData returns a placeholder market at the configured rates
func (s *StaticSource) CurrentMarketData(ctx context.Context, asset domain.Asset) (*domain.MarketData, error) {
	return &domain.MarketData{
		TotalSupplied:     staticTotalSupplied,
		TotalBorrowed:     staticTotalBorrowed,
		CurrentSupplyRate: s.supplyAPR,
		CurrentBorrowRate: s.borrowAPR,
		UtilizationRatio:  float64(staticTotalBorrowed) / staticTotalSupplied,
	}, nil
}

// days lists UTC midnights from start to end inclusive
func days(start, end time.Time) []time.Time {
	start = truncate(start)
	end = truncate(end)

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
