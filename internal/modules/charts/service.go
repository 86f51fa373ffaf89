// Package charts renders share price and strategy comparison charts as PNG files.
package charts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Figure size of every chart
const (
	figureWidth  = 12 * vg.Inch
	figureHeight = 6 * vg.Inch
)

// ChartDataPoint represents a single point on a chart
type ChartDataPoint struct {
	Time  string  `json:"time"`  // YYYY-MM-DD, YYYY-W## or YYYY-MM
	Value float64 `json:"value"` // Share price
}

// Series is a named price series drawn as one line
type Series struct {
	Name   string
	Points []domain.PricePoint
}

// Service provides chart operations
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// PlotPrices draws each series' share price over time on one chart
func (s *Service) PlotPrices(path string, series []Series) error {
	p := plot.New()
	p.Title.Text = "Vault Share Price"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Share Price (USDC)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	for i, sr := range series {
		if len(sr.Points) == 0 {
			s.log.Debug().Str("series", sr.Name).Msg("Skipping empty series")
			continue
		}

		xys := make(plotter.XYs, len(sr.Points))
		for j, pt := range sr.Points {
			xys[j].X = float64(pt.Timestamp.Unix())
			xys[j].Y = pt.Price
		}
		if err := addLine(p, i, sr.Name, xys); err != nil {
			return err
		}
	}

	return s.save(p, path)
}

// PlotNormalized draws each strategy's portfolio value divided by its
// starting value, against the period index
func (s *Service) PlotNormalized(path string, results []domain.StrategyResult) error {
	p := plot.New()
	p.Title.Text = "Strategy Performance Comparison (Normalized)"
	p.X.Label.Text = "Time Period"
	p.Y.Label.Text = "Normalized Value"
	p.Add(plotter.NewGrid())

	for i, r := range results {
		normalized := formulas.Normalize(r.Series.Values)
		if len(normalized) == 0 {
			continue
		}

		xys := make(plotter.XYs, len(normalized))
		for j, v := range normalized {
			xys[j].X = float64(j)
			xys[j].Y = v
		}
		if err := addLine(p, i, r.Name, xys); err != nil {
			return err
		}
	}

	return s.save(p, path)
}

// PlotMovingAverageAPY draws each strategy's moving-average APY in percent.
// Periods before the window fills are left out.
func (s *Service) PlotMovingAverageAPY(path string, results []domain.StrategyResult) error {
	p := plot.New()
	p.Title.Text = "7-Day Moving Average APY"
	p.X.Label.Text = "Time Period"
	p.Y.Label.Text = "APY (%)"
	p.Add(plotter.NewGrid())

	for i, r := range results {
		var xys plotter.XYs
		for j, v := range r.Metrics.MovingAvgAPY {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(j), Y: v * 100})
		}
		if len(xys) == 0 {
			s.log.Debug().Str("strategy", r.Name).Msg("Not enough periods for moving average")
			continue
		}
		if err := addLine(p, i, r.Name+" 7-day Avg APY", xys); err != nil {
			return err
		}
	}

	return s.save(p, path)
}

func addLine(p *plot.Plot, i int, name string, xys plotter.XYs) error {
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to build line %s: %w", name, err)
	}
	line.Color = plotutil.Color(i)
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func (s *Service) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	if err := p.Save(figureWidth, figureHeight, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	s.log.Info().Str("path", path).Msg("Chart saved")
	return nil
}

// AggregatePoints averages price points by UTC day ("day"), ISO week
// ("week") or calendar month ("month"), sorted by period
func AggregatePoints(points []domain.PricePoint, groupBy string) ([]ChartDataPoint, error) {
	switch groupBy {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("invalid aggregation: %s (must be day, week or month)", groupBy)
	}

	aggregated := make(map[string][]float64) // period -> prices
	for _, p := range points {
		period := periodOf(p.Timestamp, groupBy)
		aggregated[period] = append(aggregated[period], p.Price)
	}

	periods := make([]string, 0, len(aggregated))
	for period := range aggregated {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	out := make([]ChartDataPoint, 0, len(periods))
	for _, period := range periods {
		out = append(out, ChartDataPoint{Time: period, Value: formulas.Mean(aggregated[period])})
	}
	return out, nil
}

func periodOf(t time.Time, groupBy string) string {
	t = t.UTC()
	switch groupBy {
	case "day":
		return t.Format("2006-01-02")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01")
}
