package charts

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/vaultbench/internal/domain"
	testhelpers "github.com/aristath/vaultbench/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), len(pngMagic))
	assert.Equal(t, pngMagic, data[:4])
}

func TestPlotPrices(t *testing.T) {
	s := NewService(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "out", "prices.png")

	err := s.PlotPrices(path, []Series{
		{Name: "Alpha", Points: testhelpers.NewPricePointFixtures(jan1, 30, 0.0002)},
		{Name: "Beta", Points: testhelpers.NewPricePointFixtures(jan1, 30, 0.0003)},
		{Name: "Empty"},
	})
	require.NoError(t, err)
	assertPNG(t, path)
}

func results() []domain.StrategyResult {
	nan := math.NaN()
	return []domain.StrategyResult{
		{
			Name:    "Morpho Supply",
			Series:  domain.PortfolioSeries{Values: []float64{100, 101, 102, 103, 104, 105, 106, 107, 108}},
			Metrics: domain.PerformanceMetrics{MovingAvgAPY: []float64{nan, nan, nan, nan, nan, nan, 0.05, 0.051}},
		},
		{
			Name:    "Short",
			Series:  domain.PortfolioSeries{Values: []float64{100, 100.5}},
			Metrics: domain.PerformanceMetrics{MovingAvgAPY: []float64{nan}},
		},
	}
}

func TestPlotNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy_performance_1.png")
	require.NoError(t, NewService(zerolog.Nop()).PlotNormalized(path, results()))
	assertPNG(t, path)
}

func TestPlotMovingAverageAPY_SkipsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy_performance_2.png")
	require.NoError(t, NewService(zerolog.Nop()).PlotMovingAverageAPY(path, results()))
	assertPNG(t, path)
}

func TestAggregatePoints_Day(t *testing.T) {
	points := testhelpers.NewPricePointFixtures(jan1, 2, 0.5)
	late := points[1]
	late.Timestamp = late.Timestamp.Add(12 * time.Hour)
	late.Price = 2.5
	points = append(points, late)

	daily, err := AggregatePoints(points, "day")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, ChartDataPoint{Time: "2024-01-01", Value: 1}, daily[0])
	assert.Equal(t, ChartDataPoint{Time: "2024-01-02", Value: 2}, daily[1])
}

func TestAggregatePoints(t *testing.T) {
	// 2024-01-01 is a Monday, so days 0-6 are ISO week 1
	points := testhelpers.NewPricePointFixtures(jan1, 14, 0)
	for i := range points {
		points[i].Price = float64(i)
	}

	weekly, err := AggregatePoints(points, "week")
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, ChartDataPoint{Time: "2024-W01", Value: 3}, weekly[0])
	assert.Equal(t, ChartDataPoint{Time: "2024-W02", Value: 10}, weekly[1])

	monthly, err := AggregatePoints(points, "month")
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-01", monthly[0].Time)

	_, err = AggregatePoints(points, "year")
	assert.Error(t, err)
}
