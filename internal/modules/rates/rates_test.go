package rates

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/vaultbench/internal/clients/morpho"
	"github.com/aristath/vaultbench/internal/config"
	testhelpers "github.com/aristath/vaultbench/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	usdc = testhelpers.NewUSDCFixture()
)

func TestStaticSource_HistoricalRates(t *testing.T) {
	s := NewStaticSource(0.0365, 0.073)

	points, err := s.HistoricalRates(context.Background(), usdc, jan1.Add(6*time.Hour), jan1.AddDate(0, 0, 9))
	require.NoError(t, err)
	require.Len(t, points, 10)

	assert.Equal(t, jan1, points[0].Timestamp)
	assert.Equal(t, jan1.AddDate(0, 0, 9), points[9].Timestamp)
	for _, p := range points {
		assert.InDelta(t, 0.0001, p.SupplyRate, 1e-15)
		assert.InDelta(t, 0.0002, p.BorrowRate, 1e-15)
	}
}

func TestStaticSource_EmptyRange(t *testing.T) {
	points, err := NewStaticSource(0.03, 0.05).HistoricalRates(context.Background(), usdc, jan1, jan1.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestStaticSource_CurrentMarketData(t *testing.T) {
	md, err := NewStaticSource(0.035, 0.055).CurrentMarketData(context.Background(), usdc)
	require.NoError(t, err)

	assert.Equal(t, 1000000.0, md.TotalSupplied)
	assert.Equal(t, 500000.0, md.TotalBorrowed)
	assert.Equal(t, 0.035, md.CurrentSupplyRate)
	assert.Equal(t, 0.5, md.UtilizationRatio)
}

func newMorphoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const marketBody = `{"data": {"marketByUniqueKey": {
  "uniqueKey": "0xmarket",
  "loanAsset": {"symbol": "USDC", "address": "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", "decimals": 6},
  "state": {"supplyAssetsUsd": 2000000, "borrowAssetsUsd": 1500000, "supplyApy": 0.06, "borrowApy": 0.08, "utilization": 0.75},
  "historicalState": {
    "supplyApy": [{"x": 1704153600, "y": 0.05}, {"x": 1704067200, "y": 0.04}],
    "borrowApy": [{"x": 1704067200, "y": 0.06}, {"x": 1704153600, "y": 0.07}]
  }
}}}`

func newTestMorphoSource(t *testing.T, body string) *MorphoSource {
	server := newMorphoServer(t, body)
	client := morpho.NewClient(server.URL, 5*time.Second, nil, zerolog.Nop())
	return NewMorphoSource(client, "0xmarket", 8453, zerolog.Nop())
}

func TestMorphoSource_HistoricalRates(t *testing.T) {
	s := newTestMorphoSource(t, marketBody)

	points, err := s.HistoricalRates(context.Background(), usdc, jan1, jan1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Sorted by time and converted to daily rates
	assert.Equal(t, jan1, points[0].Timestamp)
	assert.InDelta(t, math.Pow(1.04, 1.0/365)-1, points[0].SupplyRate, 1e-15)
	assert.InDelta(t, math.Pow(1.06, 1.0/365)-1, points[0].BorrowRate, 1e-15)
	assert.InDelta(t, math.Pow(1.05, 1.0/365)-1, points[1].SupplyRate, 1e-15)

	// Compounding a daily rate for a year recovers the APY
	assert.InDelta(t, 0.04, math.Pow(1+points[0].SupplyRate, 365)-1, 1e-12)
}

func TestMorphoSource_SkipsPointsWithoutBorrowRate(t *testing.T) {
	body := strings.Replace(marketBody,
		`"borrowApy": [{"x": 1704067200, "y": 0.06}, {"x": 1704153600, "y": 0.07}]`,
		`"borrowApy": [{"x": 1704153600, "y": 0.07}]`, 1)
	s := newTestMorphoSource(t, body)

	points, err := s.HistoricalRates(context.Background(), usdc, jan1, jan1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, jan1.AddDate(0, 0, 1), points[0].Timestamp)
	assert.InDelta(t, math.Pow(1.07, 1.0/365)-1, points[0].BorrowRate, 1e-15)
}

func TestMorphoSource_CurrentMarketData(t *testing.T) {
	md, err := newTestMorphoSource(t, marketBody).CurrentMarketData(context.Background(), usdc)
	require.NoError(t, err)

	assert.Equal(t, 2000000.0, md.TotalSupplied)
	assert.Equal(t, 1500000.0, md.TotalBorrowed)
	assert.Equal(t, 0.06, md.CurrentSupplyRate)
	assert.Equal(t, 0.75, md.UtilizationRatio)
}

func TestMorphoSource_WrongLoanAsset(t *testing.T) {
	s := newTestMorphoSource(t, marketBody)
	weth := usdc
	weth.Symbol = "WETH"
	weth.Address = "0x4200000000000000000000000000000000000006"

	_, err := s.HistoricalRates(context.Background(), weth, jan1, jan1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lends USDC, not WETH")
}

func TestNewSource(t *testing.T) {
	cfg := &config.Config{
		ChainID:    8453,
		RPCTimeout: time.Second,
		Rates:      config.RatesConfig{Source: config.RateSourceStatic, StaticSupplyAPR: 0.03},
	}

	src, err := NewSource(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &StaticSource{}, src)

	cfg.Rates = config.RatesConfig{Source: config.RateSourceMorpho, MorphoMarketID: "0xmarket"}
	src, err = NewSource(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MorphoSource{}, src)

	cfg.Rates.Source = "oracle"
	_, err = NewSource(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}
