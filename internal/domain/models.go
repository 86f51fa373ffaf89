// Package domain provides the core vault, price and performance models.
package domain

import "time"

// Vault is an ERC4626 vault loaded from static configuration
type Vault struct {
	Key     string `json:"key" toml:"key"`         // Short identifier, e.g. "Moonwell"
	Address string `json:"address" toml:"address"` // Contract address (hex)
	Name    string `json:"name" toml:"name"`       // Human readable name
}

// Asset is an underlying token the vaults and lending markets are denominated in
type Asset struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// BlockHeader carries the parts of a block vaultbench needs
type BlockHeader struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
	Hash      string `json:"hash"`
}

// Time returns the block timestamp as UTC time
func (h BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC()
}

// PricePoint is a vault share price observed at a block
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Block     uint64    `json:"block"`
	Price     float64   `json:"price"` // Underlying assets per share
}

// VaultState is the raw totalAssets/totalSupply pair read at a block
type VaultState struct {
	Block       uint64  `json:"block_number"`
	TotalAssets string  `json:"total_assets"` // uint256, base 10
	TotalSupply string  `json:"total_supply"` // uint256, base 10
	SharePrice  float64 `json:"share_price"`  // totalAssets / totalSupply, 1 if supply is zero
}

// RatePoint is a lending market rate observation. Rates are per-period
// decimal returns, not annualized.
type RatePoint struct {
	Timestamp  time.Time `json:"timestamp"`
	SupplyRate float64   `json:"supply_rate"`
	BorrowRate float64   `json:"borrow_rate"`
}

// MarketData is a snapshot of a lending market
type MarketData struct {
	TotalSupplied     float64 `json:"total_supplied"` // USD
	TotalBorrowed     float64 `json:"total_borrowed"` // USD
	CurrentSupplyRate float64 `json:"current_supply_rate"`
	CurrentBorrowRate float64 `json:"current_borrow_rate"`
	UtilizationRatio  float64 `json:"utilization_ratio"`
}

// PortfolioSeries is an ordered sequence of portfolio values derived by
// compounding period returns. Values[0] is the initial capital.
type PortfolioSeries struct {
	Values  []float64 `json:"portfolio_values"`
	Returns []float64 `json:"returns"`
}

// Final returns the last portfolio value, or 0 for an empty series
func (s PortfolioSeries) Final() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// PerformanceMetrics summarizes a PortfolioSeries
type PerformanceMetrics struct {
	TotalReturn  float64   `json:"total_return"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	AverageAPY   float64   `json:"average_apy"` // Mean of per-period APYs, as decimal
	PeriodAPY    []float64 `json:"period_apy"`  // (1+r)^365 - 1 for each period
	MovingAvgAPY []float64 `json:"-"`           // 7-period SMA of PeriodAPY, NaN until full
}

// StrategyResult couples a strategy's series with its metrics
type StrategyResult struct {
	Name    string             `json:"name"`
	Series  PortfolioSeries    `json:"series"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// PriceReport is the start/end price and APY between two points in time
type PriceReport struct {
	Start PriceReportPoint `json:"start"`
	End   PriceReportPoint `json:"end"`
	APY   float64          `json:"apy"` // Percent
}

// PriceReportPoint is one end of a PriceReport
type PriceReportPoint struct {
	Block     uint64    `json:"block"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// QuickInfo is the 24h price change for one vault
type QuickInfo struct {
	Vault           Vault   `json:"vault"`
	CurrentBlock    uint64  `json:"current_block"`
	HistoricalBlock uint64  `json:"historical_block"`
	CurrentPrice    float64 `json:"current_price"`
	HistoricalPrice float64 `json:"historical_price"`
	APY             float64 `json:"apy"` // Percent
	Err             error   `json:"-"`
}
