// Package report builds markdown reports of vault prices, lending rates and
// backtest results, and renders them for the terminal.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/modules/charts"
	"github.com/charmbracelet/glamour"
	md "github.com/nao1215/markdown"
)

// SummaryFile is the markdown summary written next to the backtest charts
const SummaryFile = "strategy_performance_3.md"

// Terminal styles accepted by Render
const (
	StyleAuto  = "auto"
	StyleNoTTY = "notty"
)

const dateFormat = "2006-01-02"

// StrategySummaryMarkdown renders the backtest comparison table
func StrategySummaryMarkdown(results []domain.StrategyResult) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Strategy Performance Summary")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Name,
			percent(r.Metrics.TotalReturn),
			fmt.Sprintf("%.2f", r.Metrics.SharpeRatio),
			percent(r.Metrics.MaxDrawdown),
			percent(r.Metrics.AverageAPY),
			fmt.Sprintf("%.2f", r.Series.Final()),
		})
	}
	doc.Table(md.TableSet{
		Header: []string{"Strategy", "Total Return %", "Sharpe Ratio", "Max Drawdown %", "Avg APY %", "Final Value"},
		Rows:   rows,
	})

	return doc.String()
}

// QuickInfoMarkdown renders the 24h price change of every vault.
// Vaults that failed show the error instead of prices.
func QuickInfoMarkdown(infos []domain.QuickInfo) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Vault Share Prices (24h)")

	rows := make([][]string, 0, len(infos))
	for _, q := range infos {
		if q.Err != nil {
			rows = append(rows, []string{q.Vault.Key, "-", "-", "-", "-", "error: " + q.Err.Error()})
			continue
		}
		rows = append(rows, []string{
			q.Vault.Key,
			fmt.Sprintf("%d", q.CurrentBlock),
			fmt.Sprintf("%.6f", q.CurrentPrice),
			fmt.Sprintf("%d", q.HistoricalBlock),
			fmt.Sprintf("%.6f", q.HistoricalPrice),
			fmt.Sprintf("%.2f%%", q.APY),
		})
	}
	doc.Table(md.TableSet{
		Header: []string{"Vault", "Block", "Price", "Block 24h ago", "Price 24h ago", "APY"},
		Rows:   rows,
	})

	return doc.String()
}

// PriceReportMarkdown renders the start/end prices of a vault and the APY between them
func PriceReportMarkdown(vault domain.Vault, r *domain.PriceReport) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s APY", vault.Name))
	doc.PlainText(fmt.Sprintf("Vault: %s", vault.Address))

	doc.Table(md.TableSet{
		Header: []string{"", "Block", "Date", "Price"},
		Rows: [][]string{
			{"Start", fmt.Sprintf("%d", r.Start.Block), r.Start.Timestamp.UTC().Format(dateFormat), fmt.Sprintf("%.6f", r.Start.Price)},
			{"End", fmt.Sprintf("%d", r.End.Block), r.End.Timestamp.UTC().Format(dateFormat), fmt.Sprintf("%.6f", r.End.Price)},
		},
	})
	doc.PlainText(fmt.Sprintf("APY: %.2f%%", r.APY))

	return doc.String()
}

// RatesMarkdown renders the first head historical rate points and the
// current market snapshot. A nil market omits the snapshot section.
func RatesMarkdown(asset domain.Asset, points []domain.RatePoint, head int, market *domain.MarketData) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s Lending Rates", asset.Symbol))

	if head > 0 && len(points) > head {
		points = points[:head]
	}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Timestamp.UTC().Format(dateFormat),
			fmt.Sprintf("%.6f%%", p.SupplyRate*100),
			fmt.Sprintf("%.6f%%", p.BorrowRate*100),
		})
	}
	doc.H2("Historical Rates")
	doc.Table(md.TableSet{
		Header: []string{"Date", "Supply Rate", "Borrow Rate"},
		Rows:   rows,
	})

	if market != nil {
		doc.H2("Current Market")
		doc.Table(md.TableSet{
			Header: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Total Supplied", fmt.Sprintf("%.2f", market.TotalSupplied)},
				{"Total Borrowed", fmt.Sprintf("%.2f", market.TotalBorrowed)},
				{"Supply Rate", percent(market.CurrentSupplyRate)},
				{"Borrow Rate", percent(market.CurrentBorrowRate)},
				{"Utilization", percent(market.UtilizationRatio)},
			},
		})
	}

	return doc.String()
}

// ChartPointsMarkdown renders aggregated chart points as a table
func ChartPointsMarkdown(title string, points []charts.ChartDataPoint) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H2(title)

	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Time, fmt.Sprintf("%.6f", p.Value)})
	}
	doc.Table(md.TableSet{
		Header: []string{"Period", "Average Price"},
		Rows:   rows,
	})

	return doc.String()
}

// WriteSummary writes the strategy summary markdown into dir
func WriteSummary(dir string, results []domain.StrategyResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	if err := os.WriteFile(path, []byte(StrategySummaryMarkdown(results)), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return path, nil
}

// Render writes markdown to w, styled for a terminal
func Render(w io.Writer, markdown string, style string) error {
	var opt glamour.TermRendererOption
	if style == "" || style == StyleAuto {
		opt = glamour.WithAutoStyle()
	} else {
		opt = glamour.WithStandardStyle(style)
	}

	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(120))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// percent formats a decimal fraction as a percentage
func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
