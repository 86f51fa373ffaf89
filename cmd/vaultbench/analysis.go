package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/modules/backtest"
	"github.com/aristath/vaultbench/internal/modules/charts"
	"github.com/aristath/vaultbench/internal/modules/rates"
	"github.com/aristath/vaultbench/internal/modules/report"
	"github.com/aristath/vaultbench/internal/modules/vaults"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/google/subcommands"
)

// Backtest chart files written into the output directory
const (
	normalizedChartFile = "strategy_performance_1.png"
	movingAPYChartFile  = "strategy_performance_2.png"
)

// backtestCmd compares the supply strategy with the vaults
type backtestCmd struct {
	env       *env
	asset     string
	fromDumps bool
	blocks    string
	outDir    string
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "compare lending supply with vault strategies" }
func (*backtestCmd) Usage() string {
	return `vaultbench backtest [-asset USDC] [-blocks n,n,...] [-out-dir <dir>]
vaultbench backtest -from-dumps <dump.json>...

  Compounds the lending supply rate over BACKTEST_START..BACKTEST_END and
  each vault's share price growth, then prints total return, Sharpe ratio,
  max drawdown and average APY per strategy. Charts and a markdown summary
  are written to the output directory.

  Without -blocks, one block per day is resolved over the backtest range.
  With -from-dumps, vault series are read from saved dumps instead of RPC.
`
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "USDC", "Lending market asset")
	f.BoolVar(&c.fromDumps, "from-dumps", false, "Read vault series from the dump files given as arguments")
	f.StringVar(&c.blocks, "blocks", "", "Comma separated block numbers to sample vault state at")
	f.StringVar(&c.outDir, "out-dir", "", "Directory for charts and summary, defaults to DATA_DIR")
}

func (c *backtestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := c.env.cfg
	log := c.env.log

	asset, err := cfg.Asset(c.asset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if c.fromDumps && f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "-from-dumps needs at least one dump file")
		return subcommands.ExitUsageError
	}
	blockNumbers, err := utils.ParseUintCSV(c.blocks)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	cache, err := c.env.cacheRepo(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open cache")
		return subcommands.ExitFailure
	}
	source, err := rates.NewSource(cfg, cache, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create rate source")
		return subcommands.ExitFailure
	}

	bt := backtest.NewBacktester(source, cfg.Vaults, c.env.stateFetcher, backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}, log)

	start, end := cfg.Backtest.StartDate, cfg.Backtest.EndDate

	var results []domain.StrategyResult
	if c.fromDumps {
		results, err = c.fromDumpFiles(ctx, bt, asset, f.Args())
	} else {
		if len(blockNumbers) == 0 {
			if err := c.env.connect(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to connect")
				return subcommands.ExitFailure
			}
			blockNumbers, err = c.env.resolver.Schedule(ctx, cfg.Resolver, start, end, vaults.DefaultInterval)
			if err != nil {
				log.Error().Err(err).Msg("Failed to resolve backtest blocks")
				return subcommands.ExitFailure
			}
		}
		results, err = bt.CompareAll(ctx, asset, blockNumbers, start, end)
	}
	if err != nil {
		log.Error().Err(err).Msg("Backtest failed")
		return subcommands.ExitFailure
	}

	outDir := cfg.DataDir
	if c.outDir != "" {
		outDir = c.outDir
	}

	chartsSvc := charts.NewService(log)
	if err := chartsSvc.PlotNormalized(filepath.Join(outDir, normalizedChartFile), results); err != nil {
		log.Error().Err(err).Msg("Failed to plot normalized values")
		return subcommands.ExitFailure
	}
	if err := chartsSvc.PlotMovingAverageAPY(filepath.Join(outDir, movingAPYChartFile), results); err != nil {
		log.Error().Err(err).Msg("Failed to plot moving average APY")
		return subcommands.ExitFailure
	}
	path, err := report.WriteSummary(outDir, results)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write summary")
		return subcommands.ExitFailure
	}
	log.Info().Str("path", path).Int("strategies", len(results)).Msg("Backtest summary written")

	printMarkdown(log, report.StrategySummaryMarkdown(results))
	return subcommands.ExitSuccess
}

// fromDumpFiles runs the supply strategy and one price series strategy per
// dump. A dump that cannot be used is logged and left out.
func (c *backtestCmd) fromDumpFiles(ctx context.Context, bt *backtest.Backtester, asset domain.Asset, paths []string) ([]domain.StrategyResult, error) {
	cfg := c.env.cfg

	supply, err := bt.BasicSupplyStrategy(ctx, asset, cfg.Backtest.StartDate, cfg.Backtest.EndDate)
	if err != nil {
		return nil, err
	}
	results := []domain.StrategyResult{*supply}

	for _, path := range paths {
		dump, err := vaults.LoadDump(path)
		if err != nil {
			c.env.log.Warn().Err(err).Str("path", path).Msg("Skipping dump")
			continue
		}
		name := dump.Metadata.VaultName
		if name == "" {
			name = filepath.Base(path)
		}
		res, err := bt.PriceSeriesStrategy(name, dump.Data)
		if err != nil {
			c.env.log.Warn().Err(err).Str("path", path).Msg("Skipping dump")
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// ratesCmd prints historical lending rates and the current market snapshot
type ratesCmd struct {
	env   *env
	asset string
	start string
	end   string
	head  int
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "show historical lending rates and current market data" }
func (*ratesCmd) Usage() string {
	return `vaultbench rates [-asset USDC] [-start <date>] [-end <date>] [-head n]

  Prints the first n daily supply/borrow rates from RATE_SOURCE and the
  current market totals. Dates default to BACKTEST_START and BACKTEST_END.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "USDC", "Lending market asset")
	f.StringVar(&c.start, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "End date (YYYY-MM-DD)")
	f.IntVar(&c.head, "head", 5, "Number of rate points to print, 0 for all")
}

func (c *ratesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := c.env.cfg
	log := c.env.log

	asset, err := cfg.Asset(c.asset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	start, err := parseDate("start", c.start, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	end, err := parseDate("end", c.end, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if start.IsZero() {
		start = cfg.Backtest.StartDate
	}
	if end.IsZero() {
		end = cfg.Backtest.EndDate
	}

	cache, err := c.env.cacheRepo(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open cache")
		return subcommands.ExitFailure
	}
	source, err := rates.NewSource(cfg, cache, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create rate source")
		return subcommands.ExitFailure
	}

	points, err := source.HistoricalRates(ctx, asset, start, end)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get historical rates")
		return subcommands.ExitFailure
	}
	market, err := source.CurrentMarketData(ctx, asset)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get current market data")
		market = nil
	}

	printMarkdown(log, report.RatesMarkdown(asset, points, c.head, market))
	return subcommands.ExitSuccess
}
