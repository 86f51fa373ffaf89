package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aristath/vaultbench/internal/modules/charts"
	"github.com/aristath/vaultbench/internal/modules/report"
	"github.com/aristath/vaultbench/internal/modules/vaults"
	"github.com/google/subcommands"
)

// quickCmd prints the 24h share price change of every vault
type quickCmd struct {
	env *env
}

func (*quickCmd) Name() string     { return "quick" }
func (*quickCmd) Synopsis() string { return "show current vs 24h-ago share price for all vaults" }
func (*quickCmd) Usage() string {
	return `vaultbench quick

  Reads each configured vault's share price at the head block and one day
  of blocks earlier and prints the 24h APY.
`
}

func (*quickCmd) SetFlags(*flag.FlagSet) {}

func (c *quickCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.connect(ctx); err != nil {
		c.env.log.Error().Err(err).Msg("Failed to connect")
		return subcommands.ExitFailure
	}

	infos, err := vaults.QuickInfo(ctx, c.env.client, c.env.resolver, c.env.retrier, c.env.cfg.Vaults, c.env.options(), c.env.log)
	if err != nil {
		c.env.log.Error().Err(err).Msg("Quick info failed")
		return subcommands.ExitFailure
	}

	printMarkdown(c.env.log, report.QuickInfoMarkdown(infos))
	return subcommands.ExitSuccess
}

// fetchCmd fetches a price series and saves it as a JSON dump
type fetchCmd struct {
	env      *env
	vault    string
	start    string
	end      string
	interval int
	out      string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "fetch a vault's share price series into a JSON dump" }
func (*fetchCmd) Usage() string {
	return `vaultbench fetch -vault <key> -start <date> -end <date> [-interval <hours>] [-out <file>]

  Samples the vault's share price from start to end (inclusive, UTC midnight)
  and writes the points to a JSON dump. Points that fail are skipped.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.vault, "vault", "", "Vault key, e.g. Moonwell")
	f.StringVar(&c.start, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "End date (YYYY-MM-DD)")
	f.IntVar(&c.interval, "interval", int(vaults.DefaultInterval.Hours()), "Sampling interval in hours")
	f.StringVar(&c.out, "out", "", "Output file, defaults to <vault>_prices.json in DATA_DIR")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := parseDate("start", c.start, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	end, err := parseDate("end", c.end, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if c.interval <= 0 {
		fmt.Fprintln(os.Stderr, "-interval must be positive")
		return subcommands.ExitUsageError
	}
	vault, err := c.env.cfg.Vault(c.vault)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	fetcher, err := c.env.fetcher(ctx, vault)
	if err != nil {
		c.env.log.Error().Err(err).Str("vault", vault.Key).Msg("Failed to create fetcher")
		return subcommands.ExitFailure
	}

	interval := time.Duration(c.interval) * time.Hour
	points := fetcher.FetchPrices(ctx, start, end, interval)
	if len(points) == 0 {
		c.env.log.Error().Str("vault", vault.Key).Msg("No price points fetched")
		return subcommands.ExitFailure
	}

	out := c.out
	if out == "" {
		out = strings.ToLower(vault.Key) + "_prices.json"
	}
	out = c.env.dataPath(out)

	if err := vaults.SaveDump(out, points, vaults.NewDumpMetadata(vault, start, end, interval)); err != nil {
		c.env.log.Error().Err(err).Msg("Failed to save dump")
		return subcommands.ExitFailure
	}

	c.env.log.Info().Str("vault", vault.Key).Int("points", len(points)).Str("path", out).Msg("Price series saved")
	return subcommands.ExitSuccess
}

// apyCmd reports the APY of a vault between two dates
type apyCmd struct {
	env   *env
	vault string
	start string
	end   string
}

func (*apyCmd) Name() string     { return "apy" }
func (*apyCmd) Synopsis() string { return "show start/end share price and APY of a vault" }
func (*apyCmd) Usage() string {
	return `vaultbench apy -vault <key> -start <date> [-end <date>]

  Resolves the start block by binary search, reads the share price there and
  at the end (the latest block when -end is omitted) and prints the APY.
`
}

func (c *apyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.vault, "vault", "", "Vault key, e.g. Moonwell")
	f.StringVar(&c.start, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "End date (YYYY-MM-DD), defaults to now")
}

func (c *apyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := parseDate("start", c.start, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	end, err := parseDate("end", c.end, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	vault, err := c.env.cfg.Vault(c.vault)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	fetcher, err := c.env.fetcher(ctx, vault)
	if err != nil {
		c.env.log.Error().Err(err).Str("vault", vault.Key).Msg("Failed to create fetcher")
		return subcommands.ExitFailure
	}

	r, err := fetcher.PriceData(ctx, start, end)
	if err != nil {
		c.env.log.Error().Err(err).Str("vault", vault.Key).Msg("Failed to get price data")
		return subcommands.ExitFailure
	}

	printMarkdown(c.env.log, report.PriceReportMarkdown(vault, r))
	return subcommands.ExitSuccess
}

// plotCmd draws one or more JSON dumps on a single chart
type plotCmd struct {
	env       *env
	out       string
	aggregate string
}

func (*plotCmd) Name() string     { return "plot" }
func (*plotCmd) Synopsis() string { return "plot saved price dumps on one chart" }
func (*plotCmd) Usage() string {
	return `vaultbench plot [-out <file.png>] [-aggregate day|week|month] <dump.json>...

  Loads each dump and draws its share price series on a single PNG chart.
  With -aggregate, also prints the average price per day, week or month.
`
}

func (c *plotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "vault_prices.png", "Output PNG, relative to DATA_DIR unless a path")
	f.StringVar(&c.aggregate, "aggregate", "", "Print averages by day, week or month")
}

func (c *plotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one dump file is required")
		return subcommands.ExitUsageError
	}

	var series []charts.Series
	var tables strings.Builder
	for _, path := range f.Args() {
		dump, err := vaults.LoadDump(path)
		if err != nil {
			c.env.log.Error().Err(err).Msg("Failed to load dump")
			return subcommands.ExitFailure
		}

		name := dump.Metadata.VaultName
		if name == "" {
			name = dump.Metadata.VaultAddress
		}
		series = append(series, charts.Series{Name: name, Points: dump.Data})

		if c.aggregate != "" {
			points, err := charts.AggregatePoints(dump.Data, c.aggregate)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return subcommands.ExitUsageError
			}
			tables.WriteString(report.ChartPointsMarkdown(fmt.Sprintf("%s by %s", name, c.aggregate), points))
			tables.WriteString("\n")
		}
	}

	out := c.env.dataPath(c.out)
	if err := charts.NewService(c.env.log).PlotPrices(out, series); err != nil {
		c.env.log.Error().Err(err).Msg("Failed to plot prices")
		return subcommands.ExitFailure
	}

	if tables.Len() > 0 {
		printMarkdown(c.env.log, tables.String())
	}
	return subcommands.ExitSuccess
}
