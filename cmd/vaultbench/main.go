// Package main is the vaultbench command line tool. It fetches historical
// ERC4626 vault share prices, compares them with lending market rates and
// reports APY, Sharpe ratio and drawdown per strategy.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/aristath/vaultbench/internal/config"
	"github.com/aristath/vaultbench/pkg/logger"
	"github.com/google/subcommands"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	e := newEnv(cfg, log)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&quickCmd{env: e}, "vaults")
	commander.Register(&fetchCmd{env: e}, "vaults")
	commander.Register(&apyCmd{env: e}, "vaults")
	commander.Register(&plotCmd{env: e}, "vaults")

	commander.Register(&backtestCmd{env: e}, "analysis")
	commander.Register(&ratesCmd{env: e}, "analysis")

	commander.Register(&cacheCleanCmd{env: e}, "maintenance")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	e.close()

	os.Exit(int(status))
}
