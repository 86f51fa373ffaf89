package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/aristath/vaultbench/internal/clients/rpc"
	"github.com/aristath/vaultbench/internal/config"
	"github.com/aristath/vaultbench/internal/database"
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/internal/modules/backtest"
	"github.com/aristath/vaultbench/internal/modules/blocks"
	"github.com/aristath/vaultbench/internal/modules/report"
	"github.com/aristath/vaultbench/internal/modules/vaults"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// env holds the configuration and the lazily opened connections shared by
// all subcommands
type env struct {
	cfg *config.Config
	log zerolog.Logger

	db       *database.DB
	cache    *clientdata.Repository
	client   *rpc.Client
	retrier  *utils.Retrier
	resolver *blocks.Resolver
}

func newEnv(cfg *config.Config, log zerolog.Logger) *env {
	return &env{
		cfg:     cfg,
		log:     log,
		retrier: utils.NewRetrier(cfg.MaxRetries, cfg.RetryDelay, log),
	}
}

// cacheRepo opens the client-data cache when CACHE_DB is set.
// It returns nil without error when caching is disabled.
func (e *env) cacheRepo(ctx context.Context) (*clientdata.Repository, error) {
	if e.cache != nil || e.cfg.CacheDB == "" {
		return e.cache, nil
	}

	db, err := database.New(database.Config{
		Path:    e.cfg.CacheDB,
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.QuickCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache database unavailable: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	e.db = db
	e.cache = clientdata.NewRepository(db.Conn())
	e.log.Debug().Str("path", db.Path()).Msg("Client data cache opened")
	return e.cache, nil
}

// connect creates the RPC client and block resolver, failing when the
// node is unreachable
func (e *env) connect(ctx context.Context) error {
	if e.client != nil {
		return nil
	}

	cache, err := e.cacheRepo(ctx)
	if err != nil {
		return err
	}

	client, err := rpc.NewClient(rpc.Config{
		URL:           e.cfg.RPCURL,
		Timeout:       e.cfg.RPCTimeout,
		Confirmations: e.cfg.Confirmations,
	}, cache, e.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return err
	}

	e.client = client
	e.resolver = blocks.NewResolver(client, e.cfg.BlockTime, e.retrier, cache, e.log)
	e.log.Info().Str("rpc", client.URL()).Msg("Connected to node")
	return nil
}

func (e *env) options() vaults.Options {
	return vaults.Options{
		AssetDecimals: e.cfg.AssetDecimals,
		AssetAddress:  e.cfg.Assets[e.cfg.VaultAsset].Address,
		Policy:        e.cfg.Resolver,
	}
}

func (e *env) fetcher(ctx context.Context, vault domain.Vault) (*vaults.Fetcher, error) {
	if err := e.connect(ctx); err != nil {
		return nil, err
	}
	return vaults.NewFetcher(ctx, e.client, e.resolver, e.retrier, vault, e.options(), e.log)
}

// stateFetcher adapts fetcher to the backtester's factory signature
func (e *env) stateFetcher(ctx context.Context, vault domain.Vault) (backtest.StateFetcher, error) {
	f, err := e.fetcher(ctx, vault)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// dataPath resolves name relative to DATA_DIR unless it is already a path
func (e *env) dataPath(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(e.cfg.DataDir, name)
}

func (e *env) close() {
	if e.client != nil {
		e.client.Close()
	}
	if e.db == nil {
		return
	}
	if err := e.db.Close(); err != nil {
		e.log.Warn().Err(err).Msg("Failed to close cache database")
	}
}

// parseDate parses a YYYY-MM-DD flag value, allowing empty when optional
func parseDate(name, value string, optional bool) (time.Time, error) {
	if value == "" {
		if optional {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("-%s is required", name)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -%s %q: %w", name, value, err)
	}
	return t, nil
}

// printMarkdown renders markdown to stdout, falling back to the raw text
func printMarkdown(log zerolog.Logger, markdown string) {
	if err := report.Render(os.Stdout, markdown, report.StyleAuto); err != nil {
		log.Warn().Err(err).Msg("Failed to render markdown")
		fmt.Fprintln(os.Stdout, markdown)
	}
}
