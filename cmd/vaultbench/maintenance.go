package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/google/subcommands"
)

// cacheCleanCmd removes expired entries from the client-data cache
type cacheCleanCmd struct {
	env *env
}

func (*cacheCleanCmd) Name() string     { return "cache-clean" }
func (*cacheCleanCmd) Synopsis() string { return "delete expired entries from the cache database" }
func (*cacheCleanCmd) Usage() string {
	return `vaultbench cache-clean

  Deletes expired rows from every client-data table in CACHE_DB.
`
}

func (*cacheCleanCmd) SetFlags(*flag.FlagSet) {}

func (c *cacheCleanCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := c.env.cacheRepo(ctx)
	if err != nil {
		c.env.log.Error().Err(err).Msg("Failed to open cache")
		return subcommands.ExitFailure
	}
	if repo == nil {
		fmt.Fprintln(os.Stderr, "CACHE_DB is not set, nothing to clean")
		return subcommands.ExitUsageError
	}

	job := clientdata.NewCleanupJob(repo, c.env.log)
	deleted, err := job.Run()
	if err != nil {
		return subcommands.ExitFailure
	}

	fmt.Fprintf(os.Stdout, "%s: deleted %d expired entries\n", job.Name(), deleted)
	return subcommands.ExitSuccess
}
