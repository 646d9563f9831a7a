package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/fleetcheck/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs first so that flags owned by other
// components (such as -c) do not break parsing.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the fleetcheck server")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path to the local database file")
	fs.DurationVar(&cfg.SyncInterval, "i", cfg.SyncInterval, "periodic sync interval")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "HTTP request timeout")
	fs.DurationVar(&cfg.OnlineCheckInterval, "o", cfg.OnlineCheckInterval, "server reachability check interval")
	fs.IntVar(&cfg.PageSize, "p", cfg.PageSize, "download page size")
	fs.IntVar(&cfg.UploadWorkers, "w", cfg.UploadWorkers, "parallel uploads per collection")
	fs.StringVar(&cfg.ConflictStrategy, "s", cfg.ConflictStrategy, "conflict strategy: remote_wins, local_wins, last_write_wins")
	fs.StringVar(&cfg.NatsURL, "n", cfg.NatsURL, "NATS URL for change notifications (empty disables)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "f", cfg.LogFormat, "log format: text or json")

	args := flagx.FilterArgs(os.Args[1:], flagx.Names(fs))
	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
