// Package savepoint parses savepoint command flags and starts the runtime.
package savepoint

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/savepoint/internal/app"
	entrypoint "github.com/louisbranch/savepoint/internal/platform/cmd"
)

// Config holds savepoint command configuration.
type Config struct {
	Backend          string        `env:"SAVEPOINT_BACKEND" envDefault:"memory"`
	DBPath           string        `env:"SAVEPOINT_DB_PATH" envDefault:"data/savepoint.db"`
	AutosaveInterval time.Duration `env:"SAVEPOINT_AUTOSAVE_INTERVAL" envDefault:"1m"`
	WarmOnJoin       bool          `env:"SAVEPOINT_WARM_ON_JOIN" envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "The storage backend (memory, sqlite, bbolt)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The durable backend database path")
	fs.DurationVar(&cfg.AutosaveInterval, "autosave-interval", cfg.AutosaveInterval, "The periodic flush interval")
	fs.BoolVar(&cfg.WarmOnJoin, "warm-on-join", cfg.WarmOnJoin, "Load session data eagerly on join")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the savepoint runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSavepoint, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Backend:          cfg.Backend,
			DBPath:           cfg.DBPath,
			AutosaveInterval: cfg.AutosaveInterval,
			WarmOnJoin:       cfg.WarmOnJoin,
		})
	})
}
