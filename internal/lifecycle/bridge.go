// Package lifecycle reacts to host session events with cache saves and
// removals.
//
// The host decides when players join, leave, and when periodic flushes run;
// this package is thin glue between those signals and the cache registry.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/savepoint/internal/cache"
	"github.com/louisbranch/savepoint/internal/datatree"
)

// DefaultAutosaveInterval paces the periodic flush when none is configured.
const DefaultAutosaveInterval = time.Minute

// Config controls bridge behavior.
type Config struct {
	// AutosaveInterval paces the periodic flush loop.
	AutosaveInterval time.Duration `env:"SAVEPOINT_AUTOSAVE_INTERVAL" envDefault:"1m"`
	// WarmOnJoin loads a player's data as soon as the join event fires so
	// the first Get does not block on the backend.
	WarmOnJoin bool `env:"SAVEPOINT_WARM_ON_JOIN" envDefault:"true"`
}

func (c Config) normalized() Config {
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = DefaultAutosaveInterval
	}
	return c
}

// Bridge wires host session events to the cache registry.
type Bridge struct {
	registry *cache.Registry
	config   Config
	logf     func(format string, args ...any)
}

// New creates a Bridge over registry. logf may be nil to discard logs.
func New(registry *cache.Registry, config Config, logf func(format string, args ...any)) *Bridge {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Bridge{
		registry: registry,
		config:   config.normalized(),
		logf:     logf,
	}
}

// HandleJoin registers the player's entry, optionally warming its data.
func (b *Bridge) HandleJoin(ctx context.Context, playerID string) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("lifecycle bridge is not configured")
	}
	entry, err := b.registry.Resolve(ctx, playerID)
	if err != nil {
		return fmt.Errorf("resolve on join: %w", err)
	}
	if !b.config.WarmOnJoin {
		return nil
	}
	if _, err := entry.Get(ctx, datatree.Nil()); err != nil {
		return fmt.Errorf("warm on join: %w", err)
	}
	return nil
}

// HandleLeave saves the player's entry and removes it from the registry. The
// entry is removed even when the save fails; the error reports the lost data.
func (b *Bridge) HandleLeave(ctx context.Context, playerID string) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("lifecycle bridge is not configured")
	}
	entry, err := b.registry.Resolve(ctx, playerID)
	if err != nil {
		return fmt.Errorf("resolve on leave: %w", err)
	}
	_, saveErr := entry.Save(ctx)
	entry.Remove()
	if saveErr != nil {
		return fmt.Errorf("save on leave: %w", saveErr)
	}
	return nil
}

// Run flushes dirty entries every autosave interval until ctx is cancelled,
// then performs one final flush.
func (b *Bridge) Run(ctx context.Context) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("lifecycle bridge is not configured")
	}

	ticker := time.NewTicker(b.config.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The final flush runs on a fresh context: the loop context
			// is already cancelled.
			b.flush(context.Background())
			return nil
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

func (b *Bridge) flush(ctx context.Context) {
	saved, err := b.registry.SaveAll(ctx)
	if err != nil {
		b.logf("autosave: %v", err)
	}
	if saved > 0 {
		b.logf("autosave flushed %d entries", saved)
	}
}
