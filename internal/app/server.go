// Package app wires the savepoint runtime and its shutdown lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/savepoint/internal/backend"
	"github.com/louisbranch/savepoint/internal/backend/bbolt"
	"github.com/louisbranch/savepoint/internal/backend/memory"
	"github.com/louisbranch/savepoint/internal/backend/sqlite"
	"github.com/louisbranch/savepoint/internal/cache"
	"github.com/louisbranch/savepoint/internal/identity"
	"github.com/louisbranch/savepoint/internal/lifecycle"
)

// Backend names accepted by RuntimeConfig.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBBolt  = "bbolt"
)

// RuntimeConfig holds the runtime wiring configuration.
type RuntimeConfig struct {
	Backend          string
	DBPath           string
	AutosaveInterval time.Duration
	WarmOnJoin       bool

	// Resolver maps external identifiers to identity IDs. Nil disables
	// identity key derivation.
	Resolver identity.Resolver
}

// Server hosts the cache registry, its backend, and the autosave loop.
type Server struct {
	remote   backend.Backend
	registry *cache.Registry
	bridge   *lifecycle.Bridge
}

// New creates a configured savepoint server.
func New(cfg RuntimeConfig) (*Server, error) {
	remote, err := openBackend(cfg.Backend, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	opts, err := cache.OptionsFromEnv()
	if err != nil {
		_ = remote.Close()
		return nil, err
	}

	registry := cache.NewRegistry(remote, cfg.Resolver, opts)
	bridge := lifecycle.New(registry, lifecycle.Config{
		AutosaveInterval: cfg.AutosaveInterval,
		WarmOnJoin:       cfg.WarmOnJoin,
	}, log.Printf)

	return &Server{
		remote:   remote,
		registry: registry,
		bridge:   bridge,
	}, nil
}

// Registry exposes the server's cache registry.
func (s *Server) Registry() *cache.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// Bridge exposes the server's lifecycle bridge.
func (s *Server) Bridge() *lifecycle.Bridge {
	if s == nil {
		return nil
	}
	return s.bridge
}

// Run creates and serves a savepoint server until context cancellation.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the autosave loop until context cancellation, then flushes and
// releases resources.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("savepoint serving %d entries", s.registry.Len())
	return s.bridge.Run(ctx)
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			log.Printf("close backend: %v", err)
		}
	}
}

func openBackend(name, path string) (backend.Backend, error) {
	switch strings.TrimSpace(name) {
	case "", BackendMemory:
		return memory.New(), nil
	case BackendSQLite:
		if err := ensureStorageDir(path); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return store, nil
	case BackendBBolt:
		if err := ensureStorageDir(path); err != nil {
			return nil, err
		}
		store, err := bbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bbolt backend: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func ensureStorageDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
