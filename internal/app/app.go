// Package app wires the storage, credential, orchestration and tracking
// layers together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nhle/smart-onboard/internal/ai"
	"github.com/nhle/smart-onboard/internal/analytics"
	"github.com/nhle/smart-onboard/internal/catalog"
	"github.com/nhle/smart-onboard/internal/credential"
	"github.com/nhle/smart-onboard/internal/genclient"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/netwatch"
	"github.com/nhle/smart-onboard/internal/status"
	"github.com/nhle/smart-onboard/internal/store"
	"github.com/nhle/smart-onboard/internal/tracker"
)

const (
	BackendKeyring = "keyring"
	BackendSQLite  = "sqlite"
)

// Options overrides parts of the wiring. Zero fields use the production
// implementation selected by Config.
type Options struct {
	Config      *model.AppConfig
	Log         zerolog.Logger
	Clock       clockwork.Clock
	Store       store.Store
	Credentials store.Store
	Factory     genclient.Factory
	Checker     netwatch.Checker
	Catalog     *catalog.Catalog
}

// App holds every long-lived component.
type App struct {
	Config    *model.AppConfig
	Store     store.Store
	Resolver  *credential.Resolver
	Registry  *status.Registry
	AI        *ai.Orchestrator
	Tracker   *tracker.Tracker
	Analytics *analytics.Service
	Catalog   *catalog.Catalog

	// Monitor is nil when network monitoring is disabled.
	Monitor *netwatch.Monitor

	log     zerolog.Logger
	closers []func() error
}

// New builds an App. Call Start to begin background work and Close to
// release resources.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	log := opts.Log
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	a := &App{
		Config: cfg,
		log:    log.With().Str("component", "app").Logger(),
	}

	kv := opts.Store
	if kv == nil {
		sqlite, err := openSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlite.Close)
		kv = sqlite
	}
	a.Store = kv

	creds := opts.Credentials
	if creds == nil {
		creds = a.credentialStore(cfg.Credential, kv)
	}

	a.Catalog = opts.Catalog
	if a.Catalog == nil {
		a.Catalog = catalog.Default()
	}

	factory := opts.Factory
	if factory == nil {
		factory = genclient.GeminiFactory{}
	}

	a.Registry = status.NewRegistry(clock)
	a.Resolver = credential.NewResolver(creds, cfg.Credential.EnvKey, log)
	a.AI = ai.New(cfg.AI, a.Resolver, factory, a.Registry, log, clock)
	a.Analytics = analytics.NewService(kv, log)
	a.Tracker = tracker.New(kv, a.AI, a.Catalog, a.Analytics, clock, log)

	if cfg.Network.Enabled {
		checker := opts.Checker
		if checker == nil {
			checker = netwatch.HTTPChecker{URL: cfg.Network.ProbeURL}
		}
		a.Monitor = netwatch.New(checker, cfg.Network.PollInterval, cfg.Network.ProbeTimeout, clock, log)
		a.Monitor.OnRegained(a.AI.OnNetworkRegained)
	}

	return a, nil
}

func openSQLite(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening storage %s: %w", path, err)
	}
	return s, nil
}

// credentialStore picks the configured credential backend. An unavailable
// keyring falls back to the key/value store.
func (a *App) credentialStore(cfg model.CredentialConfig, kv store.Store) store.Store {
	switch cfg.Backend {
	case BackendSQLite:
		return kv
	case BackendKeyring, "":
		ring, err := credential.OpenKeyring(cfg.KeyringDir)
		if err != nil {
			a.log.Warn().Err(err).Msg("keyring unavailable, storing API key in local database")
			return kv
		}
		return ring
	default:
		a.log.Warn().Str("backend", cfg.Backend).Msg("unknown credential backend, using local database")
		return kv
	}
}

// Start persists an environment key when none is stored, schedules the
// first initialization attempt and starts connectivity monitoring.
func (a *App) Start(ctx context.Context) {
	a.Resolver.Initialize(ctx)
	a.AI.Start()
	if a.Monitor != nil {
		a.Monitor.Start()
	}
}

// SetAPIKey stores a new key and restarts initialization with it.
func (a *App) SetAPIKey(ctx context.Context, key string) error {
	if err := a.Resolver.Update(ctx, key); err != nil {
		return err
	}
	a.AI.OnCredentialUpdated()
	return nil
}

// ClearAPIKey removes the stored key and resets initialization.
func (a *App) ClearAPIKey(ctx context.Context) {
	a.Resolver.Clear(ctx)
	a.AI.OnCredentialUpdated()
}

// Close stops background work, resets the status registry and closes
// storage.
func (a *App) Close() error {
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	a.Tracker.Close()
	a.AI.Close()
	a.Registry.Reset()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
