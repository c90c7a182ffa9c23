package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/analyze"
	"github.com/sells-group/beekeep/internal/config"
	"github.com/sells-group/beekeep/internal/ingest"
	"github.com/sells-group/beekeep/internal/monitoring"
	"github.com/sells-group/beekeep/internal/reconcile"
	"github.com/sells-group/beekeep/internal/resolve"
	"github.com/sells-group/beekeep/internal/store"
	"github.com/sells-group/beekeep/pkg/anthropic"
)

// appEnv holds the store and the components built on it.
type appEnv struct {
	Store    store.Store
	Pipeline *ingest.Pipeline
	Metrics  *monitoring.Metrics
	Analyzer *analyze.Analyzer // nil unless requested
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the store settings, connects and migrates.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// resolverFromConfig builds the hive resolver with the optional rules
// enabled in config.
func resolverFromConfig(c config.ResolverConfig) *resolve.Resolver {
	var opts []resolve.Option
	if c.ReverseContains {
		opts = append(opts, resolve.WithReverseContains())
	}
	if c.Phonetic {
		opts = append(opts, resolve.WithPhonetic(c.PhoneticThreshold))
	}
	return resolve.New(opts...)
}

// newEnv wires a pipeline over st.
func newEnv(st store.Store, rc config.ResolverConfig) *appEnv {
	metrics := monitoring.NewMetrics()
	engine := reconcile.New(st, reconcile.WithResolver(resolverFromConfig(rc)))
	return &appEnv{
		Store:    st,
		Pipeline: ingest.New(st, engine, ingest.WithMetrics(metrics)),
		Metrics:  metrics,
	}
}

// initEnv opens the store and builds the pipeline. withAnalyzer also
// validates the Anthropic settings and builds the analyzer. Callers should
// defer env.Close().
func initEnv(ctx context.Context, withAnalyzer bool) (*appEnv, error) {
	if withAnalyzer {
		if err := cfg.Validate("analyze"); err != nil {
			return nil, err
		}
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := newEnv(st, cfg.Resolver)
	if withAnalyzer {
		env.Analyzer = analyze.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	}
	return env, nil
}
