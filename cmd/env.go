package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/digiaccounts/internal/accounts"
	"github.com/sells-group/digiaccounts/internal/fetcher"
	"github.com/sells-group/digiaccounts/internal/pipeline"
	"github.com/sells-group/digiaccounts/internal/resilience"
	"github.com/sells-group/digiaccounts/internal/store"
)

// appEnv holds the store and processor shared by the ingest and read
// commands.
type appEnv struct {
	Store     store.Store
	Processor *pipeline.Processor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds the processor. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	asm, err := initAssembler()
	if err != nil {
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

	proc := pipeline.New(asm, st, pipeline.Options{
		Workers:   cfg.Extract.Workers,
		BatchSize: cfg.Extract.BatchSize,
		TempDir:   cfg.Extract.TempDir,
		Retry:     retryConfig(),
	})
	return &appEnv{Store: st, Processor: proc}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		SQLitePath:  cfg.Store.SQLitePath,
		Pool: &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	zap.L().Debug("store opened", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// initAssembler loads the configured taxonomy, applying the currency
// override.
func initAssembler() (*accounts.Assembler, error) {
	tx, err := accounts.LoadTaxonomy(cfg.Extract.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	if cfg.Extract.Currency != "" {
		tx.Currency = cfg.Extract.Currency
	}
	return accounts.NewAssembler(tx), nil
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
}

func initFetcher() *fetcher.HTTPFetcher {
	retry := retryConfig()
	if cfg.Fetch.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Fetch.MaxRetries
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Retry:     retry,
	})
}
