package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/resilience"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/service"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "waterfall.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func enginePolicy() (engine.Policy, error) {
	tolerance, err := cfg.Tolerance()
	if err != nil {
		return engine.Policy{}, err
	}
	pol := engine.DefaultPolicy()
	pol.RoundingTolerance = tolerance
	if cfg.Waterfall.IncomeClassification != "" {
		pol.IncomeClassification = model.TaxClassification(cfg.Waterfall.IncomeClassification)
	}
	return pol, nil
}

func initService(ctx context.Context) (*service.Service, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	pol, err := enginePolicy()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Batch.CommitRetries

	svc := service.New(st, engine.New(pol)).
		WithRetry(retry).
		WithConcurrency(cfg.Batch.MaxConcurrentCalculations)
	return svc, st, nil
}
