package main

import (
	"context"
	"fmt"

	"github.com/susu3304/tripledger/internal/api"
	"github.com/susu3304/tripledger/internal/config"
	"github.com/susu3304/tripledger/internal/db"
	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/lifecycle"
	"github.com/susu3304/tripledger/internal/session"
	"go.uber.org/zap"
)

type recordStore interface {
	lifecycle.Store
	api.Records
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (recordStore, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return database, database.Close, nil
	case "sqlite":
		store, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close sqlite", zap.Error(err))
			}
		}, nil
	case "memory":
		return db.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// newService wires the forms, controller and session manager around store.
func newService(cfg *config.Config, store lifecycle.Store, log *zap.Logger) (*lifecycle.Service, error) {
	forms, err := ledger.LoadForms(cfg.FormsFile)
	if err != nil {
		return nil, err
	}
	ctrl, err := lifecycle.NewController(forms, cfg.DefaultForm, lifecycle.WithLocation(cfg.Location))
	if err != nil {
		return nil, err
	}
	return lifecycle.NewService(ctrl, session.NewManager(), store, log, cfg.StoreTimeout), nil
}
