// Package app builds the application state that every handler shares.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutri-planner/auth"
	"nutri-planner/config"
	"nutri-planner/services"
	"nutri-planner/storage"
)

type State struct {
	Config      *config.Config
	Log         *zap.Logger
	DB          *storage.DB
	Auth        *auth.Manager
	Tokens      *auth.Tokens
	Google      *auth.Google // nil when Google sign-in is not configured
	Diagnostics *services.DiagnosticService
	Meals       *services.MealLogService
	Evaluations *services.EvaluationService
	Exports     *services.ExportService

	closers []func(context.Context) error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now in every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the services over store.
func New(cfg *config.Config, store storage.Store, log *zap.Logger, opts ...Option) *State {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	db := storage.New(store, log)
	manager := auth.NewManager(db, log.Named("auth"), auth.WithClock(o.now))
	diagnostics := services.NewDiagnosticService(db, log.Named("diagnostics"), o.now)
	meals := services.NewMealLogService(db, diagnostics, loc, log.Named("meals"), o.now)
	evaluations := services.NewEvaluationService(db, diagnostics, log.Named("evaluations"), o.now)

	s := &State{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Auth:        manager,
		Tokens:      auth.NewTokens(cfg.JWTSecret, o.now),
		Diagnostics: diagnostics,
		Meals:       meals,
		Evaluations: evaluations,
		Exports:     services.NewExportService(diagnostics, meals, evaluations, o.now),
	}
	if cfg.Google.Enabled() {
		s.Google = auth.NewGoogle(cfg.Google, manager, log.Named("google"))
	}
	return s
}

// Open connects the configured storage backend and wires the state over it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*State, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store, closer, err := OpenStore(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	s := New(cfg, store, log, opts...)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return s, nil
}

// OpenStore returns the Store for the configured backend and a function
// releasing its connection, if any.
func OpenStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Store, func(context.Context) error, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Info("using in-memory storage")
		return storage.NewMemoryStore(), nil, nil

	case "mongo":
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		return storage.NewMongoStore(client.Database(cfg.MongoDatabase)), client.Disconnect, nil

	case "postgres":
		db, err := storage.OpenPostgres(cfg.DB.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("connected to Postgres", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))
		return storage.NewGormStore(db), func(context.Context) error { return sqlDB.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func (s *State) Close(ctx context.Context) error {
	var errs []error
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
