// Package storage keeps every application collection as one JSON document
// behind a small key/value port.
package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Slot names, shared with the browser build so exported data stays readable.
const (
	Users                = "usuarios"
	CurrentSession       = "sessao_atual"
	Sessions             = "sessoes"
	DraftDiagnostics     = "diagnosticos_rascunho"
	SubmittedDiagnostics = "diagnosticos_enviados"
	EvaluatedDiagnostics = "diagnosticos_avaliados"
	Meals                = "refeicoes"
	MealEvaluations      = "avaliacoes_refeicoes"
)

// Store is the persistence port. Get returns nil data and no error for a slot
// that was never written.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// DB wraps a Store and serializes read-modify-write cycles inside this process.
type DB struct {
	store Store
	log   *zap.Logger
	mu    sync.Mutex
}

func New(store Store, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{store: store, log: log}
}

// Update runs fn while holding the write lock. Collections loaded and saved
// inside fn see no interleaved writers from this process.
func (db *DB) Update(ctx context.Context, fn func(ctx context.Context) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(ctx)
}
