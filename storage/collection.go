package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Collection is a typed view over one slot holding a JSON array.
type Collection[T any] struct {
	db   *DB
	name string
}

func NewCollection[T any](db *DB, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

func (c *Collection[T]) Name() string { return c.name }

// Load reads the whole collection. A slot holding malformed JSON is logged
// and treated as empty.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	data, err := c.db.store.Get(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}
	items := []T{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		c.db.log.Warn("discarding unreadable collection",
			zap.String("collection", c.name), zap.Error(err))
		return []T{}, nil
	}
	return items, nil
}

func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.db.store.Put(ctx, c.name, data); err != nil {
		return fmt.Errorf("save %s: %w", c.name, err)
	}
	return nil
}

// Modify loads, applies fn and writes the result back under the DB lock.
// Nothing is written when fn fails.
func (c *Collection[T]) Modify(ctx context.Context, fn func([]T) ([]T, error)) error {
	return c.db.Update(ctx, func(ctx context.Context) error {
		items, err := c.Load(ctx)
		if err != nil {
			return err
		}
		items, err = fn(items)
		if err != nil {
			return err
		}
		return c.Save(ctx, items)
	})
}

// Slot is a typed view over a single JSON object.
type Slot[T any] struct {
	db   *DB
	name string
}

func NewSlot[T any](db *DB, name string) *Slot[T] {
	return &Slot[T]{db: db, name: name}
}

// Load returns nil when the slot is empty or unreadable.
func (s *Slot[T]) Load(ctx context.Context) (*T, error) {
	data, err := s.db.store.Get(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.db.log.Warn("discarding unreadable slot",
			zap.String("slot", s.name), zap.Error(err))
		return nil, nil
	}
	return &v, nil
}

func (s *Slot[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.name, err)
	}
	if err := s.db.store.Put(ctx, s.name, data); err != nil {
		return fmt.Errorf("save %s: %w", s.name, err)
	}
	return nil
}

func (s *Slot[T]) Clear(ctx context.Context) error {
	if err := s.db.store.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("clear %s: %w", s.name, err)
	}
	return nil
}
