package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Kcal int    `json:"kcal"`
}

func TestCollectionEmptySlotLoadsEmpty(t *testing.T) {
	db := New(NewMemoryStore(), nil)
	items, err := NewCollection[item](db, Meals).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCollectionMalformedJSONIsDiscarded(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.Put(ctx, Meals, []byte("{not json")))

	items, err := NewCollection[item](New(mem, nil), Meals).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCollectionModifyWritesBack(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[item](New(NewMemoryStore(), nil), Meals)

	err := c.Modify(ctx, func(items []item) ([]item, error) {
		return append(items, item{ID: "a", Kcal: 300}), nil
	})
	require.NoError(t, err)

	items, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "a", Kcal: 300}}, items)
}

func TestCollectionModifyErrorLeavesDataUntouched(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[item](New(NewMemoryStore(), nil), Meals)
	require.NoError(t, c.Save(ctx, []item{{ID: "a"}}))

	boom := errors.New("boom")
	err := c.Modify(ctx, func(items []item) ([]item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	items, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSlotRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewSlot[item](New(NewMemoryStore(), nil), CurrentSession)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, item{ID: "x"}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "x", got.ID)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
