package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type flakyStore struct {
	*MemoryStore
	fail bool
}

func (s *flakyStore) Save(ctx context.Context, key string, lines []Line) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, key, lines)
}

func newProduct(name string, price int64) domain.Product {
	return domain.Product{ID: uuid.New(), Name: name, Price: decimal.NewFromInt(price), Stock: 10, Active: true}
}

func quietLogger() log.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestCart_AddItemMergesSameLine(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore(), "s1", quietLogger())
	p := newProduct("Remera", 100)

	require.NoError(t, c.AddItem(ctx, p, 2, nil, nil))
	require.NoError(t, c.AddItem(ctx, p, 3, nil, nil))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(5), lines[0].Quantity)
	assert.True(t, lines[0].Subtotal.Equal(decimal.NewFromInt(500)))
}

func TestCart_ExistingLineKeepsStoredPrice(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore(), "s1", quietLogger())
	p := newProduct("Remera", 100)

	require.NoError(t, c.AddItem(ctx, p, 1, nil, nil))
	cheaper := decimal.NewFromInt(10)
	require.NoError(t, c.AddItem(ctx, p, 1, nil, &cheaper))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, lines[0].Subtotal.Equal(decimal.NewFromInt(200)))
}

func TestCart_VariantsAreSeparateLines(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore(), "s1", quietLogger())
	p := newProduct("Buzo", 50)
	override := decimal.NewFromInt(60)
	m := domain.Variant{ID: uuid.New(), ProductID: p.ID, Code: "M", Price: &override, Active: true}
	s := domain.Variant{ID: uuid.New(), ProductID: p.ID, Code: "S", Active: true}

	require.NoError(t, c.AddItem(ctx, p, 1, &m, nil))
	require.NoError(t, c.AddItem(ctx, p, 2, &s, nil))
	require.NoError(t, c.AddItem(ctx, p, 1, nil, nil))

	assert.Len(t, c.Lines(), 3)
	assert.Equal(t, int64(4), c.TotalQuantity())
	// 60 + 2*50 + 50
	assert.True(t, c.Subtotal().Equal(decimal.NewFromInt(210)))
	assert.True(t, c.Contains(p.ID, m.ID))
	assert.Equal(t, int64(2), c.QuantityOf(p.ID, s.ID))
	assert.Equal(t, "M", c.Lines()[0].VariantCode)

	foreign := domain.Variant{ID: uuid.New(), ProductID: uuid.New(), Code: "L"}
	assert.ErrorIs(t, c.AddItem(ctx, p, 1, &foreign, nil), domain.ErrInvalidInput)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore(), "s1", quietLogger())
	a := newProduct("A", 100)
	b := newProduct("B", 30)
	require.NoError(t, c.AddItem(ctx, a, 1, nil, nil))
	require.NoError(t, c.AddItem(ctx, b, 1, nil, nil))

	require.NoError(t, c.UpdateQuantity(ctx, a.ID, uuid.Nil, 4))
	assert.True(t, c.Subtotal().Equal(decimal.NewFromInt(430)))

	require.NoError(t, c.UpdateQuantity(ctx, b.ID, uuid.Nil, 0))
	assert.False(t, c.Contains(b.ID, uuid.Nil))

	// missing line is a no-op
	require.NoError(t, c.RemoveItem(ctx, uuid.New(), uuid.Nil))
	assert.Len(t, c.Lines(), 1)

	require.NoError(t, c.Clear(ctx))
	assert.True(t, c.Empty())
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_RejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore(), "s1", quietLogger())
	assert.ErrorIs(t, c.AddItem(ctx, newProduct("A", 1), 0, nil, nil), domain.ErrInvalidInput)
}

func TestCart_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := Open(ctx, store, "s1", quietLogger())
	p := newProduct("A", 100)
	require.NoError(t, c.AddItem(ctx, p, 2, nil, nil))

	reopened := Open(ctx, store, "s1", quietLogger())
	assert.Equal(t, c.Lines(), reopened.Lines())
}

func TestCart_FailedSaveMarksUnsynced(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	logger, hook := test.NewNullLogger()
	c := Open(ctx, store, "s1", logger)
	p := newProduct("A", 100)

	store.fail = true
	err := c.AddItem(ctx, p, 1, nil, nil)
	require.ErrorIs(t, err, ErrNotSynced)
	assert.False(t, c.Synced())
	assert.Equal(t, int64(1), c.QuantityOf(p.ID, uuid.Nil), "in-memory change is kept")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)

	store.fail = false
	require.NoError(t, c.Flush(ctx))
	assert.True(t, c.Synced())
	stored, _ := store.Load(ctx, "s1")
	assert.Len(t, stored, 1)
}

func TestRegistry_KeepsUnsyncedCarts(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	reg := NewRegistry(store, quietLogger())
	p := newProduct("A", 100)

	store.fail = true
	_, err := reg.Update(ctx, "s1", func(c *Cart) error { return c.AddItem(ctx, p, 2, nil, nil) })
	require.ErrorIs(t, err, ErrNotSynced)
	assert.Equal(t, 1, reg.Pending())
	assert.Equal(t, int64(2), reg.Get(ctx, "s1").QuantityOf(p.ID, uuid.Nil))

	store.fail = false
	c, err := reg.Update(ctx, "s1", func(c *Cart) error { return c.AddItem(ctx, p, 1, nil, nil) })
	require.NoError(t, err)
	assert.True(t, c.Synced())
	assert.Equal(t, 0, reg.Pending())
	stored, _ := store.Load(ctx, "s1")
	require.Len(t, stored, 1)
	assert.Equal(t, int64(3), stored[0].Quantity)
}

type slowStore struct {
	*MemoryStore
}

func (s slowStore) Load(ctx context.Context, key string) ([]Line, error) {
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.Load(ctx, key)
}

func TestRegistry_ConcurrentUpdatesOnOneSession(t *testing.T) {
	ctx := context.Background()
	store := slowStore{NewMemoryStore()}
	reg := NewRegistry(store, quietLogger())
	p := newProduct("A", 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Update(ctx, "s1", func(c *Cart) error { return c.AddItem(ctx, p, 1, nil, nil) })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(20), stored[0].Quantity)
	assert.Empty(t, reg.sessions)
}
