package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func setupPS(t *testing.T) *ProductService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := repository.NewMemoryStore()
	return NewProductService(store, store, store, repository.NewMemoryTx(store), logger)
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestProduct_Create_Valid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "Remera", SKU: "REM-1", Price: price(100), Stock: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Fatalf("expected id assigned")
	}

	moves, err := ps.ListMovements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, int64(10), moves[0].Delta)
	assert.Equal(t, domain.MovementManualAdjust, moves[0].Reason)
}

func TestProduct_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	for name, p := range map[string]domain.Product{
		"empty name":     {Name: " ", Price: price(1), Stock: 1},
		"negative price": {Name: "N", Price: price(-1), Stock: 1},
		"negative stock": {Name: "N", Price: price(1), Stock: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ps.Create(ctx, p)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestProduct_Update_Get_Delete(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "A", SKU: "S1", Price: price(10), Stock: 5})
	require.NoError(t, err)

	got, err := ps.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// stock is not editable through Update
	p.Name = "A+"
	p.Price = price(12)
	p.Stock = 7
	up, err := ps.Update(ctx, *p)
	require.NoError(t, err)
	assert.Equal(t, "A+", up.Name)
	assert.True(t, up.Price.Equal(price(12)))
	assert.Equal(t, int64(5), up.Stock)

	require.NoError(t, ps.Delete(ctx, p.ID))
	_, err = ps.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ps.GetByID(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProduct_SetStock(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "A", Price: price(10), Stock: 5})
	require.NoError(t, err)

	up, err := ps.SetStock(ctx, p.ID, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), up.Stock)

	moves, _ := ps.ListMovements(ctx, p.ID)
	require.Len(t, moves, 2)
	assert.Equal(t, int64(3), moves[1].Delta)
	assert.Equal(t, int64(5), moves[1].Before)

	_, err = ps.SetStock(ctx, p.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ps.SetStock(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProduct_VariantsDriveAggregateStock(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "Buzo", Price: price(50), Stock: 0})
	require.NoError(t, err)

	s, err := ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: "S", Position: 1, Stock: 2, Active: true})
	require.NoError(t, err)
	m, err := ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: "M", Position: 2, Stock: 3, Active: true})
	require.NoError(t, err)

	got, _ := ps.GetByID(ctx, p.ID)
	assert.Equal(t, int64(5), got.Stock)

	// deactivating a variant removes its stock from the aggregate
	m.Active = false
	_, err = ps.UpdateVariant(ctx, *m)
	require.NoError(t, err)
	got, _ = ps.GetByID(ctx, p.ID)
	assert.Equal(t, int64(2), got.Stock)

	s.Stock = 6
	_, err = ps.UpdateVariant(ctx, *s)
	require.NoError(t, err)
	got, _ = ps.GetByID(ctx, p.ID)
	assert.Equal(t, int64(6), got.Stock)

	list, err := ps.ListVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S", list[0].Code)

	_, err = ps.SetStock(ctx, p.ID, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	moves, _ := ps.ListMovements(ctx, p.ID)
	for _, mv := range moves {
		assert.Equal(t, domain.MovementVariantSync, mv.Reason)
	}
}

func TestProduct_VariantValidation(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	p, err := ps.Create(ctx, domain.Product{Name: "Buzo", Price: price(50)})
	require.NoError(t, err)
	_, err = ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: "S", Active: true})
	require.NoError(t, err)

	_, err = ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	negative := price(-5)
	_, err = ps.CreateVariant(ctx, domain.Variant{ProductID: p.ID, Code: "L", Price: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ps.CreateVariant(ctx, domain.Variant{ProductID: uuid.New(), Code: "L"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ps.UpdateVariant(ctx, domain.Variant{ID: uuid.New(), Code: "L"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProduct_List_Filtering(t *testing.T) {
	ctx := context.Background()
	ps := setupPS(t)
	for _, p := range []domain.Product{
		{Name: "Remera lisa", Price: price(100), Active: true},
		{Name: "Pantalon", Price: price(50), Active: true},
		{Name: "Remera estampada", Price: price(150)},
	} {
		_, err := ps.Create(ctx, p)
		require.NoError(t, err)
	}

	list, err := ps.List(ctx, repository.ProductFilter{NameSubstring: "remera"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	min := price(60)
	list, _ = ps.List(ctx, repository.ProductFilter{MinPrice: &min, OnlyActive: true})
	require.Len(t, list, 1)
	assert.Equal(t, "Remera lisa", list[0].Name)
}

type lockSpy struct {
	*repository.MemoryStore
	locked []uuid.UUID
}

func (l *lockSpy) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	l.locked = append(l.locked, ids...)
	return l.MemoryStore.LockForUpdate(ctx, ids)
}

func TestProduct_Update_LocksRowAndKeepsStock(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := repository.NewMemoryStore()
	spy := &lockSpy{MemoryStore: store}
	ps := NewProductService(spy, store, store, repository.NewMemoryTx(store), logger)

	p, err := ps.Create(ctx, domain.Product{Name: "A", Price: price(10), Stock: 5})
	require.NoError(t, err)
	// stock moves underneath the caller's stale copy
	require.NoError(t, store.DecrementStock(ctx, p.ID, 2))

	stale := *p
	stale.Name = "A+"
	up, err := ps.Update(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, spy.locked)
	assert.Equal(t, int64(3), up.Stock)

	got, _ := ps.GetByID(ctx, p.ID)
	assert.Equal(t, int64(3), got.Stock)
	assert.Equal(t, "A+", got.Name)
}
