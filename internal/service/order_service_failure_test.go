package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository"
)

var errConnReset = errors.New("connection reset by peer")

// brokenLines fails CreateLines after the client and order rows are written.
type brokenLines struct {
	*repository.MemoryOrders
	clients []uuid.UUID
}

func (b *brokenLines) CreateClient(ctx context.Context, c *domain.Client) error {
	if err := b.MemoryOrders.CreateClient(ctx, c); err != nil {
		return err
	}
	b.clients = append(b.clients, c.ID)
	return nil
}

func (b *brokenLines) CreateLines(context.Context, []domain.OrderLine) error {
	return &domain.PersistenceError{Op: "insert order lines", Err: errConnReset}
}

// brokenStock fails the n-th DecrementStock or the n-th confirmation movement.
type brokenStock struct {
	*repository.MemoryStore
	decrementFailsOn int
	movementFailsOn  int
	decrements       int
	movements        int
}

func (b *brokenStock) DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	b.decrements++
	if b.decrements == b.decrementFailsOn {
		return &domain.PersistenceError{Op: "decrement stock", Err: errConnReset}
	}
	return b.MemoryStore.DecrementStock(ctx, id, qty)
}

func (b *brokenStock) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	if m.Reason == domain.MovementOrderConfirmed {
		b.movements++
		if b.movements == b.movementFailsOn {
			return &domain.PersistenceError{Op: "insert movement", Err: errConnReset}
		}
	}
	return b.MemoryStore.AppendMovement(ctx, m)
}

func TestCreateOrder_FailedLineInsertLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := repository.NewMemoryStore()
	orders := &brokenLines{MemoryOrders: repository.NewMemoryOrders(store)}
	tx := repository.NewMemoryTx(store)
	n := &recordingNotifier{}
	svc := NewOrderService(OrderDeps{
		Products: store, Variants: store, Movements: store,
		Orders: orders, Clients: orders, Tx: tx, Notifier: n, Log: logger,
	})
	products := NewProductService(store, store, store, tx, logger)
	a, err := products.Create(ctx, domain.Product{Name: "A", Price: price(100), Stock: 5, Active: true})
	require.NoError(t, err)
	b, err := products.Create(ctx, domain.Product{Name: "B", Price: price(50), Stock: 5, Active: true})
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, CheckoutRequest{Client: ana(), Lines: []cart.Line{lineFor(a, 2), lineFor(b, 1)}})
	require.ErrorIs(t, err, domain.ErrPersistence)

	require.Len(t, orders.clients, 1)
	_, err = orders.GetClient(ctx, orders.clients[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := svc.ListOrders(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	demand, err := orders.PendingDemand(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Empty(t, demand)
	assert.Empty(t, n.sent)
}

func confirmWithBrokenStock(t *testing.T, broken *brokenStock) (*OrderService, []*domain.Product, *domain.Order) {
	t.Helper()
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := broken.MemoryStore
	orders := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)
	svc := NewOrderService(OrderDeps{
		Products: broken, Variants: store, Movements: broken,
		Orders: orders, Clients: orders, Tx: tx, Log: logger,
	})
	products := NewProductService(store, store, store, tx, logger)

	var ps []*domain.Product
	var lines []cart.Line
	for _, name := range []string{"A", "B", "C"} {
		p, err := products.Create(ctx, domain.Product{Name: name, Price: price(10), Stock: 5, Active: true})
		require.NoError(t, err)
		ps = append(ps, p)
		lines = append(lines, lineFor(p, 2))
	}
	o, err := svc.CreateOrder(ctx, CheckoutRequest{Client: ana(), Lines: lines})
	require.NoError(t, err)
	return svc, ps, o
}

func assertNothingDeducted(t *testing.T, svc *OrderService, store *repository.MemoryStore, ps []*domain.Product, o *domain.Order) {
	t.Helper()
	ctx := context.Background()
	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingContact, got.Status)
	for _, p := range ps {
		cur, err := store.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), cur.Stock, p.Name)
		moves, err := store.ListMovements(ctx, p.ID)
		require.NoError(t, err)
		for _, m := range moves {
			assert.NotEqual(t, domain.MovementOrderConfirmed, m.Reason, p.Name)
		}
	}
}

func TestTransition_FailedSecondDecrementRollsBackFirst(t *testing.T) {
	broken := &brokenStock{MemoryStore: repository.NewMemoryStore(), decrementFailsOn: 2}
	svc, ps, o := confirmWithBrokenStock(t, broken)

	_, err := svc.Transition(context.Background(), o.ID, domain.StatusConfirmed)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 2, broken.decrements)
	assertNothingDeducted(t, svc, broken.MemoryStore, ps, o)
}

func TestTransition_FailedMovementRollsBackDeduction(t *testing.T) {
	broken := &brokenStock{MemoryStore: repository.NewMemoryStore(), movementFailsOn: 3}
	svc, ps, o := confirmWithBrokenStock(t, broken)

	_, err := svc.Transition(context.Background(), o.ID, domain.StatusConfirmed)
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 3, broken.decrements)
	assertNothingDeducted(t, svc, broken.MemoryStore, ps, o)

	// once storage recovers the same order confirms normally
	broken.movementFailsOn = 0
	_, err = svc.Transition(context.Background(), o.ID, domain.StatusConfirmed)
	require.NoError(t, err)
	for _, p := range ps {
		cur, _ := broken.MemoryStore.GetByID(context.Background(), p.ID)
		assert.Equal(t, int64(3), cur.Stock)
	}
}
