package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func openTestMySQL(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_MYSQL_DSN not set")
	}
	require.NoError(t, Migrate(dsn, log.New()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := OpenMySQL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("user:pass@tcp(localhost:3306)/shop")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")

	_, err = NormalizeDSN("::not a dsn")
	assert.Error(t, err)
}

func TestMySQL_OrderRoundTripAndRollback(t *testing.T) {
	db := openTestMySQL(t)
	ctx := context.Background()
	store := NewMySQLStore(db)
	orders := NewMySQLOrders(db)
	tx := NewMySQLTx(db)

	p := domain.Product{Name: "Remera " + uuid.NewString()[:8], Price: decimal.NewFromInt(100), Stock: 4, Active: true}
	require.NoError(t, store.Create(ctx, &p))

	number := "PED-T-" + uuid.NewString()[:8]
	var orderID uuid.UUID
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := store.LockForUpdate(ctx, []uuid.UUID{p.ID})
		if err != nil {
			return err
		}
		require.Len(t, locked, 1)
		c := domain.Client{Name: "Ana", Phone: "555"}
		if err := orders.CreateClient(ctx, &c); err != nil {
			return err
		}
		o := domain.Order{Number: number, ClientID: c.ID, Status: domain.StatusPendingContact,
			Subtotal: decimal.NewFromInt(200), Total: decimal.NewFromInt(200)}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		orderID = o.ID
		return orders.CreateLines(ctx, []domain.OrderLine{{OrderID: o.ID, ProductID: p.ID, Quantity: 2,
			UnitPrice: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)}})
	})
	require.NoError(t, err)

	demand, err := orders.PendingDemand(ctx, []uuid.UUID{p.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), demand[p.ID])

	lines, err := orders.Lines(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	got, err := orders.GetByID(ctx, orderID)
	require.NoError(t, err)
	dup := domain.Order{Number: number, ClientID: got.ClientID, Status: domain.StatusPendingContact}
	assert.ErrorIs(t, orders.Create(ctx, &dup), domain.ErrDuplicateOrderNumber)

	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := store.DecrementStock(ctx, p.ID, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	after, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), after.Stock)

	assert.ErrorIs(t, store.DecrementStock(ctx, p.ID, 5), ErrStockConflict)
}
