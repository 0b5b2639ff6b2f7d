package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ErrStockConflict is returned by DecrementStock when the row no longer holds enough stock.
var ErrStockConflict = errors.New("stock changed concurrently")

// ProductFilter narrows a product listing. Zero values match everything.
type ProductFilter struct {
	NameSubstring string
	Category      string
	OnlyActive    bool
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

// ProductRepository is the StockLevel store plus product catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	// LockForUpdate returns the products ordered by id and keeps them locked until the
	// surrounding transaction ends. Missing ids yield domain.ErrNotFound.
	LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error)
	// DecrementStock subtracts qty only while stock >= qty, else ErrStockConflict.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error
}

type VariantRepository interface {
	CreateVariant(ctx context.Context, v *domain.Variant) error
	UpdateVariant(ctx context.Context, v *domain.Variant) error
	GetVariant(ctx context.Context, id uuid.UUID) (*domain.Variant, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error)
}

type MovementRepository interface {
	AppendMovement(ctx context.Context, m *domain.StockMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID) ([]domain.StockMovement, error)
}

type ClientRepository interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error)
}

// OrderFilter selects orders for the admin list. Limit 0 means no limit.
type OrderFilter struct {
	Status domain.OrderStatus
	Limit  int
}

// OrderRepository stores order headers and their lines.
type OrderRepository interface {
	// Create stores the header; a taken order number yields domain.ErrDuplicateOrderNumber.
	Create(ctx context.Context, o *domain.Order) error
	CreateLines(ctx context.Context, lines []domain.OrderLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// GetForUpdate loads the header and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Lines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, at time.Time) error
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// PendingDemand sums ordered quantities per product over orders still awaiting contact.
	PendingDemand(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// TxManager runs fn atomically. Nested calls join the outer transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchesProduct(p domain.Product, f ProductFilter) bool {
	if !containsIgnoreCase(p.Name, f.NameSubstring) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.OnlyActive && !p.Active {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}
