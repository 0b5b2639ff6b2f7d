package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Stock is the aggregate counter: when the product has
// variants it equals the sum of the active variants' stock.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	Active      bool            `json:"active"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variant is a size ("talle") of a product with its own stock and optional price.
type Variant struct {
	ID        uuid.UUID        `json:"id"`
	ProductID uuid.UUID        `json:"product_id"`
	Code      string           `json:"code"`
	Name      string           `json:"name,omitempty"`
	Position  int              `json:"position"`
	Stock     int64            `json:"stock"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Active    bool             `json:"active"`
}

// EffectivePrice returns the variant override or the given product price.
func (v Variant) EffectivePrice(productPrice decimal.Decimal) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return productPrice
}

// Client is the contact captured at checkout. A new row is written per order.
type Client struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	Email string    `json:"email,omitempty"`
}

// Order header.
type Order struct {
	ID        uuid.UUID       `json:"id"`
	Number    string          `json:"number"`
	ClientID  uuid.UUID       `json:"client_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Status    OrderStatus     `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Client *Client     `json:"client,omitempty"`
	Lines  []OrderLine `json:"lines,omitempty"`
}

// OrderLine is immutable once written. UnitPrice is the product price at creation time.
type OrderLine struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	VariantCode string          `json:"variant_code,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// StockMovement records one change of a product's aggregate stock.
type StockMovement struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Delta     int64      `json:"delta"`
	Before    int64      `json:"before"`
	After     int64      `json:"after"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}

// Stock movement reasons.
const (
	MovementOrderConfirmed = "order_confirmed"
	MovementManualAdjust   = "manual_adjust"
	MovementVariantSync    = "variant_sync"
)

// OrderStats aggregates the order book for the admin dashboard.
type OrderStats struct {
	TotalOrders int                 `json:"total_orders"`
	ByStatus    map[OrderStatus]int `json:"by_status"`
	TotalSales  decimal.Decimal     `json:"total_sales"`
}
