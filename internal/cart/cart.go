package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

// ErrNotSynced is returned by a mutation that was applied in memory but could
// not be written to the store. Flush retries the write.
var ErrNotSynced = errors.New("cart changes not saved")

// Line is one (product, variant) entry. VariantID is uuid.Nil when the product
// is bought without a variant.
type Line struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   uuid.UUID       `json:"variant_id"`
	VariantCode string          `json:"variant_code,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func (l Line) matches(productID, variantID uuid.UUID) bool {
	return l.ProductID == productID && l.VariantID == variantID
}

// Store is the durable snapshot storage of carts.
type Store interface {
	Load(ctx context.Context, key string) ([]Line, error)
	Save(ctx context.Context, key string, lines []Line) error
}

// Cart holds the lines of one session. Every mutation writes a full snapshot
// to the store.
type Cart struct {
	mu     sync.Mutex
	key    string
	store  Store
	log    log.FieldLogger
	lines  []Line
	synced bool
}

// Open loads the cart stored under key. A load failure is logged and yields an
// empty cart.
func Open(ctx context.Context, store Store, key string, logger log.FieldLogger) *Cart {
	c := &Cart{key: key, store: store, log: logger.WithField("session", key), synced: true}
	lines, err := store.Load(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("cart load failed, starting empty")
		return c
	}
	c.lines = lines
	return c
}

func (c *Cart) Key() string { return c.key }

// AddItem adds qty units. An existing line keeps its stored unit price; a new
// line is priced with override, else the variant price, else the product price.
func (c *Cart) AddItem(ctx context.Context, p domain.Product, qty int64, variant *domain.Variant, override *decimal.Decimal) error {
	if qty < 1 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be at least 1")
	}
	variantID := uuid.Nil
	if variant != nil {
		if variant.ProductID != p.ID {
			return errors.Wrap(domain.ErrInvalidInput, "variant does not belong to product")
		}
		variantID = variant.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].matches(p.ID, variantID) {
			c.lines[i].Quantity += qty
			c.lines[i].Subtotal = c.lines[i].UnitPrice.Mul(decimal.NewFromInt(c.lines[i].Quantity))
			return c.persist(ctx)
		}
	}

	price := p.Price
	line := Line{ProductID: p.ID, ProductName: p.Name, VariantID: variantID, Quantity: qty}
	if variant != nil {
		price = variant.EffectivePrice(p.Price)
		line.VariantCode = variant.Code
	}
	if override != nil {
		price = *override
	}
	line.UnitPrice = price
	line.Subtotal = price.Mul(decimal.NewFromInt(qty))
	c.lines = append(c.lines, line)
	return c.persist(ctx)
}

// UpdateQuantity sets the quantity of a line; qty <= 0 removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, productID, variantID uuid.UUID, qty int64) error {
	if qty <= 0 {
		return c.RemoveItem(ctx, productID, variantID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].matches(productID, variantID) {
			c.lines[i].Quantity = qty
			c.lines[i].Subtotal = c.lines[i].UnitPrice.Mul(decimal.NewFromInt(qty))
			return c.persist(ctx)
		}
	}
	return nil
}

// RemoveItem drops the matching line. A missing line is a no-op.
func (c *Cart) RemoveItem(ctx context.Context, productID, variantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].matches(productID, variantID) {
			c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
			return c.persist(ctx)
		}
	}
	return nil
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	return c.persist(ctx)
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *Cart) TotalQuantity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Subtotal)
	}
	return sum
}

func (c *Cart) Contains(productID, variantID uuid.UUID) bool {
	return c.QuantityOf(productID, variantID) > 0
}

func (c *Cart) QuantityOf(productID, variantID uuid.UUID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.matches(productID, variantID) {
			return l.Quantity
		}
	}
	return 0
}

// Synced reports whether the store holds the current lines.
func (c *Cart) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// Flush rewrites the snapshot if the last write failed.
func (c *Cart) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.synced {
		return nil
	}
	return c.persist(ctx)
}

// persist must be called with mu held.
func (c *Cart) persist(ctx context.Context) error {
	snapshot := make([]Line, len(c.lines))
	copy(snapshot, c.lines)
	if err := c.store.Save(ctx, c.key, snapshot); err != nil {
		c.synced = false
		c.log.WithError(err).Warn("cart save failed")
		return errors.Wrap(ErrNotSynced, err.Error())
	}
	c.synced = true
	return nil
}
