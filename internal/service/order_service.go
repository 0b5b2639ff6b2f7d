package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/repository"
)

// Notifier receives a summary of every created order. It must not fail the caller.
type Notifier interface {
	Dispatch(ctx context.Context, s notify.OrderSummary)
}

// NumberGenerator returns a human-readable order number for the given instant.
type NumberGenerator func(t time.Time) string

// RandomOrderNumber yields PED-yyyyMMdd-NNNN.
func RandomOrderNumber(t time.Time) string {
	return fmt.Sprintf("PED-%s-%04d", t.Format("20060102"), rand.Intn(10000))
}

// OrderDeps are the collaborators of OrderService.
type OrderDeps struct {
	Products  repository.ProductRepository
	Variants  repository.VariantRepository
	Movements repository.MovementRepository
	Orders    repository.OrderRepository
	Clients   repository.ClientRepository
	Tx        repository.TxManager
	Notifier  Notifier
	Log       log.FieldLogger
}

type OrderOption func(*OrderService)

// WithNumberAttempts bounds the retries on an order number collision.
func WithNumberAttempts(n int) OrderOption {
	return func(s *OrderService) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithNumberGenerator(g NumberGenerator) OrderOption {
	return func(s *OrderService) { s.numbers = g }
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

// OrderService runs the order lifecycle: checkout, status changes and stock deduction.
type OrderService struct {
	products  repository.ProductRepository
	variants  repository.VariantRepository
	movements repository.MovementRepository
	orders    repository.OrderRepository
	clients   repository.ClientRepository
	tx        repository.TxManager
	notifier  Notifier
	log       log.FieldLogger

	numbers  NumberGenerator
	attempts int
	now      func() time.Time
}

func NewOrderService(deps OrderDeps, opts ...OrderOption) *OrderService {
	s := &OrderService{
		products:  deps.Products,
		variants:  deps.Variants,
		movements: deps.Movements,
		orders:    deps.Orders,
		clients:   deps.Clients,
		tx:        deps.Tx,
		notifier:  deps.Notifier,
		log:       deps.Log,
		numbers:   RandomOrderNumber,
		attempts:  5,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ItemRequest asks for a quantity of a product, optionally of one variant.
type ItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int64     `json:"quantity"`
}

// CheckoutRequest is everything needed to turn cart lines into an order.
type CheckoutRequest struct {
	Client domain.Client
	Lines  []cart.Line
	Notes  string
	UserID *uuid.UUID
}

// PriceItems resolves items against the catalog the same way the cart does,
// merging repeated (product, variant) pairs.
func (s *OrderService) PriceItems(ctx context.Context, items []ItemRequest) ([]cart.Line, error) {
	c := cart.Open(ctx, cart.NewMemoryStore(), "", s.log)
	for _, it := range items {
		if it.ProductID == uuid.Nil {
			return nil, invalid("product id is required")
		}
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "product %s", it.ProductID)
		}
		var variant *domain.Variant
		if it.VariantID != uuid.Nil {
			if variant, err = s.variants.GetVariant(ctx, it.VariantID); err != nil {
				return nil, errors.Wrapf(err, "variant %s", it.VariantID)
			}
		}
		if err := c.AddItem(ctx, *p, it.Quantity, variant, nil); err != nil {
			return nil, err
		}
	}
	return c.Lines(), nil
}

func validateCheckout(req CheckoutRequest) error {
	if strings.TrimSpace(req.Client.Name) == "" || strings.TrimSpace(req.Client.Phone) == "" {
		return invalid("client name and phone are required")
	}
	if len(req.Lines) == 0 {
		return invalid("order has no lines")
	}
	for _, l := range req.Lines {
		if l.ProductID == uuid.Nil {
			return invalid("product id is required")
		}
		if l.Quantity < 1 {
			return invalid("quantity must be at least 1")
		}
	}
	return nil
}

// demandOf sums quantities per product and keeps first-seen order.
func demandOf[T any](items []T, key func(T) (uuid.UUID, int64)) ([]uuid.UUID, map[uuid.UUID]int64) {
	ids := make([]uuid.UUID, 0, len(items))
	qty := make(map[uuid.UUID]int64, len(items))
	for _, it := range items {
		id, n := key(it)
		if _, seen := qty[id]; !seen {
			ids = append(ids, id)
		}
		qty[id] += n
	}
	return ids, qty
}

// CreateOrder validates stock and writes client, order and lines in one
// transaction. Stock is checked against what pending orders already hold.
// Nothing is written when a StockShortfallError is returned.
func (s *OrderService) CreateOrder(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}
	ids, requested := demandOf(req.Lines, func(l cart.Line) (uuid.UUID, int64) { return l.ProductID, l.Quantity })

	var created *domain.Order
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		number := s.numbers(s.now())
		created, err = s.createOnce(ctx, req, number, ids, requested)
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			break
		}
		s.log.WithFields(log.Fields{"numero_pedido": number, "attempt": attempt}).Warn("order number taken, retrying")
	}
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(log.Fields{"order_id": created.ID, "numero_pedido": created.Number})
	entry.WithField("total", created.Total.StringFixed(2)).Info("order created")
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, summaryOf(created, req.Lines))
	}
	return created, nil
}

func (s *OrderService) createOnce(ctx context.Context, req CheckoutRequest, number string, ids []uuid.UUID, requested map[uuid.UUID]int64) (*domain.Order, error) {
	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.products.LockForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "load products")
		}
		byID := make(map[uuid.UUID]domain.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}
		pending, err := s.orders.PendingDemand(ctx, ids)
		if err != nil {
			return err
		}

		var shortfalls []domain.Shortfall
		for _, id := range ids {
			p := byID[id]
			available := p.Stock - pending[id]
			if available < 0 {
				available = 0
			}
			if available < requested[id] {
				shortfalls = append(shortfalls, domain.Shortfall{
					ProductID: id, ProductName: p.Name, Available: available, Requested: requested[id],
				})
			}
		}
		if len(shortfalls) > 0 {
			return &domain.StockShortfallError{Lines: shortfalls}
		}

		client := req.Client
		client.ID = uuid.Nil
		if err := s.clients.CreateClient(ctx, &client); err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, l := range req.Lines {
			subtotal = subtotal.Add(l.Subtotal)
		}
		o := domain.Order{
			Number:   number,
			ClientID: client.ID,
			UserID:   req.UserID,
			Status:   domain.StatusPendingContact,
			Subtotal: subtotal,
			Total:    subtotal,
			Notes:    strings.TrimSpace(req.Notes),
		}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}

		lines := make([]domain.OrderLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			line := domain.OrderLine{
				OrderID:   o.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				// snapshot of the product price, not the line's effective price
				UnitPrice:   byID[l.ProductID].Price,
				Subtotal:    l.Subtotal,
				VariantCode: l.VariantCode,
			}
			if l.VariantID != uuid.Nil {
				vid := l.VariantID
				line.VariantID = &vid
			}
			lines = append(lines, line)
		}
		if err := s.orders.CreateLines(ctx, lines); err != nil {
			return err
		}

		o.Client = &client
		o.Lines = lines
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func summaryOf(o *domain.Order, lines []cart.Line) notify.OrderSummary {
	s := notify.OrderSummary{
		OrderID:   o.ID,
		Number:    o.Number,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		Total:     o.Total,
		Lines:     make([]notify.SummaryLine, 0, len(lines)),
	}
	if o.Client != nil {
		s.Client = *o.Client
	}
	for _, l := range lines {
		s.Lines = append(s.Lines, notify.SummaryLine{
			ProductName: l.ProductName, VariantCode: l.VariantCode, Quantity: l.Quantity, Subtotal: l.Subtotal,
		})
	}
	return s
}

// Checkout creates an order from the cart and empties it. A failure to save
// the emptied cart is logged; the order stands.
func (s *OrderService) Checkout(ctx context.Context, c *cart.Cart, req CheckoutRequest) (*domain.Order, error) {
	req.Lines = c.Lines()
	o, err := s.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.Clear(ctx); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("cart not cleared after checkout")
	}
	return o, nil
}

// GetOrder returns the header with its client and lines.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if id == uuid.Nil {
		return nil, invalid("order id is required")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Client, err = s.clients.GetClient(ctx, o.ClientID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if o.Lines, err = s.orders.Lines(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown status " + string(f.Status))
	}
	if f.Limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	return s.orders.List(ctx, f)
}

// Stats counts orders per status and sums the total of every order that was
// not cancelled.
func (s *OrderService) Stats(ctx context.Context) (*domain.OrderStats, error) {
	all, err := s.orders.List(ctx, repository.OrderFilter{})
	if err != nil {
		return nil, err
	}
	st := &domain.OrderStats{ByStatus: make(map[domain.OrderStatus]int, len(domain.AllStatuses)), TotalSales: decimal.Zero}
	for _, status := range domain.AllStatuses {
		st.ByStatus[status] = 0
	}
	for _, o := range all {
		st.TotalOrders++
		st.ByStatus[o.Status]++
		if o.Status != domain.StatusCancelled {
			st.TotalSales = st.TotalSales.Add(o.Total)
		}
	}
	return st, nil
}

// Transition moves the order to next. Entering CONFIRMADO deducts stock in
// the same transaction; if that fails the status is left as it was. Repeating
// the current status only refreshes the timestamp.
func (s *OrderService) Transition(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if id == uuid.Nil {
		return nil, invalid("order id is required")
	}
	if !next.Valid() {
		return nil, invalid("unknown status " + string(next))
	}

	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != next {
			if !o.Status.CanTransitionTo(next) {
				return &domain.TransitionError{From: o.Status, To: next}
			}
			if next == domain.StatusConfirmed {
				if err := s.DeductStock(ctx, id); err != nil {
					return err
				}
			}
		}
		at := s.now()
		if err := s.orders.UpdateStatus(ctx, id, next, at); err != nil {
			return err
		}
		o.Status, o.UpdatedAt = next, at
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(log.Fields{"order_id": id, "numero_pedido": updated.Number, "status": next}).Info("order status changed")
	return updated, nil
}

// DeductStock subtracts every line of the order from its product's aggregate
// stock. Either all lines are deducted or none: every product is locked and
// checked before the first write.
func (s *OrderService) DeductStock(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.orders.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		ids, requested := demandOf(lines, func(l domain.OrderLine) (uuid.UUID, int64) { return l.ProductID, l.Quantity })
		locked, err := s.products.LockForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "load products")
		}

		var short []domain.Shortfall
		for _, p := range locked {
			if p.Stock < requested[p.ID] {
				short = append(short, domain.Shortfall{
					ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: requested[p.ID],
				})
			}
		}
		if len(short) > 0 {
			return &domain.InsufficientStockError{Lines: short}
		}

		oid := orderID
		for _, p := range locked {
			qty := requested[p.ID]
			if err := s.products.DecrementStock(ctx, p.ID, qty); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return &domain.InsufficientStockError{Lines: []domain.Shortfall{{
						ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: qty,
					}}}
				}
				return err
			}
			if err := s.movements.AppendMovement(ctx, &domain.StockMovement{
				ProductID: p.ID, OrderID: &oid, Delta: -qty, Before: p.Stock, After: p.Stock - qty,
				Reason: domain.MovementOrderConfirmed,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
