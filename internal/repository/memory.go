package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"storefront/internal/domain"
)

// MemoryStore keeps the catalog and the order book in process memory.
type MemoryStore struct {
	mu sync.RWMutex
	memoryTables
}

type memoryTables struct {
	productsByID map[uuid.UUID]domain.Product
	variantsByID map[uuid.UUID]domain.Variant
	movements    map[uuid.UUID][]domain.StockMovement
	clientsByID  map[uuid.UUID]domain.Client
	ordersByID   map[uuid.UUID]domain.Order
	orderNumbers map[string]uuid.UUID
	linesByOrder map[uuid.UUID][]domain.OrderLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memoryTables: memoryTables{
		productsByID: make(map[uuid.UUID]domain.Product),
		variantsByID: make(map[uuid.UUID]domain.Variant),
		movements:    make(map[uuid.UUID][]domain.StockMovement),
		clientsByID:  make(map[uuid.UUID]domain.Client),
		ordersByID:   make(map[uuid.UUID]domain.Order),
		orderNumbers: make(map[string]uuid.UUID),
		linesByOrder: make(map[uuid.UUID][]domain.OrderLine),
	}}
}

// snapshot copies every table so a failed transaction can be undone.
func (t memoryTables) snapshot() memoryTables {
	return memoryTables{
		productsByID: cloneMap(t.productsByID),
		variantsByID: cloneMap(t.variantsByID),
		movements:    cloneMap(t.movements),
		clientsByID:  cloneMap(t.clientsByID),
		ordersByID:   cloneMap(t.ordersByID),
		orderNumbers: cloneMap(t.orderNumbers),
		linesByOrder: cloneMap(t.linesByOrder),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ ProductRepository  = (*MemoryStore)(nil)
	_ VariantRepository  = (*MemoryStore)(nil)
	_ MovementRepository = (*MemoryStore)(nil)
)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	old, ok := m.productsByID[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return domain.ErrNotFound
	}
	for _, lines := range m.linesByOrder {
		for _, l := range lines {
			if l.ProductID == id {
				return errors.Wrap(domain.ErrInvalidInput, "product is referenced by orders")
			}
		}
	}
	delete(m.productsByID, id)
	for vid, v := range m.variantsByID {
		if v.ProductID == id {
			delete(m.variantsByID, vid)
		}
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if matchesProduct(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LockForUpdate relies on MemoryTx holding the store's write lock; outside a
// transaction it is a plain read.
func (m *MemoryStore) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		p, ok := m.productsByID[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock < qty {
		return ErrStockConflict
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	m.productsByID[id] = p
	return nil
}

// VariantRepository implementation
func (m *MemoryStore) CreateVariant(ctx context.Context, v *domain.Variant) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[v.ProductID]; !ok {
		return domain.ErrNotFound
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	m.variantsByID[v.ID] = *v
	return nil
}

func (m *MemoryStore) UpdateVariant(ctx context.Context, v *domain.Variant) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.variantsByID[v.ID]; !ok {
		return domain.ErrNotFound
	}
	m.variantsByID[v.ID] = *v
	return nil
}

func (m *MemoryStore) GetVariant(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	v, ok := m.variantsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := v
	return &cp, nil
}

func (m *MemoryStore) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Variant, 0)
	for _, v := range m.variantsByID {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// MovementRepository implementation
func (m *MemoryStore) AppendMovement(ctx context.Context, mv *domain.StockMovement) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	m.movements[mv.ProductID] = append(m.movements[mv.ProductID], *mv)
	return nil
}

func (m *MemoryStore) ListMovements(ctx context.Context, productID uuid.UUID) ([]domain.StockMovement, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	src := m.movements[productID]
	out := make([]domain.StockMovement, len(src))
	copy(out, src)
	return out, nil
}

// OrderRepository and ClientRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var (
	_ OrderRepository  = (*MemoryOrders)(nil)
	_ ClientRepository = (*MemoryOrders)(nil)
)

func (mo *MemoryOrders) CreateClient(ctx context.Context, c *domain.Client) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	mo.store.clientsByID[c.ID] = *c
	return nil
}

func (mo *MemoryOrders) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	c, ok := mo.store.clientsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, taken := mo.store.orderNumbers[o.Number]; taken {
		return domain.ErrDuplicateOrderNumber
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	header := *o
	header.Client, header.Lines = nil, nil
	mo.store.ordersByID[o.ID] = header
	mo.store.orderNumbers[o.Number] = o.ID
	return nil
}

func (mo *MemoryOrders) CreateLines(ctx context.Context, lines []domain.OrderLine) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	for i := range lines {
		if _, ok := mo.store.ordersByID[lines[i].OrderID]; !ok {
			return domain.ErrNotFound
		}
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		mo.store.linesByOrder[lines[i].OrderID] = append(mo.store.linesByOrder[lines[i].OrderID], lines[i])
	}
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return mo.GetByID(ctx, id)
}

func (mo *MemoryOrders) Lines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	src := mo.store.linesByOrder[orderID]
	out := make([]domain.OrderLine, len(src))
	copy(out, src)
	return out, nil
}

func (mo *MemoryOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, at time.Time) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	mo.store.ordersByID[id] = o
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.ordersByID {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (mo *MemoryOrders) PendingDemand(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	wanted := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	demand := make(map[uuid.UUID]int64)
	for orderID, lines := range mo.store.linesByOrder {
		if mo.store.ordersByID[orderID].Status != domain.StatusPendingContact {
			continue
		}
		for _, l := range lines {
			if wanted[l.ProductID] {
				demand[l.ProductID] += l.Quantity
			}
		}
	}
	return demand, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	// The write lock is held for the whole tx; the ctx flag tells repositories
	// not to lock again. Tables are restored from the snapshot on error.
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	before := tx.store.memoryTables.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		tx.store.memoryTables = before
		return err
	}
	return nil
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
