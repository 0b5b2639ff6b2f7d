package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrStockShortfall       = errors.New("stock shortfall")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrPersistence          = errors.New("persistence failure")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// Shortfall describes one product whose stock cannot cover the requested quantity.
type Shortfall struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Available   int64     `json:"available"`
	Requested   int64     `json:"requested"`
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%s (available: %d, requested: %d)", s.ProductName, s.Available, s.Requested)
}

func joinShortfalls(lines []Shortfall) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, "; ")
}

// StockShortfallError is returned by checkout when requested quantities exceed stock.
// Nothing is persisted when it is returned.
type StockShortfallError struct {
	Lines []Shortfall
}

func (e *StockShortfallError) Error() string {
	return "stock shortfall: " + joinShortfalls(e.Lines)
}

func (e *StockShortfallError) Is(target error) bool { return target == ErrStockShortfall }

// InsufficientStockError is returned when confirming an order whose stock drifted
// below the ordered quantities. The order keeps its previous status.
type InsufficientStockError struct {
	Lines []Shortfall
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock: " + joinShortfalls(e.Lines)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PersistenceError wraps an infrastructure failure of the storage layer.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// TransitionError names the rejected move.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
