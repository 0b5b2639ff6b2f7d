package domain

// OrderStatus is the order lifecycle state. Values are the stored strings.
type OrderStatus string

const (
	StatusPendingContact OrderStatus = "PENDIENTE_CONTACTO"
	StatusConfirmed      OrderStatus = "CONFIRMADO"
	StatusPreparing      OrderStatus = "EN_PREPARACION"
	StatusReady          OrderStatus = "LISTO_ENTREGA"
	StatusDelivered      OrderStatus = "ENTREGADO"
	StatusCancelled      OrderStatus = "CANCELADO"
)

// AllStatuses in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPendingContact,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

// transitions lists the allowed moves out of every non-terminal state. Only the next
// step on the forward path or a cancellation is allowed, so confirmation cannot be skipped.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingContact: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusDelivered, StatusCancelled},
}

func (s OrderStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Staying in the same state is not a transition; callers handle it separately.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
