package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("order not in required state")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrPaymentClosed     = errors.New("payment is not open")
)
