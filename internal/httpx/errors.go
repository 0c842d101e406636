package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string  `json:"error"`
	Component string  `json:"component,omitempty"`
	Required  float64 `json:"required,omitempty"`
	Available float64 `json:"available,omitempty"`
}

// writeError maps domain errors to status codes. Anything unknown is logged
// and reported as 500 without details.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var short *stock.InsufficientStockError
	switch {
	case errors.As(err, &short):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:     err.Error(),
			Component: short.Component.Name,
			Required:  short.Required,
			Available: short.Available,
		})
	case errors.Is(err, auth.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrConflict),
		errors.Is(err, orders.ErrPaymentClosed),
		errors.Is(err, assign.ErrJobRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, catalog.ErrInvalidAmount),
		errors.Is(err, stock.ErrInvalidBatch),
		errors.Is(err, assign.ErrUnknownJob):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
