package httpx

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// API bundles the handlers served behind the actor middleware.
type API struct {
	Orders *OrdersHandler
	Stock  *StockHandler
	Admin  *AdminHandler
}

func (a *API) Router(log *zap.Logger) *chi.Mux {
	r := NewRouter(log)
	r.Group(func(r chi.Router) {
		r.Use(WithActor)
		if a.Orders != nil {
			a.Orders.Register(r)
		}
		if a.Stock != nil {
			a.Stock.Register(r)
		}
		if a.Admin != nil {
			a.Admin.Register(r)
		}
	})
	return r
}
