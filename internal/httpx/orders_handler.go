package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/cart"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/ariefcatur/go-flowershop-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Service *orders.Service
	Catalog catalog.Reader
	Cache   *redisx.Cache
	Log     *zap.Logger
}

type CartItemReq struct {
	BouquetID string `json:"bouquet_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderReq struct {
	ExternalID       string           `json:"external_id"`
	Items            []CartItemReq    `json:"items"`
	DeliveryAt       time.Time        `json:"delivery_at"`
	DeliveryDistance float64          `json:"delivery_distance"`
	Address          orders.Address   `json:"address"`
	Recipient        orders.Recipient `json:"recipient"`
}

type CreateOrderResp struct {
	Order      *orders.Order `json:"order"`
	Idempotent bool          `json:"idempotent"`
}

type PayReq struct {
	Method orders.PaymentMethod `json:"method"`
}

type PayResp struct {
	Order   *orders.Order   `json:"order"`
	Payment *orders.Payment `json:"payment"`
}

type LocationReq struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type StockCheckResp struct {
	OrderID    string             `json:"order_id"`
	Sufficient bool               `json:"sufficient"`
	Shortfalls []orders.Shortfall `json:"shortfalls"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/bouquets/{id}/components", h.bouquetComponents)

	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Get("/orders/{id}/payment", h.getPayment)
	r.Post("/orders/{id}/pay", h.pay)
	r.Get("/orders/{id}/stock-check", h.stockCheck)
	r.Post("/orders/{id}/assembly/complete", h.transition(h.Service.CompleteAssembly))
	r.Post("/orders/{id}/delivery/start", h.transition(h.Service.StartDelivery))
	r.Post("/orders/{id}/delivery/complete", h.transition(h.Service.CompleteDelivery))
	r.Post("/orders/{id}/confirm", h.transition(h.Service.ConfirmCompletion))
	r.Post("/orders/{id}/cancel", h.transition(h.Service.Cancel))
	r.Put("/orders/{id}/location", h.updateLocation)
	r.Get("/orders/{id}/location", h.getLocation)

	r.Get("/my/orders", h.listOrders)
	r.Get("/florist/orders", h.listOrders)
	r.Get("/courier/orders", h.listOrders)
	r.Get("/orders", h.listOrders)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}

func (h *OrdersHandler) bouquetComponents(w http.ResponseWriter, r *http.Request) {
	qty := 1
	if s := r.URL.Query().Get("qty"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			badRequest(w, "qty must be an integer")
			return
		}
		qty = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	reqs, err := h.Service.RequiredComponents(ctx, chi.URLParam(r, "id"), qty)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	actor := actorFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// fast path for retried requests; the database stays the source of truth
	if req.ExternalID != "" {
		if id, ok, _ := h.Cache.OrderFor(ctx, req.ExternalID); ok {
			if o, err := h.Service.Get(ctx, actor, id); err == nil {
				writeJSON(w, http.StatusOK, CreateOrderResp{Order: o, Idempotent: true})
				return
			}
		}
	}

	c, err := h.buildCart(ctx, req.Items)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	o, existed, err := h.Service.CreateOrder(ctx, actor, c, orders.Checkout{
		ExternalID:       req.ExternalID,
		DeliveryAt:       req.DeliveryAt,
		DeliveryDistance: req.DeliveryDistance,
		Address:          req.Address,
		Recipient:        req.Recipient,
	})
	if err != nil {
		writeError(w, h.log(), err)
		return
	}

	if req.ExternalID != "" {
		_ = h.Cache.RememberOrder(ctx, req.ExternalID, o.ID)
	}
	h.cacheStatus(ctx, o)

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, CreateOrderResp{Order: o, Idempotent: existed})
}

// buildCart prices request lines from the catalog; prices sent by clients
// are never trusted.
func (h *OrdersHandler) buildCart(ctx context.Context, items []CartItemReq) (*cart.Memory, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.BouquetID)
	}
	bouquets, err := h.Catalog.GetBouquets(ctx, ids)
	if err != nil {
		return nil, err
	}
	c := cart.NewMemory()
	for _, it := range items {
		b, ok := bouquets[it.BouquetID]
		if !ok {
			return nil, fmt.Errorf("%w: bouquet %s is not available", orders.ErrInvalidInput, it.BouquetID)
		}
		c.Add(cart.Line{BouquetID: b.ID, Quantity: it.Quantity, UnitPrice: b.Price})
	}
	return c, nil
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if err := h.Cache.SetStatus(ctx, o.ID, redisx.StatusEntry{
		Status:     string(o.Status),
		CustomerID: o.CustomerID,
		FloristID:  o.FloristID,
		CourierID:  o.CourierID,
		UpdatedAt:  o.UpdatedAt,
	}); err != nil {
		h.log().Warn("cache order status", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus answers from the cache when the cached parties allow the actor,
// and falls back to the database otherwise.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor := actorFrom(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if e, ok, err := h.Cache.Status(ctx, orderID); err == nil && ok {
		own := auth.Ownership{CustomerID: e.CustomerID, FloristID: e.FloristID, CourierID: e.CourierID}
		if auth.Authorize(actor, auth.ActionView, own).Allowed {
			writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": e.Status, "updated_at": e.UpdatedAt})
			return
		}
	}

	o, err := h.Service.Get(ctx, actor, orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": o.ID, "status": o.Status, "updated_at": o.UpdatedAt})
}

func (h *OrdersHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Service.GetPayment(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	var req PayReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Method == "" {
		req.Method = orders.MethodCard
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, p, err := h.Service.Pay(ctx, actorFrom(r), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	h.cacheStatus(ctx, o)
	code := http.StatusOK
	if p.Status == orders.PaymentFailed {
		code = http.StatusPaymentRequired
	}
	writeJSON(w, code, PayResp{Order: o, Payment: p})
}

func (h *OrdersHandler) stockCheck(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	short, err := h.Service.CheckStock(ctx, actorFrom(r), orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if short == nil {
		short = []orders.Shortfall{}
	}
	writeJSON(w, http.StatusOK, StockCheckResp{OrderID: orderID, Sufficient: len(short) == 0, Shortfalls: short})
}

type transitionFunc func(ctx context.Context, actor auth.Actor, orderID string) (orders.Transition, error)

func (h *OrdersHandler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		t, err := fn(ctx, actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, h.log(), err)
			return
		}
		if t.Changed {
			h.cacheStatus(ctx, t.Order)
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *OrdersHandler) updateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	loc, err := h.Service.UpdateCourierLocation(ctx, actorFrom(r), orderID, req.Lat, req.Lon)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if err := h.Cache.SetCourierLocation(ctx, orderID, redisx.LocationEntry{Lat: loc.Lat, Lon: loc.Lon, UpdatedAt: loc.UpdatedAt}); err != nil {
		h.log().Warn("cache courier location", zap.String("order_id", orderID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *OrdersHandler) getLocation(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, actorFrom(r), orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if e, ok, err := h.Cache.CourierLocation(ctx, orderID); err == nil && ok {
		writeJSON(w, http.StatusOK, orders.Location{Lat: e.Lat, Lon: e.Lon, UpdatedAt: e.UpdatedAt})
		return
	}
	if o.CourierLocation == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no courier location yet"})
		return
	}
	writeJSON(w, http.StatusOK, o.CourierLocation)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f orders.Filter
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st, ok := orders.ParseStatus(strings.TrimSpace(part))
			if !ok {
				badRequest(w, "unknown status "+part)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, actorFrom(r), f)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}
