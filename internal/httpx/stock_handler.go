package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StockHandler serves staff stock intake and batch inspection.
type StockHandler struct {
	Ledger  *stock.Ledger
	Catalog catalog.Reader
	Log     *zap.Logger
}

type IntakeReq struct {
	ComponentID  string    `json:"component_id"`
	Amount       float64   `json:"amount"`
	DeliveryDate time.Time `json:"delivery_date"`
	BatchNumber  string    `json:"batch_number"`
}

type BatchesResp struct {
	Component catalog.Component `json:"component"`
	Available float64           `json:"available"`
	Batches   []stock.Batch     `json:"batches"`
}

func (h *StockHandler) Register(r chi.Router) {
	r.Post("/stock/batches", h.intake)
	r.Get("/components/{id}/batches", h.batches)
}

func (h *StockHandler) log() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}

func (h *StockHandler) intake(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authorize(actorFrom(r), auth.ActionIntakeStock, auth.Ownership{}).Err(); err != nil {
		writeError(w, h.log(), err)
		return
	}
	var req IntakeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Catalog.GetComponent(ctx, req.ComponentID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	b, err := h.Ledger.Intake(ctx, c, stock.Batch{
		DeliveryDate: req.DeliveryDate,
		Remaining:    req.Amount,
		BatchNumber:  req.BatchNumber,
	})
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	h.log().Info("stock intake",
		zap.String("component_id", c.ID),
		zap.Int64("batch_id", b.ID),
		zap.Float64("amount", b.Remaining),
	)
	writeJSON(w, http.StatusCreated, b)
}

func (h *StockHandler) batches(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authorize(actorFrom(r), auth.ActionIntakeStock, auth.Ownership{}).Err(); err != nil {
		writeError(w, h.log(), err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Catalog.GetComponent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	bs, err := h.Ledger.Batches(ctx, c.ID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	avail, err := h.Ledger.Available(ctx, []string{c.ID})
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if bs == nil {
		bs = []stock.Batch{}
	}
	writeJSON(w, http.StatusOK, BatchesResp{Component: c, Available: avail[c.ID], Batches: bs})
}
