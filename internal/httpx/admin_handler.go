package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler lets staff run an assignment tick on demand. It goes through
// the runner so a manual run never overlaps a scheduled one.
type AdminHandler struct {
	Runner *assign.Runner
	Log    *zap.Logger
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/assignment/run", h.run)
}

func (h *AdminHandler) run(w http.ResponseWriter, r *http.Request) {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := auth.Authorize(actorFrom(r), auth.ActionRunAssignment, auth.Ownership{}).Err(); err != nil {
		writeError(w, log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var (
		results []assign.Result
		err     error
	)
	if job := r.URL.Query().Get("job"); job != "" {
		var res assign.Result
		res, err = h.Runner.RunNow(ctx, job)
		results = []assign.Result{res}
	} else {
		results, err = h.Runner.RunAll(ctx)
	}
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
