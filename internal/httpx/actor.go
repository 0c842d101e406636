package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-flowershop-orders/internal/auth"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type actorKey struct{}

// WithActor reads the identity forwarded by the gateway. Requests without
// a valid one get 401.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderUserID)
		role, ok := auth.ParseRole(r.Header.Get(HeaderUserRole))
		if id == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid actor headers"})
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, auth.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) auth.Actor {
	a, _ := r.Context().Value(actorKey{}).(auth.Actor)
	return a
}
