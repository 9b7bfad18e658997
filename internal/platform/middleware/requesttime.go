package middleware

import (
	"net/http"
	"time"

	"medledger/pkg/requestcontext"
)

// RequestTime pins one instant per request. Every validation and predicate in
// the operation reads this instant, never time.Now directly, so a mutation
// cannot observe two different "now" values.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
