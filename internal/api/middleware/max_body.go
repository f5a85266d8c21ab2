package middleware

import (
	"net/http"

	"github.com/tipo-sto/kbase/internal/api"
)

// MaxBodyBytes rejects declared bodies over limit up front and caps
// streamed ones, so handlers see a read error past the limit.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, api.ErrCodePayloadTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
