package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// Sentry opens one transaction per request, named after the matched chi
// route, and reports panics before re-raising them. Without a configured
// client the transaction is dropped on Finish.
func Sentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		opts := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}

		tx := sentry.StartTransaction(sentry.SetHubOnContext(r.Context(), hub), r.Method+" "+r.URL.Path, opts...)
		defer tx.Finish()

		r = r.WithContext(tx.Context())
		if id := GetRequestID(r.Context()); id != "" {
			hub.Scope().SetTag("request_id", id)
			tx.SetTag("request_id", id)
		}
		hub.Scope().SetRequest(r)

		defer func() {
			if p := recover(); p != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), p)
				panic(p)
			}
		}()

		rec := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				tx.Name = r.Method + " " + pattern
				tx.Source = sentry.SourceRoute
			}
		}

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		tx.Status = spanStatus(status)
		tx.SetData("http.response.status_code", status)
	})
}

func spanStatus(status int) sentry.SpanStatus {
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status == http.StatusUnauthorized:
		return sentry.SpanStatusUnauthenticated
	case status == http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case status == http.StatusRequestEntityTooLarge:
		return sentry.SpanStatusResourceExhausted
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == http.StatusBadGateway:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}
