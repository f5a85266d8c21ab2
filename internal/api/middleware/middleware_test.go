package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tipo-sto/kbase/internal/api"
	"github.com/tipo-sto/kbase/internal/logger"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "crm-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "crm-42", seen)
		assert.Equal(t, "crm-42", w.Header().Get("X-Request-ID"))
	})

	t.Run("replaced when unsafe", func(t *testing.T) {
		for _, bad := range []string{"crm 42\nforged", strings.Repeat("a", maxRequestIDLen+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", bad)
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.NotEqual(t, bad, seen)
			assert.Len(t, seen, 36)
		}
	})
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))

	handler := RequestID(AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			api.Error(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "not found")
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 172.16.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/health", first["path"])
	assert.EqualValues(t, 200, first["status"])
	assert.EqualValues(t, 2, first["bytes"])
	assert.Equal(t, "10.1.2.3", first["remote_addr"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
}

func TestMaxBodyBytes(t *testing.T) {
	handler := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			api.Error(w, http.StatusRequestEntityTooLarge, api.ErrCodePayloadTooLarge, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345678")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), api.ErrCodePayloadTooLarge)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("123456789"))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSentry_NamesTransactionAfterRoute(t *testing.T) {
	var span *sentry.Span
	r := chi.NewRouter()
	r.Use(Sentry)
	r.Get("/knowledge-base/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		span = sentry.SpanFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge-base/documents/abc", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, span)
	assert.Equal(t, "GET /knowledge-base/documents/{id}", span.Name)
	assert.Equal(t, sentry.SpanStatusNotFound, span.Status)
	assert.Equal(t, http.StatusNotFound, span.Data["http.response.status_code"])
}

func TestSpanStatus(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, spanStatus(http.StatusCreated))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, spanStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, sentry.SpanStatusUnauthenticated, spanStatus(http.StatusUnauthorized))
	assert.Equal(t, sentry.SpanStatusUnavailable, spanStatus(http.StatusBadGateway))
	assert.Equal(t, sentry.SpanStatusInternalError, spanStatus(http.StatusInternalServerError))
}
