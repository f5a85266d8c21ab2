// Package telemetry wraps sentry-go tracing for the knowledge base. Every
// helper is a no-op until Init is called with a DSN.
package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

const serverName = "kbase"

type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Logger is the subset of the application logger used during setup.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Init configures the global Sentry client and returns a flush function.
// Initialization failures are logged and tracing stays disabled.
func Init(cfg Config, log Logger) func() {
	if cfg.DSN == "" {
		return func() {}
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Warn("sentry init failed, continuing without tracing", "error", err)
		return func() {}
	}

	log.Info("sentry tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }
}

// sampler drops health checks and keeps child spans with their parent.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" {
			return 0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

type SpanAttributes struct {
	DocumentID string
	Filename   string
	Operation  string
}

type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// SetTag tags the span, e.g. with the document id once it is known.
func (s *Span) SetTag(key, value string) {
	if s.inner != nil && value != "" {
		s.inner.SetTag(key, value)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.Filename != "" {
		span.SetData("filename", attrs.Filename)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
	return span.Context(), &Span{inner: span}
}

func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a pipeline step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	crumb := &sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(crumb, nil)
		return
	}
	sentry.AddBreadcrumb(crumb)
}
