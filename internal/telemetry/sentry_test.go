package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	infos, warns []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warns = append(l.warns, msg) }

func TestInit_WithoutDSNIsNoop(t *testing.T) {
	log := &recordingLogger{}
	flush := Init(Config{}, log)
	require.NotNil(t, flush)
	flush()
	assert.Empty(t, log.infos)
	assert.Empty(t, log.warns)
}

func TestInit_InvalidDSNDegrades(t *testing.T) {
	log := &recordingLogger{}
	flush := Init(Config{DSN: "not a dsn"}, log)
	flush()
	assert.Equal(t, []string{"sentry init failed, continuing without tracing"}, log.warns)
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "KnowledgeBase.Ingest", SpanAttributes{Filename: "getz.pdf", Operation: "ingest"})
	defer parent.End()

	_, child := StartSpan(ctx, "embed", SpanAttributes{})
	defer child.End()

	assert.Equal(t, parent.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "getz.pdf", parent.inner.Data["filename"])
}

func TestSpan_SetErrorAndTag(t *testing.T) {
	_, span := StartSpan(context.Background(), "KnowledgeBase.Search", SpanAttributes{})
	span.SetTag("document_id", "a1b2")
	span.SetTag("empty", "")
	span.SetError(errors.New("provider unavailable"))
	span.End()

	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)
	assert.Equal(t, "a1b2", span.inner.Tags["document_id"])
	_, ok := span.inner.Tags["empty"]
	assert.False(t, ok)
}

func TestSampler(t *testing.T) {
	s := sampler(0.25)

	health := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("GET /health"))
	assert.Equal(t, 0.0, s(sentry.SamplingContext{Span: health}))

	root := sentry.StartSpan(context.Background(), "KnowledgeBase.Search", sentry.WithTransactionName("KnowledgeBase.Search"))
	assert.Equal(t, 0.25, s(sentry.SamplingContext{Span: root}))
}
