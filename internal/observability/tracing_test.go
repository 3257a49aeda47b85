package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "threadline-test", Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartStoreSpan(context.Background(), "sqlite", "list")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}

func TestStartOperationSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	ctx, op := StartOperationSpan(context.Background(), "create")
	_, store := StartStoreSpan(ctx, "sqlite", "create")
	EndSpan(store, nil)
	EndSpan(op, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "store.create", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, "comment.create", spans[1].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[1].SpanKind())
	assert.Contains(t, spans[1].Attributes(), attribute.String("comment.operation", "create"))
}

func TestSamplerFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestTrackStoreQuery(t *testing.T) {
	done := TrackStoreQuery("sqlite", "count_test")
	done()
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StoreQueryLatency), 1)
}

func TestOutcome(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
