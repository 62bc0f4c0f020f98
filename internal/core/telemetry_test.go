// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetSpanErrorMarksSpanFailed(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	ctx, span := tp.Tracer("test").Start(context.Background(), "entitlement.HasActiveGrant")
	SetSpanError(ctx, errors.New("connection refused"))
	AddSpanEvent(ctx, "entitlement.fail_open", attribute.String("product_id", "tmbc"))
	assert.Len(t, TraceIDFromContext(ctx), 32)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection refused", ended[0].Status().Description)

	var names []string
	for _, e := range ended[0].Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"exception", "entitlement.fail_open"}, names)
}

func TestTraceIDFromContextWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewSamplerFallsBackToDefaultRate(t *testing.T) {
	assert.Contains(t, newSampler(0).Description(), "TraceIDRatioBased{0.1}")
	assert.Contains(t, newSampler(1.5).Description(), "TraceIDRatioBased{0.1}")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
