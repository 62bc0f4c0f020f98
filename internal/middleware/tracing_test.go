// AngelaMos | 2026
// tracing_test.go

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingNamesSpanByRouteAndLogsTraceID(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	r := chi.NewRouter()
	r.Use(Tracing)
	r.Use(Logger(logger))
	r.Get("/video/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/video/v1", nil))
	require.Equal(t, http.StatusBadGateway, res.Code)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /video/{id}", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	traceID := ended[0].SpanContext().TraceID().String()
	assert.Contains(t, logs.String(), `"trace_id":"`+traceID+`"`)
}
