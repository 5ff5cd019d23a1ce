package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("launcher", zap.New(core))
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpanInheritsTrace(t *testing.T) {
	tracer, _ := newObserved(t)

	root, ctx := tracer.StartSpan(context.Background(), "POST /instances/:name/launch")
	child, childCtx := tracer.StartSpan(ctx, "launch_instance")

	assert.NotEmpty(t, root.TraceID)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
}

func TestInject(t *testing.T) {
	ctx := WithTrace(context.Background(), "trace-1", "span-1")

	headers := map[string]string{}
	Inject(ctx, func(k, v string) { headers[k] = v })
	assert.Equal(t, map[string]string{TraceHeader: "trace-1", SpanHeader: "span-1"}, headers)

	headers = map[string]string{}
	Inject(context.Background(), func(k, v string) { headers[k] = v })
	assert.Empty(t, headers)
}

func TestEndRecordsSpan(t *testing.T) {
	tracer, logs := newObserved(t)

	span, _ := tracer.StartSpan(context.Background(), "get_friends")
	tracer.End(span, errors.New("backend unreachable"))

	require.Eventually(t, func() bool { return logs.FilterMessage("Span failed").Len() == 1 }, time.Second, 5*time.Millisecond)
	entry := logs.FilterMessage("Span failed").All()[0]
	assert.Equal(t, "get_friends", entry.ContextMap()["operation"])
}

func TestNilTracerIsSafe(t *testing.T) {
	var tracer *Tracer
	span, ctx := tracer.StartSpan(context.Background(), "noop")
	assert.Empty(t, GetTraceID(ctx))
	tracer.End(span, nil)
	tracer.Close()
}

func TestHTTPMiddlewarePropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObserved(t)

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/state", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set(TraceHeader, "view-trace")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, TraceID("view-trace"), seen)
	assert.Equal(t, "view-trace", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))
	require.Eventually(t, func() bool { return logs.FilterMessage("Span completed").Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "200", logs.FilterMessage("Span completed").All()[0].ContextMap()["http.status"])
}
