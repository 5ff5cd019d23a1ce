/*
Package tracing follows a view request into the backend commands it causes.

The HTTP middleware opens a span per view request, reusing the caller's
X-Trace-ID when present. The backend client opens a child span per command
and forwards the trace headers, so one trace id ties a click in the view to
every command it issued. Finished spans are logged at debug level from a
buffered collector; a full buffer drops spans rather than blocking callers.

# Usage

	tracer := tracing.New("launcher", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "launch_instance")
	defer tracer.End(span, err)
*/
package tracing
