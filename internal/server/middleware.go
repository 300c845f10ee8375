package server

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/inboxgist/inboxgist/internal/instrumentation"
)

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a route handler with a span, request metrics, and audit
// logging. service and operation describe the upstream work the route
// performs; both are empty for the sign-in flow routes.
func (s *Server) instrument(route, service, operation string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := instrumentation.StartRouteSpan(r.Context(), route)
		defer span.End()
		r = r.WithContext(ctx)

		invocation := instrumentation.NewRouteInvocation(route).WithSpanContext(ctx)
		if service != "" {
			invocation.WithService(service, operation)
		}
		if sess, ok := s.sessions.FromRequest(r); ok && sess.Authenticated() {
			invocation.WithUser(sess.User.Email)
		}
		if id := r.PathValue("id"); id != "" {
			invocation.WithMessageID(id)
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		duration := time.Since(start)

		s.metrics.RecordHTTPRequest(ctx, r.Method, route, rec.status, duration)

		span.SetAttributes(attribute.Int(instrumentation.SpanAttrStatus, rec.status))
		if rec.status >= http.StatusInternalServerError {
			instrumentation.SetSpanError(span, fmt.Errorf("request failed with status %d", rec.status))
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		invocation.Complete(rec.status < http.StatusBadRequest, nil)
		if s.audit != nil {
			s.audit.LogRouteInvocation(invocation)
		}
	})
}
