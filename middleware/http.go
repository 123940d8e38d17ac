// Package middleware instruments inbound and outbound requests with
// spans and W3C traceparent propagation.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lumenwork/telemetry/trace"
)

// HTTP returns Gin middleware that opens a server span per request,
// continuing the caller's trace when a traceparent header is present.
// The span travels in the request context; handlers reach it with
// trace.SpanFromContext. A nil tracer passes requests through untraced.
func HTTP(tracer *trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		opts := make([]trace.SpanOption, 0, 1)
		if header := c.GetHeader(trace.TraceparentHeader); header != "" {
			if traceID, parentID, err := trace.ParseTraceparent(header); err == nil {
				opts = append(opts, trace.WithRemoteParent(traceID, parentID))
			}
		}

		ctx, span := tracer.Start(c.Request.Context(), name, trace.KindServer, opts...)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.target", c.Request.URL.Path)
		span.SetTag("http.host", c.Request.Host)

		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.TraceparentHeader, trace.FormatTraceparent(span.TraceID(), span.SpanID()))

		c.Next()

		status := c.Writer.Status()
		span.SetTag("http.status_code", strconv.Itoa(status))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		} else if status >= 500 {
			span.SetStatus(trace.StatusError, "http "+strconv.Itoa(status))
		}

		span.End()
	}
}
