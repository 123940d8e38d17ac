/*
Package trace implements span lifecycle management and context
propagation for the telemetry SDK.

# Overview

A Tracer creates spans, links them into traces through parent
relationships, and hands finished spans to a sink (normally the export
pipeline). Two propagation models are supported:

  - Explicit contexts (preferred): Start returns a child context
    carrying the span; nesting and concurrency both work naturally
    because every call chain owns its context.
  - A current-span stack for context-free callers: StartSpan makes the
    new span current, and ending a span clears the current pointer only
    when that span is still current. Ending spans out of order never
    corrupts the pointer.

# Usage

	tracer := trace.NewTracer(pipeline)

	ctx, span := tracer.Start(ctx, "load-profile", trace.KindInternal)
	span.SetTag("user.id", userID)
	defer span.End()

Spans are safe for concurrent use. All mutating calls on a finished
span are silent no-ops; telemetry must never crash the host program.

# Cross-process propagation

FormatTraceparent and ParseTraceparent implement the W3C traceparent
header. Incoming identifiers become a remote parent via
WithRemoteParent; outgoing requests carry the current span's
identifiers.
*/
package trace
