package trace

import (
	"fmt"
	"strings"
)

// TraceparentHeader is the W3C trace-context header carrying trace and
// parent span identifiers across process boundaries.
const TraceparentHeader = "traceparent"

const traceparentVersion = "00"

// FormatTraceparent renders the W3C traceparent value for a span, with
// the sampled flag set.
func FormatTraceparent(traceID TraceID, spanID SpanID) string {
	return traceparentVersion + "-" + traceID.String() + "-" + spanID.String() + "-01"
}

// ParseTraceparent extracts trace and span identifiers from a W3C
// traceparent value. Unknown versions are accepted as long as the
// version-00 fields parse.
func ParseTraceparent(value string) (TraceID, SpanID, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) < 4 {
		return TraceID{}, SpanID{}, fmt.Errorf("%w: traceparent %q", ErrInvalidArgument, value)
	}
	if len(parts[0]) != 2 || parts[0] == "ff" {
		return TraceID{}, SpanID{}, fmt.Errorf("%w: traceparent version %q", ErrInvalidArgument, parts[0])
	}
	traceID, err := TraceIDFromHex(parts[1])
	if err != nil {
		return TraceID{}, SpanID{}, fmt.Errorf("%w: traceparent trace id %q", ErrInvalidArgument, parts[1])
	}
	spanID, err := SpanIDFromHex(parts[2])
	if err != nil {
		return TraceID{}, SpanID{}, fmt.Errorf("%w: traceparent span id %q", ErrInvalidArgument, parts[2])
	}
	return traceID, spanID, nil
}
