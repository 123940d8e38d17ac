package telemetry

import (
	"github.com/lumenwork/telemetry/export"
	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

// Re-exported types so callers instrumenting an application only need
// the root package. The trace, logs and export packages remain the
// source of truth.
type (
	// Span is a unit of traced work. See trace.Span.
	Span = trace.Span
	// Kind classifies a span's role in a request flow.
	Kind = trace.Kind
	// Severity orders log records from Trace to Critical.
	Severity = logs.Severity
	// ErrorInfo is the error payload attached to a log record.
	ErrorInfo = logs.ErrorInfo
	// Protocol selects the export wire format.
	Protocol = export.Protocol
	// ConfigError reports a rejected configuration value.
	ConfigError = export.ConfigError
)

const (
	KindInternal = trace.KindInternal
	KindServer   = trace.KindServer
	KindClient   = trace.KindClient
	KindProducer = trace.KindProducer
	KindConsumer = trace.KindConsumer

	SeverityTrace       = logs.SeverityTrace
	SeverityDebug       = logs.SeverityDebug
	SeverityInformation = logs.SeverityInformation
	SeverityWarning     = logs.SeverityWarning
	SeverityError       = logs.SeverityError
	SeverityCritical    = logs.SeverityCritical

	ProtocolGRPC = export.ProtocolGRPC
	ProtocolHTTP = export.ProtocolHTTP
)

// Sentinel errors surfaced at the API boundary.
var (
	ErrInvalidArgument = trace.ErrInvalidArgument
	ErrInvalidSeverity = logs.ErrInvalidSeverity
)

// Parsers for string-typed configuration and API inputs.
var (
	ParseKind     = trace.ParseKind
	ParseSeverity = logs.ParseSeverity
	ParseProtocol = export.ParseProtocol
)

// Span creation and log write options, re-exported.
var (
	WithParent       = trace.WithParent
	WithRemoteParent = trace.WithRemoteParent
	WithError        = logs.WithError
	WithErrorInfo    = logs.WithErrorInfo
	WithSpan         = logs.WithSpan
)
