package export

import (
	"os"

	"github.com/google/uuid"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/lumenwork/telemetry/logs"
	"github.com/lumenwork/telemetry/trace"
)

const (
	scopeName    = "github.com/lumenwork/telemetry"
	scopeVersion = "0.3.0"
)

// Resource identifies the service producing telemetry. Built once per
// pipeline; the instance ID distinguishes restarts of the same service.
type Resource struct {
	ServiceName string
	InstanceID  string
	HostName    string
}

// NewResource builds the resource for a service with a fresh instance ID.
func NewResource(serviceName string) Resource {
	host, _ := os.Hostname()
	return Resource{
		ServiceName: serviceName,
		InstanceID:  uuid.NewString(),
		HostName:    host,
	}
}

func (r Resource) proto() *resourcepb.Resource {
	attrs := []*commonpb.KeyValue{
		strAttr("service.name", r.ServiceName),
		strAttr("service.instance.id", r.InstanceID),
	}
	if r.HostName != "" {
		attrs = append(attrs, strAttr("host.name", r.HostName))
	}
	return &resourcepb.Resource{Attributes: attrs}
}

func scope() *commonpb.InstrumentationScope {
	return &commonpb.InstrumentationScope{Name: scopeName, Version: scopeVersion}
}

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

// buildTraceRequest encodes finished spans into an OTLP export request.
func buildTraceRequest(res Resource, spans []trace.SpanData) *coltracepb.ExportTraceServiceRequest {
	out := make([]*tracepb.Span, 0, len(spans))
	for i := range spans {
		out = append(out, encodeSpan(&spans[i]))
	}
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: res.proto(),
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: scope(),
				Spans: out,
			}},
		}},
	}
}

func encodeSpan(s *trace.SpanData) *tracepb.Span {
	attrs := make([]*commonpb.KeyValue, 0, len(s.Tags))
	for _, tag := range s.Tags {
		attrs = append(attrs, strAttr(tag.Key, tag.Value))
	}

	span := &tracepb.Span{
		TraceId:           s.TraceID.Bytes(),
		SpanId:            s.SpanID.Bytes(),
		Name:              s.Name,
		Kind:              kindProto(s.Kind),
		StartTimeUnixNano: uint64(s.StartTime.UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime.UnixNano()),
		Attributes:        attrs,
		Status: &tracepb.Status{
			Code:    statusProto(s.Status),
			Message: s.StatusMessage,
		},
	}
	if s.ParentID.IsValid() {
		span.ParentSpanId = s.ParentID.Bytes()
	}
	return span
}

// buildLogsRequest encodes log records into an OTLP export request.
func buildLogsRequest(res Resource, records []logs.Record) *collogspb.ExportLogsServiceRequest {
	out := make([]*logspb.LogRecord, 0, len(records))
	for i := range records {
		out = append(out, encodeLog(&records[i]))
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: res.proto(),
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      scope(),
				LogRecords: out,
			}},
		}},
	}
}

func encodeLog(r *logs.Record) *logspb.LogRecord {
	record := &logspb.LogRecord{
		TimeUnixNano:         uint64(r.Time.UnixNano()),
		ObservedTimeUnixNano: uint64(r.Time.UnixNano()),
		SeverityNumber:       severityProto(r.Severity),
		SeverityText:         r.Severity.String(),
		Body: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: r.Message},
		},
	}
	if r.Error != nil {
		record.Attributes = append(record.Attributes,
			strAttr("exception.message", r.Error.Message),
		)
		if r.Error.StackTrace != "" {
			record.Attributes = append(record.Attributes,
				strAttr("exception.stacktrace", r.Error.StackTrace),
			)
		}
	}
	if r.Correlated() {
		record.TraceId = r.TraceID.Bytes()
		record.SpanId = r.SpanID.Bytes()
	}
	return record
}

func kindProto(k trace.Kind) tracepb.Span_SpanKind {
	switch k {
	case trace.KindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case trace.KindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case trace.KindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case trace.KindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_INTERNAL
	}
}

func statusProto(s trace.Status) tracepb.Status_StatusCode {
	switch s {
	case trace.StatusOk:
		return tracepb.Status_STATUS_CODE_OK
	case trace.StatusError:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

func severityProto(s logs.Severity) logspb.SeverityNumber {
	switch s {
	case logs.SeverityTrace:
		return logspb.SeverityNumber_SEVERITY_NUMBER_TRACE
	case logs.SeverityDebug:
		return logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	case logs.SeverityInformation:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	case logs.SeverityWarning:
		return logspb.SeverityNumber_SEVERITY_NUMBER_WARN
	case logs.SeverityError:
		return logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
	case logs.SeverityCritical:
		return logspb.SeverityNumber_SEVERITY_NUMBER_FATAL
	default:
		return logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED
	}
}
