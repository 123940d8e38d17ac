package export

import "fmt"

// Protocol selects the wire transport used to reach the collector.
type Protocol int

const (
	// ProtocolGRPC exports OTLP over gRPC.
	ProtocolGRPC Protocol = iota
	// ProtocolHTTP exports OTLP protobuf over HTTP.
	ProtocolHTTP
)

// String returns the string representation of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolGRPC:
		return "grpc"
	case ProtocolHTTP:
		return "http-protobuf"
	default:
		return "unknown"
	}
}

// Valid reports whether p is a supported protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolGRPC || p == ProtocolHTTP
}

// ParseProtocol converts a string into a Protocol, rejecting unknown
// values. "http/protobuf" is accepted as an alias for "http-protobuf".
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "grpc":
		return ProtocolGRPC, nil
	case "http-protobuf", "http/protobuf":
		return ProtocolHTTP, nil
	default:
		return ProtocolGRPC, &ConfigError{Field: "protocol", Value: s, Reason: `must be "grpc" or "http-protobuf"`}
	}
}

// Decode implements envconfig.Decoder so the protocol can be set from
// the environment.
func (p *Protocol) Decode(value string) error {
	parsed, err := ParseProtocol(value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ConfigError describes a configuration value rejected at initialize
// time. Misconfiguration is a setup-time caller error and is the only
// failure surfaced loudly by the SDK.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("telemetry config: %s %q: %s", e.Field, e.Value, e.Reason)
}
