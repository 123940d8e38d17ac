package trace

import (
	"fmt"
	"strings"
)

// Kind classifies the relationship of a span to its surroundings.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	return k >= KindInternal && k <= KindConsumer
}

// ParseKind converts a string into a Kind, rejecting unknown values.
// Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "internal":
		return KindInternal, nil
	case "server":
		return KindServer, nil
	case "client":
		return KindClient, nil
	case "producer":
		return KindProducer, nil
	case "consumer":
		return KindConsumer, nil
	default:
		return KindInternal, fmt.Errorf("%w: span kind %q", ErrInvalidArgument, s)
	}
}

// Status is the outcome recorded on a finished span.
type Status int

const (
	StatusUnset Status = iota
	StatusOk
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
