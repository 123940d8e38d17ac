package logs

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Severity orders log levels from finest to most severe.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInformation
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityTrace:
		return "trace"
	case SeverityDebug:
		return "debug"
	case SeverityInformation:
		return "information"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the closed set of severities.
func (s Severity) Valid() bool {
	return s >= SeverityTrace && s <= SeverityCritical
}

// ParseSeverity converts a string into a Severity, rejecting unknown
// values. Matching is case-insensitive and accepts common short forms.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "trace":
		return SeverityTrace, nil
	case "debug":
		return SeverityDebug, nil
	case "information", "info":
		return SeverityInformation, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "critical", "fatal":
		return SeverityCritical, nil
	default:
		return SeverityInformation, fmt.Errorf("%w: severity %q", ErrInvalidSeverity, s)
	}
}

// zapLevel maps a severity onto the fallback logger's levels. Critical
// maps to Error; the fallback sink must never terminate the host the
// way zap's Fatal would.
func (s Severity) zapLevel() zapcore.Level {
	switch s {
	case SeverityTrace, SeverityDebug:
		return zapcore.DebugLevel
	case SeverityInformation:
		return zapcore.InfoLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
