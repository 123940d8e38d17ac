package trace

import (
	"encoding/hex"
	"errors"
)

var errInvalidID = errors.New("trace: invalid hex id")

// TraceID is a 128-bit trace identifier. The zero value means "unset".
type TraceID [16]byte

// SpanID is a 64-bit span identifier unique within a trace.
// The zero value means "unset".
type SpanID [8]byte

// IsValid reports whether the trace ID is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String returns the ID as 32 lowercase hex characters.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// Bytes returns the raw ID bytes for wire encoding.
func (t TraceID) Bytes() []byte {
	return t[:]
}

// IsValid reports whether the span ID is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String returns the ID as 16 lowercase hex characters.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns the raw ID bytes for wire encoding.
func (s SpanID) Bytes() []byte {
	return s[:]
}

// TraceIDFromHex parses a 32-character hex string into a TraceID.
func TraceIDFromHex(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 32 {
		return id, errInvalidID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errInvalidID
	}
	copy(id[:], b)
	if !id.IsValid() {
		return TraceID{}, errInvalidID
	}
	return id, nil
}

// SpanIDFromHex parses a 16-character hex string into a SpanID.
func SpanIDFromHex(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 16 {
		return id, errInvalidID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errInvalidID
	}
	copy(id[:], b)
	if !id.IsValid() {
		return SpanID{}, errInvalidID
	}
	return id, nil
}
