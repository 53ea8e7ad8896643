package wire

import "fmt"

// EncodeError represents a failure to serialize a packet or event.
// It names the field being encoded when the failure is field-specific.
type EncodeError struct {
	// Field is the dotted path of the field that failed (empty if unknown)
	Field string

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("wire encode error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("wire encode error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// DecodeError represents a failure to parse bytes received from the
// upstream. Offset is the byte position where parsing stopped, when known.
type DecodeError struct {
	// Offset is the byte offset at which decoding failed (-1 if unknown)
	Offset int

	// Message describes the failure
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("wire decode error at offset %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("wire decode error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// PayloadError represents a transport payload that could not be recognized
// as any of the supported encodings (hex, base64, URL-safe base64).
type PayloadError struct {
	// Length is the length of the rejected payload string
	Length int

	// Message describes why no encoding matched
	Message string
}

// Error implements the error interface.
func (e *PayloadError) Error() string {
	return fmt.Sprintf("unrecognized payload encoding (%d chars): %s", e.Length, e.Message)
}
