package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseError reports an inbound frame that is not a valid envelope. Callers
// treat such frames as unstructured text.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Decode parses and validates one inbound frame.
func Decode(raw []byte) (Envelope, error) {
	if !utf8.Valid(raw) {
		return Envelope{}, &ParseError{Reason: "frame is not valid UTF-8"}
	}

	if err := checkFieldCase(raw); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &ParseError{Reason: "invalid envelope", Err: err}
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodeString is Decode for text frames.
func DecodeString(raw string) (Envelope, error) {
	return Decode([]byte(raw))
}

var (
	envelopeFields = []string{"message_type", "message", "users", "username"}
	messageFields  = []string{"message", "author", "created_at"}
)

// checkFieldCase rejects keys that only match a known field ignoring case.
// encoding/json would otherwise accept "MESSAGE_TYPE" for "message_type".
// Syntax errors are left to the full decode.
func checkFieldCase(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}
	if err := matchFieldCase(top, envelopeFields); err != nil {
		return err
	}

	var msg map[string]json.RawMessage
	if err := json.Unmarshal(top["message"], &msg); err != nil {
		return nil
	}
	return matchFieldCase(msg, messageFields)
}

func matchFieldCase(obj map[string]json.RawMessage, fields []string) error {
	for key := range obj {
		for _, field := range fields {
			if key != field && strings.EqualFold(key, field) {
				return parseErrorf("field %q must be spelled %q", key, field)
			}
		}
	}
	return nil
}
