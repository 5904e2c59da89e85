// Package apierr classifies backend failures and normalizes them into
// renderable messages and field-addressable validation errors.
package apierr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// BodyKind discriminates the shape of a response failure body. It is
// assigned once, when the failure crosses the transport boundary.
type BodyKind int

const (
	// BodyNone means the response carried no usable body.
	BodyNone BodyKind = iota
	// BodyPlainText means the body is a bare string (not JSON).
	BodyPlainText
	// BodyMessageObject means the body is a JSON object with a single
	// string explanation field (detail, message, msg or error).
	BodyMessageObject
	// BodyValidationList means the body carries a detail array of
	// validation entries, each with a loc path and a msg.
	BodyValidationList
)

func (k BodyKind) String() string {
	switch k {
	case BodyNone:
		return "none"
	case BodyPlainText:
		return "plain-text"
	case BodyMessageObject:
		return "message-object"
	case BodyValidationList:
		return "validation-list"
	default:
		return "unknown"
	}
}

// TransportError is the failure produced by the HTTP client adapter.
// Exactly one of the two failure classes applies:
//
//   - network failure: no response was received (DNS, connection, timeout);
//     IsNetworkFailure is true, Status is zero and Body is empty.
//   - response failure: the server answered with a non-2xx status;
//     Status and the raw Body are captured.
type TransportError struct {
	Status           int
	Body             []byte
	IsNetworkFailure bool
	Kind             BodyKind

	cause error
}

// NewNetworkFailure wraps a transport-level error (no response received).
func NewNetworkFailure(err error) *TransportError {
	return &TransportError{IsNetworkFailure: true, cause: err}
}

// NewResponseFailure wraps a non-2xx response. The body kind is classified
// here, once, so downstream consumers never re-inspect raw bytes.
func NewResponseFailure(status int, body []byte) *TransportError {
	return &TransportError{
		Status: status,
		Body:   body,
		Kind:   classifyBody(body),
	}
}

func (e *TransportError) Error() string {
	if e.IsNetworkFailure {
		if e.cause != nil {
			return fmt.Sprintf("network failure: %v", e.cause)
		}
		return "network failure"
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// StatusText returns "<status> <statusText>", trimmed, for responses with
// no usable body.
func (e *TransportError) StatusText() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)))
}

func classifyBody(body []byte) BodyKind {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return BodyNone
	}
	if !gjson.ValidBytes(body) {
		return BodyPlainText
	}
	doc := gjson.ParseBytes(body)
	switch {
	case doc.Type == gjson.String:
		return BodyPlainText
	case !doc.IsObject():
		return BodyPlainText
	}
	if detail := doc.Get("detail"); detail.Exists() {
		if detail.IsArray() {
			return BodyValidationList
		}
		if detail.Type == gjson.String {
			return BodyMessageObject
		}
	}
	for _, key := range fallbackMessageKeys {
		if v := doc.Get(key); v.Type == gjson.String && v.String() != "" {
			return BodyMessageObject
		}
	}
	return BodyNone
}

// fallbackMessageKeys are probed in priority order when the canonical
// detail field is absent.
var fallbackMessageKeys = []string{"message", "msg", "error"}
