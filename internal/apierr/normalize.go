package apierr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// locContainers are the reserved container names in a validation entry's
// loc path. They locate the request section, not a form field.
var locContainers = map[string]struct{}{
	"body":   {},
	"query":  {},
	"path":   {},
	"form":   {},
	"header": {},
}

// loginFieldAlias maps the wire name of the login form's credential field
// to the name the UI labels it with. The login endpoint consumes a form
// whose credential field is "username", but it always carries an email.
const (
	loginWireField = "username"
	loginUIField   = "email"
)

// ExtractMessage resolves an arbitrary failure value into a single
// human-readable message. It is total: any input, including nil, yields a
// renderable string, and an internal fault degrades to fallback.
//
// Resolution order, first match wins: plain string; response body string;
// single-message structured body (detail, then message/msg/error); joined
// validation messages; "<status> <statusText>"; a generic error's message;
// compact serialization; fallback.
func ExtractMessage(v any, fallback string) (msg string) {
	defer func() {
		if recover() != nil {
			msg = fallback
		}
	}()

	switch f := v.(type) {
	case nil:
		return fallback
	case string:
		return f
	case *TransportError:
		if f == nil {
			return fallback
		}
		if f.IsNetworkFailure {
			return f.Error()
		}
		if m := messageFromBody(f); m != "" {
			return m
		}
		return f.StatusText()
	case error:
		if m := f.Error(); m != "" {
			return m
		}
		return fallback
	default:
		if m := compactSerialize(v); m != "" {
			return m
		}
		return fallback
	}
}

// messageFromBody extracts a message from a response failure body, or ""
// when the body carries nothing usable.
func messageFromBody(f *TransportError) string {
	trimmed := strings.TrimSpace(string(f.Body))
	if trimmed == "" {
		return ""
	}
	if !gjson.ValidBytes(f.Body) {
		// Bare string body, returned verbatim.
		return trimmed
	}

	doc := gjson.ParseBytes(f.Body)
	if doc.Type == gjson.String {
		return doc.String()
	}
	if !doc.IsObject() {
		return trimmed
	}

	if detail := doc.Get("detail"); detail.Exists() {
		if detail.Type == gjson.String && detail.String() != "" {
			return detail.String()
		}
		if detail.IsArray() {
			if joined := joinValidationMessages(detail); joined != "" {
				return joined
			}
		}
	}
	for _, key := range fallbackMessageKeys {
		if v := doc.Get(key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}

	// Structured body with no recognizable message field: surface its
	// compact JSON text rather than an opaque placeholder.
	return trimmed
}

func joinValidationMessages(detail gjson.Result) string {
	var msgs []string
	detail.ForEach(func(_, entry gjson.Result) bool {
		if m := entry.Get("msg"); m.Type == gjson.String && m.String() != "" {
			msgs = append(msgs, m.String())
		}
		return true
	})
	return strings.Join(msgs, "; ")
}

func compactSerialize(v any) string {
	if b, err := json.Marshal(v); err == nil {
		s := string(b)
		if s != "null" {
			return s
		}
		return ""
	}
	return fmt.Sprintf("%+v", v)
}

// Validation is the field-addressable projection of a validation failure.
type Validation struct {
	// FieldErrors maps a field name to its messages in arrival order.
	FieldErrors map[string][]string
	// NonFieldErrors holds messages not attributable to a field.
	NonFieldErrors []string
	// Status is the HTTP status code, zero when not derivable.
	Status int
}

// Empty reports whether no validation information was extracted.
func (v Validation) Empty() bool {
	return len(v.FieldErrors) == 0 && len(v.NonFieldErrors) == 0
}

// ParseValidationErrors maps a multi-entry validation failure into field
// and non-field errors. It applies only to response failures carrying a
// structured body; anything else yields the all-empty result. It is total:
// an internal fault also degrades to the all-empty result.
func ParseValidationErrors(v any) (out Validation) {
	out.FieldErrors = make(map[string][]string)
	defer func() {
		if recover() != nil {
			out = Validation{FieldErrors: make(map[string][]string)}
		}
	}()

	f, ok := v.(*TransportError)
	if !ok || f == nil || f.IsNetworkFailure || len(f.Body) == 0 {
		return out
	}
	out.Status = f.Status

	if !gjson.ValidBytes(f.Body) {
		return out
	}
	detail := gjson.ParseBytes(f.Body).Get("detail")
	switch {
	case detail.Type == gjson.String:
		if detail.String() != "" {
			out.NonFieldErrors = append(out.NonFieldErrors, detail.String())
		}
		return out
	case !detail.IsArray():
		return out
	}

	detail.ForEach(func(_, entry gjson.Result) bool {
		msg := entry.Get("msg").String()
		field := fieldFromLoc(entry.Get("loc"))
		switch {
		case field != "":
			out.FieldErrors[field] = append(out.FieldErrors[field], msg)
		case msg != "":
			out.NonFieldErrors = append(out.NonFieldErrors, msg)
		}
		return true
	})
	return out
}

// fieldFromLoc scans a loc path from the end backward and returns the
// first string segment that is not a reserved container name, or "" when
// no field name is resolvable.
func fieldFromLoc(loc gjson.Result) string {
	if !loc.IsArray() {
		return ""
	}
	segments := loc.Array()
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg.Type != gjson.String {
			continue
		}
		name := seg.String()
		if _, reserved := locContainers[name]; reserved || name == "" {
			continue
		}
		if name == loginWireField {
			return loginUIField
		}
		return name
	}
	return ""
}
