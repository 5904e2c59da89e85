package apierr

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// ExtractMessage Tests
// =============================================================================

func TestExtractMessage_PlainString(t *testing.T) {
	inputs := []string{"boom", "Invalid credentials", "", "  padded  "}
	for _, in := range inputs {
		if got := ExtractMessage(in, "fallback"); got != in {
			t.Errorf("ExtractMessage(%q) = %q, want the input verbatim", in, got)
		}
	}
}

func TestExtractMessage_Nil(t *testing.T) {
	if got := ExtractMessage(nil, "fallback"); got != "fallback" {
		t.Errorf("ExtractMessage(nil) = %q, want fallback", got)
	}
}

func TestExtractMessage_StringBody(t *testing.T) {
	f := NewResponseFailure(500, []byte("upstream exploded"))
	if got := ExtractMessage(f, "fallback"); got != "upstream exploded" {
		t.Errorf("ExtractMessage() = %q, want the raw body", got)
	}
}

func TestExtractMessage_JSONStringBody(t *testing.T) {
	f := NewResponseFailure(400, []byte(`"quota exceeded"`))
	if got := ExtractMessage(f, "fallback"); got != "quota exceeded" {
		t.Errorf("ExtractMessage() = %q, want quota exceeded", got)
	}
}

func TestExtractMessage_DetailString(t *testing.T) {
	f := NewResponseFailure(401, []byte(`{"detail":"Invalid credentials"}`))
	if got := ExtractMessage(f, "fallback"); got != "Invalid credentials" {
		t.Errorf("ExtractMessage() = %q, want detail value", got)
	}
}

func TestExtractMessage_FallbackKeyPriority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message over msg", `{"message":"from message","msg":"from msg"}`, "from message"},
		{"msg over error", `{"msg":"from msg","error":"from error"}`, "from msg"},
		{"error alone", `{"error":"from error"}`, "from error"},
		{"detail beats all", `{"detail":"from detail","message":"from message"}`, "from detail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewResponseFailure(400, []byte(tt.body))
			if got := ExtractMessage(f, "fallback"); got != tt.want {
				t.Errorf("ExtractMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMessage_ValidationListJoined(t *testing.T) {
	body := `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"},{"loc":["body","password"],"msg":"field required"}]}`
	f := NewResponseFailure(422, []byte(body))

	got := ExtractMessage(f, "fallback")
	want := "value is not a valid email address; field required"
	if got != want {
		t.Errorf("ExtractMessage() = %q, want %q", got, want)
	}
}

func TestExtractMessage_EmptyBodyStatusText(t *testing.T) {
	f := NewResponseFailure(503, nil)
	if got := ExtractMessage(f, "fallback"); got != "503 Service Unavailable" {
		t.Errorf("ExtractMessage() = %q, want status line", got)
	}
}

func TestExtractMessage_GenericError(t *testing.T) {
	if got := ExtractMessage(errors.New("dial tcp: refused"), "fallback"); got != "dial tcp: refused" {
		t.Errorf("ExtractMessage() = %q, want the error message", got)
	}
}

func TestExtractMessage_NetworkFailure(t *testing.T) {
	f := NewNetworkFailure(errors.New("connection refused"))
	got := ExtractMessage(f, "fallback")
	if !strings.Contains(got, "connection refused") {
		t.Errorf("ExtractMessage() = %q, want the underlying cause surfaced", got)
	}
}

func TestExtractMessage_NeverOpaquePlaceholder(t *testing.T) {
	// A structured body with a recognizable message field must never
	// render as a generic object dump.
	f := NewResponseFailure(500, []byte(`{"message":"disk full","trace":"abc123"}`))
	got := ExtractMessage(f, "fallback")
	if got != "disk full" {
		t.Errorf("ExtractMessage() = %q, want disk full", got)
	}
	if strings.Contains(got, "map[") || strings.Contains(got, "[object") {
		t.Errorf("ExtractMessage() = %q, leaked an opaque placeholder", got)
	}
}

func TestExtractMessage_UnrecognizedObjectSerialized(t *testing.T) {
	f := NewResponseFailure(500, []byte(`{"trace":"abc123"}`))
	got := ExtractMessage(f, "fallback")
	if got != `{"trace":"abc123"}` {
		t.Errorf("ExtractMessage() = %q, want the compact JSON text", got)
	}
}

func TestExtractMessage_ArbitraryValueSerialized(t *testing.T) {
	got := ExtractMessage(struct {
		Code int `json:"code"`
	}{Code: 7}, "fallback")
	if got != `{"code":7}` {
		t.Errorf("ExtractMessage() = %q, want compact serialization", got)
	}
	if strings.Contains(got, "map[") {
		t.Errorf("ExtractMessage() = %q, leaked an opaque placeholder", got)
	}
}

func TestExtractMessage_NilTransportError(t *testing.T) {
	var f *TransportError
	if got := ExtractMessage(f, "fallback"); got != "fallback" {
		t.Errorf("ExtractMessage(nil *TransportError) = %q, want fallback", got)
	}
}

// =============================================================================
// ParseValidationErrors Tests
// =============================================================================

func TestParseValidationErrors_UsernameAliasAndOrder(t *testing.T) {
	body := `{"detail":[{"loc":["body","email"],"msg":"bad"},{"loc":["body","username"],"msg":"required"}]}`
	f := NewResponseFailure(422, []byte(body))

	v := ParseValidationErrors(f)

	want := map[string][]string{"email": {"bad", "required"}}
	if !reflect.DeepEqual(v.FieldErrors, want) {
		t.Errorf("FieldErrors = %v, want %v", v.FieldErrors, want)
	}
	if len(v.NonFieldErrors) != 0 {
		t.Errorf("NonFieldErrors = %v, want empty", v.NonFieldErrors)
	}
	if v.Status != 422 {
		t.Errorf("Status = %d, want 422", v.Status)
	}
}

func TestParseValidationErrors_ContainerOnlyLocGoesNonField(t *testing.T) {
	body := `{"detail":[{"loc":["body"],"msg":"payload malformed"}]}`
	f := NewResponseFailure(422, []byte(body))

	v := ParseValidationErrors(f)

	if len(v.FieldErrors) != 0 {
		t.Errorf("FieldErrors = %v, want empty", v.FieldErrors)
	}
	if !reflect.DeepEqual(v.NonFieldErrors, []string{"payload malformed"}) {
		t.Errorf("NonFieldErrors = %v, want the entry's message", v.NonFieldErrors)
	}
}

func TestParseValidationErrors_LocScannedFromEnd(t *testing.T) {
	// Numeric indices and container names are skipped; the innermost
	// string segment wins.
	body := `{"detail":[{"loc":["body","items",0,"name"],"msg":"too short"}]}`
	f := NewResponseFailure(422, []byte(body))

	v := ParseValidationErrors(f)

	if got := v.FieldErrors["name"]; !reflect.DeepEqual(got, []string{"too short"}) {
		t.Errorf("FieldErrors[name] = %v, want [too short]", got)
	}
}

func TestParseValidationErrors_StringDetail(t *testing.T) {
	f := NewResponseFailure(403, []byte(`{"detail":"Not enough privileges"}`))

	v := ParseValidationErrors(f)

	if !reflect.DeepEqual(v.NonFieldErrors, []string{"Not enough privileges"}) {
		t.Errorf("NonFieldErrors = %v, want the detail string", v.NonFieldErrors)
	}
	if v.Status != 403 {
		t.Errorf("Status = %d, want 403", v.Status)
	}
}

func TestParseValidationErrors_NonTransportInput(t *testing.T) {
	for _, in := range []any{nil, "boom", errors.New("boom"), NewNetworkFailure(errors.New("down"))} {
		v := ParseValidationErrors(in)
		if !v.Empty() {
			t.Errorf("ParseValidationErrors(%v) = %v, want empty", in, v)
		}
	}
}

func TestParseValidationErrors_GarbageBody(t *testing.T) {
	f := NewResponseFailure(500, []byte("<html>oops</html>"))
	v := ParseValidationErrors(f)
	if !v.Empty() {
		t.Errorf("ParseValidationErrors() = %v, want empty for non-JSON body", v)
	}
	if v.Status != 500 {
		t.Errorf("Status = %d, want 500", v.Status)
	}
}

// =============================================================================
// Body Classification Tests
// =============================================================================

func TestNewResponseFailure_Kinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want BodyKind
	}{
		{"empty", "", BodyNone},
		{"plain text", "bad request", BodyPlainText},
		{"json string", `"bad request"`, BodyPlainText},
		{"detail string", `{"detail":"nope"}`, BodyMessageObject},
		{"message key", `{"message":"nope"}`, BodyMessageObject},
		{"validation list", `{"detail":[{"loc":["body","email"],"msg":"bad"}]}`, BodyValidationList},
		{"unrecognized object", `{"trace":"x"}`, BodyNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewResponseFailure(400, []byte(tt.body))
			if f.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", f.Kind, tt.want)
			}
		})
	}
}
