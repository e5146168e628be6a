package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(zapcore.AddSync(&buf))
	t.Cleanup(func() { SetOutput(zapcore.Lock(zapcore.AddSync(&bytes.Buffer{}))) })
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("bad json %q: %v", buf.String(), err)
	}
	return m
}

func TestNamedLoggerRedactsEmailFields(t *testing.T) {
	buf := capture(t)
	SetRedactPII(true)

	Named("dispatcher").Info("sent", "email", "john.doe@example.com", "attempt", 2)

	m := decode(t, buf)
	if m["component"] != "dispatcher" {
		t.Fatalf("component = %v", m["component"])
	}
	if m["email"] != "jo***@example.com" {
		t.Fatalf("email not redacted: %v", m["email"])
	}
	if m["attempt"] != float64(2) {
		t.Fatalf("attempt = %v", m["attempt"])
	}
	if m["level"] != "INFO" || m["msg"] != "sent" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestRedactsEmbeddedAddressesInErrors(t *testing.T) {
	buf := capture(t)
	SetRedactPII(true)

	Error("send failed", "error", errors.New("rejected ab@example.com"))

	m := decode(t, buf)
	if m["error"] != "rejected ***@example.com" {
		t.Fatalf("error not redacted: %v", m["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)
	defer SetLevel(INFO)

	Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("INFO written at WARN level: %s", buf.String())
	}
	Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("WARN not written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DEBUG, "INFO": INFO, "warning": WARN, "error": ERROR, "": INFO}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"not-an-email":         "***@***",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
