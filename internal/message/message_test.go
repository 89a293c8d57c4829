package message

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	m := New(Error, "app", "boom")
	if m.Count != 1 {
		t.Fatalf("count=%d", m.Count)
	}
	if len(m.Key) != 32 {
		t.Fatalf("key %q", m.Key)
	}
	if m.Timestamp == 0 {
		t.Fatalf("timestamp not set")
	}
	if n := New(Error, "app", "boom"); n.Key == m.Key {
		t.Fatalf("duplicate key")
	}
}

func TestGroupingKey(t *testing.T) {
	a := New(Error, "web", "boom")
	a.Backtrace = "a.go:1"
	b := New(Error, "worker", "boom")
	b.Backtrace = "a.go:1"
	b.Count = 7
	if a.GroupingKey() != b.GroupingKey() {
		t.Fatalf("progname/count/key must not affect grouping")
	}
	if len(a.GroupingKey()) != 40 {
		t.Fatalf("expected sha1 hex, got %q", a.GroupingKey())
	}

	for name, mut := range map[string]func(*Message){
		"text":      func(m *Message) { m.Message = "bang" },
		"severity":  func(m *Message) { m.Severity = Warn },
		"backtrace": func(m *Message) { m.Backtrace = "b.go:2" },
	} {
		c := *a
		mut(&c)
		if c.GroupingKey() == a.GroupingKey() {
			t.Fatalf("%s change kept grouping key", name)
		}
	}
}

func TestCompare(t *testing.T) {
	a := &Message{Key: "b", Timestamp: 1}
	b := &Message{Key: "a", Timestamp: 2}
	c := &Message{Key: "c", Timestamp: 2}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 {
		t.Fatalf("timestamp must dominate")
	}
	if b.Compare(c) >= 0 {
		t.Fatalf("key breaks ties")
	}
	if c.Compare(c) != 0 {
		t.Fatalf("self compare")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := New(Warn, "app", "disk low")
	m.Backtrace = "main.go:10"
	m.Count = 3
	m.Env = map[string]any{"hostname": "h1"}
	m.Protected = true

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"message"`, `"progname"`, `"severity":2`, `"timestamp"`, `"key"`, `"backtrace"`, `"count":3`, `"env"`, `"protected":true`} {
		if !strings.Contains(data, field) {
			t.Fatalf("missing %s in %s", field, data)
		}
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Protected {
		t.Fatalf("protected must be recomputed by the store")
	}
	if got.Key != m.Key || got.Timestamp != m.Timestamp || got.Severity != m.Severity ||
		got.Progname != m.Progname || got.Message != m.Message || got.Backtrace != m.Backtrace ||
		got.Count != m.Count || got.Env["hostname"] != "h1" {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, m)
	}
}

func TestMarshalNullBacktrace(t *testing.T) {
	m := New(Info, "app", "x")
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(data, `"backtrace":null`) {
		t.Fatalf("expected null backtrace: %s", data)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal("{"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Unmarshal(`{"message":"x"}`); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"debug": Debug, "INFO": Info, "warning": Warn, "Warn": Warn,
		"error": Error, "fatal": Fatal, "unknown": Unknown, "3": Error,
	}
	for in, want := range cases {
		got, err := ParseSeverity(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v err %v", in, got, err)
		}
	}
	if _, err := ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseSeverity("9"); err == nil {
		t.Fatalf("expected out of range error")
	}

	list, err := ParseSeverities("warn, error,")
	if err != nil || len(list) != 2 || list[0] != Warn || list[1] != Error {
		t.Fatalf("list %v err %v", list, err)
	}
}

func TestEnvFromRequest(t *testing.T) {
	long := strings.Repeat("x", 150)
	r := httptest.NewRequest("POST", "http://example.com/orders?id=7&user_password=secret&note="+long, nil)
	r.Header.Set("User-Agent", "curl/8")
	r.Header.Set("Authorization", "Bearer t")

	env := EnvFromRequest(r)
	if env["HTTP_HOST"] != "example.com" || env["REQUEST_METHOD"] != "POST" || env["HTTP_USER_AGENT"] != "curl/8" {
		t.Fatalf("env %v", env)
	}
	if env["REQUEST_URI"] == nil {
		t.Fatalf("missing request uri")
	}
	if _, ok := env["HTTP_AUTHORIZATION"]; ok {
		t.Fatalf("authorization must not be captured")
	}
	if env["hostname"] == nil || env["process_id"] == nil {
		t.Fatalf("missing process env: %v", env)
	}
	params := env["params"].(map[string]any)
	if params["user_password"] != "[redacted]" {
		t.Fatalf("password not redacted: %v", params)
	}
	if params["id"] != "7" {
		t.Fatalf("id: %v", params["id"])
	}
	if n := len(params["note"].(string)); n != 100 {
		t.Fatalf("note truncated to %d", n)
	}
}

func TestScrubEnv(t *testing.T) {
	env := ScrubEnv(map[string]any{
		"HTTP_HOST": "h",
		"SECRET":    "s",
		"params":    map[string]any{"password": "p", "n": 1},
	})
	if env["HTTP_HOST"] != "h" || env["SECRET"] != nil {
		t.Fatalf("env %v", env)
	}
	params := env["params"].(map[string]any)
	if params["password"] != "[redacted]" || params["n"] != 1 {
		t.Fatalf("params %v", params)
	}
	if ScrubEnv(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

func TestWithProcessEnvKeepsExisting(t *testing.T) {
	env := WithProcessEnv(map[string]any{"hostname": "box"})
	if env["hostname"] != "box" {
		t.Fatalf("hostname overwritten")
	}
	if env["process_id"] == nil {
		t.Fatalf("process_id missing")
	}
}
