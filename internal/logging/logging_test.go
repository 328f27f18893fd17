package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesLogfmtLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Info).(*logfmtLogger)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.With(F("component", "auth")).Info("token refreshed", F("attempt", 2), Err(errors.New("bad thing")))

	got := strings.TrimSpace(buf.String())
	want := `ts=2026-01-02T03:04:05Z level=info msg="token refreshed" component=auth attempt=2 error="bad thing"`
	if got != want {
		t.Fatalf("unexpected line\nwant %s\ngot  %s", want, got)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warn)
	l.Info("ignored")
	l.Debug("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	if !l.Enabled(Error) || l.Enabled(Info) {
		t.Fatalf("unexpected Enabled results")
	}
}

func TestNopDropsEverything(t *testing.T) {
	l := Nop()
	if l.Enabled(Error) {
		t.Fatalf("nop logger should not be enabled")
	}
	l.Error("nothing")
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"short":                "*****",
		"12345678":             "********",
		"ghp_abcdefghijklwxyz": "ghp_...wxyz",
	}
	for in, want := range cases {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
	if f := Secret("token", "ghp_abcdefghijklwxyz"); f.Value != "ghp_...wxyz" {
		t.Fatalf("unexpected secret field %#v", f)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel(" WARNING ") != Warn || ParseLevel("debug") != Debug || ParseLevel("bogus") != Info {
		t.Fatalf("unexpected level parsing")
	}
}
