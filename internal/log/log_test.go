package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(nopWriter{})
	})

	Info("hidden")
	Debug("hidden too")
	Warn("shown", "day", "2025-01-06")
	Error("failed", errors.New("boom"), "id", "ev 1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info/debug to be filtered; got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown day=2025-01-06") {
		t.Fatalf("missing warn line; got %q", out)
	}
	if !strings.Contains(out, `[ERROR] failed err=boom id="ev 1"`) {
		t.Fatalf("missing error line; got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" Warning ", LevelWarn, true},
		{"ERROR", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) = %v,%v; want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
