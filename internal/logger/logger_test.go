package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Level{
		"debug":   log.DebugLevel,
		"WARN":    log.WarnLevel,
		" error ": log.ErrorLevel,
		"":        log.InfoLevel,
		"chatty":  log.InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestConfigureFiltersByLevel(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	var buf bytes.Buffer
	Configure("warn", &buf)
	Info("hidden")
	Warn("shown", "kind", "prony-compliance")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "prony-compliance") {
		t.Fatalf("expected warning with key-values, got %q", out)
	}
}
