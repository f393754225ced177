package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	logger.Log(t.Context(), LevelTrace, "partition accumulated", "partition", 2)
	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("erwartet level=TRACE, got %q", out)
	}
	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("erwartet gekuerzte Quelle, got %q", out)
	}
	if !strings.Contains(out, "partition=2") {
		t.Errorf("erwartet Attribut, got %q", out)
	}
}

func TestTraceDisabled(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	slog.SetDefault(NewLogger(&buf, slog.LevelDebug))
	Trace("hidden")
	if buf.Len() != 0 {
		t.Errorf("Trace unterhalb des Levels geschrieben: %q", buf.String())
	}

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	Trace("visible", "k", "v")
	if !strings.Contains(buf.String(), "msg=visible k=v") {
		t.Errorf("Trace fehlt: %q", buf.String())
	}
}
