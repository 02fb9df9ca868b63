package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(Options{Level: tt.level, Out: &bytes.Buffer{}})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if log.GetLevel() != tt.want {
				t.Errorf("GetLevel() = %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() expected error for invalid level")
	}
}

func TestNewJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", Format: "json", Out: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info().Str("fn", "9289000100408074").Msg("receipt load completed")

	out := buf.String()
	if !strings.Contains(out, `"fn":"9289000100408074"`) {
		t.Errorf("expected structured field in output, got: %s", out)
	}
	if !strings.Contains(out, `"message":"receipt load completed"`) {
		t.Errorf("expected message in output, got: %s", out)
	}
}

func TestNewConsoleFormatFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", Format: "console", Out: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("info message missing, got: %s", out)
	}
}
