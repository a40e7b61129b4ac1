package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Debug("hidden")
	log.Info("Imported version", "version_id", 3, "error", errors.New("boom"), 7, "skipped")

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("decoding event %q: %v", buf.String(), err)
	}
	delete(event, "time")

	want := map[string]interface{}{
		"level":      "info",
		"message":    "Imported version",
		"version_id": float64(3),
		"error":      "boom",
	}
	if diff := cmp.Diff(want, event); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestMapFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, zerolog.DebugLevel).Debug("Parsed", map[string]interface{}{"dataset": "climatology"})

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if event["dataset"] != "climatology" {
		t.Errorf("Expected dataset field, got %v", event)
	}
}
