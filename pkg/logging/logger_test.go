package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json debug", Config{Level: "debug", Format: "json"}, false},
		{"upper case", Config{Level: "WARN", Format: "TEXT"}, false},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Writer = &buf
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("compiled", "stage", "parse")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "compiled" || rec["stage"] != "parse" {
		t.Errorf("record = %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	if l, _ := ParseLevel("debug"); l != slog.LevelDebug {
		t.Errorf("debug = %v", l)
	}
	if l, _ := ParseLevel(""); l != slog.LevelInfo {
		t.Errorf("empty = %v", l)
	}
}

func TestCompilationID(t *testing.T) {
	id := NewCompilationID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("NewCompilationID() = %q is not a uuid: %v", id, err)
	}

	ctx := context.Background()
	if got := CompilationID(ctx); got != "" {
		t.Errorf("empty context gave %q", got)
	}
	ctx = WithCompilationID(ctx, id)
	if got := CompilationID(ctx); got != id {
		t.Errorf("CompilationID() = %q, want %q", got, id)
	}

	var buf bytes.Buffer
	log, _ := New(Config{Writer: &buf})
	FromContext(ctx, log).Info("hello")
	if !strings.Contains(buf.String(), "compilation_id="+id) {
		t.Errorf("missing compilation id in %q", buf.String())
	}
}
