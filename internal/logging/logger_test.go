package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitTo_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, Config{Level: "warn", Format: "json"})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := WithRecording("pipeline", "/data/intervjuu.trs")
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "pipeline" || line["candidate"] != "/data/intervjuu.trs" || line["message"] != "kept" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestInitTo_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "loud"
	InitTo(&buf, cfg)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", zerolog.GlobalLevel())
	}
	l := WithComponent("cli")
	l.Info().Msg("hello")
	if !bytes.Contains(buf.Bytes(), []byte("hello")) || !bytes.Contains(buf.Bytes(), []byte("cli")) {
		t.Fatalf("unexpected console output: %q", buf.String())
	}
}
