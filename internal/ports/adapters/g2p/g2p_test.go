package g2p

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	got, err := parse([]byte("uus u u s\nuus u: s\n\nkala k a l a\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got["uus"]) != 2 || got["kala"][0] != "k a l a" {
		t.Fatalf("unexpected pronunciations: %v", got)
	}
	if _, err := parse([]byte("lonely\n")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPronounce_FeedsWordsOnStdin(t *testing.T) {
	script := filepath.Join(t.TempDir(), "g2p.sh")
	body := "#!/bin/sh\nwhile read w; do echo \"$w x\"; done\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := New(script, nil).Pronounce(context.Background(), []string{"üks", "kaks"})
	if err != nil {
		t.Fatalf("pronounce: %v", err)
	}
	if len(got) != 2 || got["üks"][0] != "x" {
		t.Fatalf("unexpected output: %v", got)
	}
}

func TestPronounce_Empty(t *testing.T) {
	got, err := New("/nonexistent", nil).Pronounce(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no-op, got %v %v", got, err)
	}
}
