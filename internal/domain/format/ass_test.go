package format

import (
	"strings"
	"testing"
	"time"
)

func TestRenderASS_KaraokeHasKTags(t *testing.T) {
	ass := RenderASS(sample())
	if !strings.Contains(ass, "{\\k") {
		t.Fatalf("expected karaoke tags in ASS, got:\n%s", ass)
	}
	if !strings.Contains(ass, ",Default,Jaan Tamm,") {
		t.Fatalf("expected speaker name on dialogue line, got:\n%s", ass)
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}

func TestPackWords_RespectsBudgets(t *testing.T) {
	var words []wword
	for i := 0; i < 20; i++ {
		words = append(words, wword{Start: time.Duration(i) * time.Second, End: time.Duration(i+1) * time.Second, Text: "sõna"})
	}
	lines := packWords(words)
	total := 0
	for _, ln := range lines {
		if len(ln.Words) > cueWordBudget || len([]rune(ln.text())) > cueCharBudget {
			t.Fatalf("line over budget: %q", ln.text())
		}
		if ln.End != ln.Words[len(ln.Words)-1].End {
			t.Fatalf("line end does not match last word")
		}
		total += len(ln.Words)
	}
	if total != 20 {
		t.Fatalf("lost words: %d", total)
	}
}

func TestPackWords_LongWordGetsOwnLine(t *testing.T) {
	long := strings.Repeat("a", 50)
	lines := packWords([]wword{{Text: long}, {Text: "b"}})
	if len(lines) != 2 || lines[0].Words[0].Text != long {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}
