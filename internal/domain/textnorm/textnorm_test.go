package textnorm

import "testing"

func TestWord(t *testing.T) {
	tests := map[string]string{
		"Tere!":       "tere",
		"MAAILM,":     "maailm",
		"Õun":         "õun",
		"\"jutt\"":    "jutt",
		"...":         "",
		"2024.":       "2024",
		"ülo_tüüp":    "ülo_tüüp",
		"  Šokk?!  ": "šokk",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := Word(in); got != want {
				t.Fatalf("Word(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestSplitPunctuation(t *testing.T) {
	tests := []struct {
		in, word, punct string
	}{
		{"maailm!", "maailm", "!"},
		{"tere", "tere", ""},
		{"jah?!", "jah", "?!"},
		{"...", "...", ""},
		{"öö.", "öö", "."},
	}
	for _, tt := range tests {
		w, p := SplitPunctuation(tt.in)
		if w != tt.word || p != tt.punct {
			t.Fatalf("SplitPunctuation(%q) = (%q, %q), want (%q, %q)", tt.in, w, p, tt.word, tt.punct)
		}
	}
}

func TestTrimSentencePunct(t *testing.T) {
	if got := TrimSentencePunct("lõpp."); got != "lõpp" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := TrimSentencePunct("e-post"); got != "e-post" {
		t.Fatalf("unexpected: %q", got)
	}
}
