// Package textnorm normalizes Estonian words for comparison and for the
// aligner's lexicon.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Word lower-cases w and drops every rune that is not a letter, digit,
// underscore or space. Comparisons run on this form; surface forms are kept
// by callers.
func Word(w string) string {
	// Casers carry state, so one is built per call.
	w = cases.Lower(language.Estonian).String(norm.NFC.String(w))
	var b strings.Builder
	b.Grow(len(w))
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Words normalizes each element of ws.
func Words(ws []string) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = Word(w)
	}
	return out
}

// SplitPunctuation separates trailing punctuation from a surface token:
// "maailm!" -> ("maailm", "!"). A token made only of punctuation is
// returned as the word.
func SplitPunctuation(tok string) (word, punct string) {
	tok = strings.TrimSpace(tok)
	end := len(tok)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(tok[:end])
		if !unicode.IsPunct(r) {
			break
		}
		end -= size
	}
	if end == 0 {
		return tok, ""
	}
	return tok[:end], tok[end:]
}

// TrimSentencePunct strips trailing sentence punctuation used by CTM output.
func TrimSentencePunct(w string) string {
	return strings.TrimRight(w, ".,!?;:…")
}
