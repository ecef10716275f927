// Package lexicon holds the pronunciation lexicon handed to the forced
// aligner and writes the aligner's input manifest.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Lexicon maps words to one or more pronunciations (space separated
// phones). A Lexicon is never modified after construction.
type Lexicon struct {
	prons  map[string][]string
	phones map[string]bool
}

func New() *Lexicon {
	return &Lexicon{prons: map[string][]string{}, phones: map[string]bool{}}
}

// Load reads a `word phone phone ...` lexicon file.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load lexicon %q: %w", path, err)
	}
	defer f.Close()
	lex, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load lexicon %q: %w", path, err)
	}
	return lex, nil
}

func Parse(r io.Reader) (*Lexicon, error) {
	lex := New()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < 2 {
			return nil, fmt.Errorf("line %d: word %q has no phones", line, f[0])
		}
		lex.add(f[0], strings.Join(f[1:], " "))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return lex, nil
}

func (l *Lexicon) add(word, pron string) {
	if slices.Contains(l.prons[word], pron) {
		return
	}
	l.prons[word] = append(l.prons[word], pron)
	for _, p := range strings.Fields(pron) {
		l.phones[p] = true
	}
}

func (l *Lexicon) Len() int { return len(l.prons) }

func (l *Lexicon) Has(word string) bool {
	_, ok := l.prons[word]
	return ok
}

func (l *Lexicon) Pronunciations(word string) []string {
	return slices.Clone(l.prons[word])
}

// OOV returns the unique non-empty words missing from the lexicon, in
// first-seen order.
func (l *Lexicon) OOV(words []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if w == "" || seen[w] || l.Has(w) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// With returns a copy extended with extra pronunciations. Each added
// pronunciation goes through NormalizePron; duplicates are dropped.
func (l *Lexicon) With(extra map[string][]string) *Lexicon {
	out := New()
	for w, ps := range l.prons {
		out.prons[w] = slices.Clone(ps)
	}
	for p := range l.phones {
		out.phones[p] = true
	}
	words := make([]string, 0, len(extra))
	for w := range extra {
		words = append(words, w)
	}
	slices.Sort(words)
	for _, w := range words {
		for _, p := range extra[w] {
			if p = l.NormalizePron(p); p != "" {
				out.add(w, p)
			}
		}
	}
	return out
}

// NormalizePron cleans a generated pronunciation: whitespace is
// collapsed, runs of three or more identical phones shrink to two, and a
// doubled phone becomes the long phone ("a a" -> "a:") when the lexicon's
// phone set has one.
func (l *Lexicon) NormalizePron(pron string) string {
	ph := strings.Fields(pron)
	out := make([]string, 0, len(ph))
	for i := 0; i < len(ph); {
		j := i
		for j < len(ph) && ph[j] == ph[i] {
			j++
		}
		run := min(j-i, 2)
		if run == 2 && l.phones[ph[i]+":"] {
			out = append(out, ph[i]+":")
		} else {
			for k := 0; k < run; k++ {
				out = append(out, ph[i])
			}
		}
		i = j
	}
	return strings.Join(out, " ")
}

// WriteTo writes the lexicon sorted by word, one pronunciation per line.
func (l *Lexicon) WriteTo(w io.Writer) (int64, error) {
	words := make([]string, 0, len(l.prons))
	for word := range l.prons {
		words = append(words, word)
	}
	slices.Sort(words)

	bw := bufio.NewWriter(w)
	var n int64
	for _, word := range words {
		for _, p := range l.prons[word] {
			m, err := fmt.Fprintf(bw, "%s %s\n", word, p)
			n += int64(m)
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}
