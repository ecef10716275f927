// Package reference loads transcripts from the shapes used across the
// pipeline (flat segment JSON, nested turn/word JSON, CTM, Transcriber TRS)
// into the canonical [types.Transcript].
package reference

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/realign/internal/domain/textnorm"
	"github.com/forPelevin/realign/internal/types"
)

// Format names a supported transcript shape.
type Format string

const (
	FormatAuto     Format = ""
	FormatSegments Format = "segments"
	FormatTurns    Format = "turns"
	FormatCTM      Format = "ctm"
	FormatTRS      Format = "trs"
)

// DefaultSpeaker labels words from formats that carry no speaker.
const DefaultSpeaker = "S1"

var ErrUnknownFormat = errors.New("unrecognized transcript format")

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatSegments, FormatTurns, FormatCTM, FormatTRS:
		return f, nil
	}
	if strings.EqualFold(s, "auto") {
		return FormatAuto, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Load reads and parses the transcript at path. Errors name the path.
func Load(path string, f Format) (types.Transcript, Format, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, "", fmt.Errorf("load %q: %w", path, err)
	}
	if f == FormatAuto {
		f, err = Detect(path, b)
		if err != nil {
			return types.Transcript{}, "", fmt.Errorf("load %q: %w", path, err)
		}
	}
	tr, err := Parse(b, f)
	if err != nil {
		return types.Transcript{}, f, fmt.Errorf("load %q as %s: %w", path, f, err)
	}
	return tr, f, nil
}

// Detect picks the format from the file extension, falling back to
// sniffing the JSON document shape.
func Detect(path string, b []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ctm":
		return FormatCTM, nil
	case ".trs", ".xml":
		return FormatTRS, nil
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return FormatTRS, nil
	}
	if !gjson.ValidBytes(trimmed) {
		// Non-JSON text with numeric time columns is treated as CTM.
		if looksLikeCTM(trimmed) {
			return FormatCTM, nil
		}
		return "", ErrUnknownFormat
	}
	root := gjson.ParseBytes(trimmed)
	switch {
	case root.IsArray():
		return FormatSegments, nil
	case root.Get("best_hypothesis").Exists(),
		root.Get("sections").Exists(),
		root.Get("monologues").Exists():
		return FormatTurns, nil
	case root.Get("segments").Exists():
		return FormatSegments, nil
	}
	return "", ErrUnknownFormat
}

// Parse decodes b in the given format.
func Parse(b []byte, f Format) (types.Transcript, error) {
	switch f {
	case FormatSegments:
		return parseSegments(b)
	case FormatTurns:
		return parseTurns(b)
	case FormatCTM:
		return parseCTM(b)
	case FormatTRS:
		return parseTRS(b)
	}
	return types.Transcript{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// splitEven turns a text span into words, spreading [start, end] evenly
// across them when the span is timed.
func splitEven(text string, start, end float64, timed bool) []types.Word {
	toks := strings.Fields(text)
	if len(toks) == 0 {
		return nil
	}
	out := make([]types.Word, 0, len(toks))
	step := (end - start) / float64(len(toks))
	for i, tok := range toks {
		w := newWord(tok)
		if timed {
			ws := start + float64(i)*step
			we := min(start+float64(i+1)*step, end)
			w.Start, w.End = types.Sec(ws), types.Sec(we)
		}
		out = append(out, w)
	}
	return out
}

func newWord(surface string) types.Word {
	word, punct := textnorm.SplitPunctuation(surface)
	return types.Word{Text: word, Punctuation: punct}
}

// groupTurns folds consecutive segments of one speaker into turns.
func groupTurns(segs []types.Segment) []types.Turn {
	var out []types.Turn
	for _, s := range segs {
		if n := len(out); n > 0 && out[n-1].Speaker == s.Speaker {
			out[n-1].Segments = append(out[n-1].Segments, s)
			out[n-1].End = max(out[n-1].End, s.End)
			continue
		}
		out = append(out, types.Turn{Speaker: s.Speaker, Start: s.Start, End: s.End, Segments: []types.Segment{s}})
	}
	return out
}

func speechSection(turns []types.Turn) types.Section {
	sec := types.Section{Type: types.SectionSpeech, Turns: turns}
	for i, t := range turns {
		if i == 0 || t.Start < sec.Start {
			sec.Start = t.Start
		}
		sec.End = max(sec.End, t.End)
	}
	return sec
}

func speakersOf(turns []types.Turn, known map[string]types.Speaker) map[string]types.Speaker {
	out := make(map[string]types.Speaker, len(known))
	for k, v := range known {
		out[k] = v
	}
	for _, t := range turns {
		if _, ok := out[t.Speaker]; !ok {
			out[t.Speaker] = types.Speaker{}
		}
	}
	return out
}

// segmentBounds widens a segment to cover its timed words.
func segmentBounds(s *types.Segment) {
	for _, w := range s.Words {
		ws, we, ok := w.Span()
		if !ok {
			continue
		}
		if s.End <= s.Start && s.Start == 0 {
			s.Start, s.End = ws, we
			continue
		}
		s.Start = min(s.Start, ws)
		s.End = max(s.End, we)
	}
}

func segID(n int) string { return fmt.Sprintf("seg_%04d", n) }
