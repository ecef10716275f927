package format

import (
	"strings"
	"time"

	"github.com/forPelevin/realign/internal/types"
)

// Line budgets keep subtitle cues readable.
const (
	cueCharBudget = 42
	cueWordBudget = 9
)

type wword struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start   time.Duration
	End     time.Duration
	Speaker string
	Words   []wword
}

// subtitleLines packs timed words into cues, turn by turn so a cue never
// spans two speakers. Turns without timed words fall back to one cue per
// segment.
func subtitleLines(tr types.Transcript) []line {
	var out []line
	for _, sec := range tr.Sections {
		if !sec.IsSpeech() {
			continue
		}
		for _, turn := range sec.Turns {
			name := tr.SpeakerName(turn.Speaker)
			words := collectWords(turn)
			if len(words) == 0 {
				for _, seg := range turn.Segments {
					text := seg.Text()
					if text == "" || seg.End <= seg.Start {
						continue
					}
					w := wword{Start: dur(seg.Start), End: dur(seg.End), Text: text}
					out = append(out, line{Start: w.Start, End: w.End, Speaker: name, Words: []wword{w}})
				}
				continue
			}
			for _, ln := range packWords(words) {
				ln.Speaker = name
				out = append(out, ln)
			}
		}
	}
	return out
}

func collectWords(turn types.Turn) []wword {
	var out []wword
	for _, s := range turn.Segments {
		for _, w := range s.Words {
			ws, we, ok := w.Span()
			if !ok {
				continue
			}
			text := strings.TrimSpace(w.Surface())
			if text == "" {
				continue
			}
			out = append(out, wword{Start: dur(ws), End: dur(we), Text: text})
		}
	}
	return out
}

func packWords(words []wword) []line {
	var out []line
	cur := line{Start: words[0].Start}
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen
		if curLen > 0 {
			nextLen++
		}
		nextLen += wl
		if len(cur.Words) > 0 && (len(cur.Words) >= cueWordBudget || nextLen > cueCharBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen = 0
		}
		cur.Words = append(cur.Words, w)
		if curLen > 0 {
			curLen++
		}
		curLen += wl
		if i == len(words)-1 {
			cur.End = w.End
			out = append(out, cur)
		}
	}
	return out
}

func (ln line) text() string {
	parts := make([]string, len(ln.Words))
	for i, w := range ln.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
