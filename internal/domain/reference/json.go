package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/realign/internal/types"
)

type jsonWord struct {
	Word                string   `json:"word"`
	Text                string   `json:"text"`
	Punctuation         *string  `json:"punctuation"`
	WordWithPunctuation string   `json:"word_with_punctuation"`
	Start               *float64 `json:"start"`
	End                 *float64 `json:"end"`
	Confidence          *float64 `json:"confidence"`
}

type jsonSegment struct {
	ID           string     `json:"id"`
	Start        *float64   `json:"start"`
	End          *float64   `json:"end"`
	Text         string     `json:"text"`
	Speaker      string     `json:"speaker"`
	Words        []jsonWord `json:"words"`
	Alternatives []struct {
		Text string `json:"text"`
	} `json:"alternatives"`
}

type jsonTurn struct {
	Speaker    string     `json:"speaker"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Transcript string     `json:"transcript"`
	Text       string     `json:"text"`
	Words      []jsonWord `json:"words"`
}

type jsonSection struct {
	Type  string     `json:"type"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Turns []jsonTurn `json:"turns"`
}

type jsonDoc struct {
	Speakers   map[string]types.Speaker `json:"speakers"`
	Sections   []jsonSection            `json:"sections"`
	Monologues []struct {
		Speaker string     `json:"speaker"`
		Turns   []jsonTurn `json:"turns"`
	} `json:"monologues"`
}

func (w jsonWord) toWord() types.Word {
	var out types.Word
	switch {
	case w.Punctuation != nil && w.Word != "":
		out = types.Word{Text: strings.TrimSpace(w.Word), Punctuation: *w.Punctuation}
	case w.WordWithPunctuation != "":
		out = newWord(w.WordWithPunctuation)
	case w.Word != "":
		out = newWord(w.Word)
	default:
		out = newWord(w.Text)
	}
	if w.Start != nil && w.End != nil {
		s, e := *w.Start, *w.End
		if e < s {
			e = s
		}
		out.Start, out.End = types.Sec(s), types.Sec(e)
	}
	if w.Confidence != nil {
		out.Confidence = types.Sec(*w.Confidence)
	}
	return out
}

func convertWords(ws []jsonWord) []types.Word {
	out := make([]types.Word, 0, len(ws))
	for _, w := range ws {
		cw := w.toWord()
		if strings.TrimSpace(cw.Surface()) == "" {
			continue
		}
		out = append(out, cw)
	}
	return out
}

func parseSegments(b []byte) (types.Transcript, error) {
	raw := gjson.ParseBytes(b)
	if !raw.IsArray() {
		raw = raw.Get("segments")
	}
	var segs []jsonSegment
	if err := json.Unmarshal([]byte(raw.Raw), &segs); err != nil {
		return types.Transcript{}, fmt.Errorf("decode segments: %w", err)
	}

	out := make([]types.Segment, 0, len(segs))
	for i, js := range segs {
		seg := types.Segment{ID: js.ID, Speaker: js.Speaker}
		if seg.ID == "" {
			seg.ID = segID(i)
		}
		if seg.Speaker == "" {
			seg.Speaker = DefaultSpeaker
		}
		timed := js.Start != nil && js.End != nil
		if timed {
			seg.Start, seg.End = *js.Start, *js.End
			if seg.End < seg.Start {
				return types.Transcript{}, fmt.Errorf("segment %s: end %.3f before start %.3f", seg.ID, seg.End, seg.Start)
			}
		}
		text := js.Text
		if strings.TrimSpace(text) == "" && len(js.Alternatives) > 0 {
			text = js.Alternatives[0].Text
		}
		if len(js.Words) > 0 {
			seg.Words = convertWords(js.Words)
		} else {
			seg.Words = splitEven(text, seg.Start, seg.End, timed)
		}
		if !timed {
			segmentBounds(&seg)
		}
		out = append(out, seg)
	}

	turns := groupTurns(out)
	tr := types.Transcript{Speakers: speakersOf(turns, nil)}
	if len(turns) > 0 {
		tr.Sections = []types.Section{speechSection(turns)}
	}
	return tr, nil
}

func parseTurns(b []byte) (types.Transcript, error) {
	raw := gjson.ParseBytes(b)
	if h := raw.Get("best_hypothesis"); h.Exists() {
		raw = h
	}
	var doc jsonDoc
	if err := json.Unmarshal([]byte(raw.Raw), &doc); err != nil {
		return types.Transcript{}, fmt.Errorf("decode turns: %w", err)
	}
	if len(doc.Sections) == 0 && len(doc.Monologues) > 0 {
		var turns []jsonTurn
		for _, m := range doc.Monologues {
			for _, t := range m.Turns {
				if t.Speaker == "" {
					t.Speaker = m.Speaker
				}
				turns = append(turns, t)
			}
		}
		doc.Sections = []jsonSection{{Type: types.SectionSpeech, Turns: turns}}
	}

	tr := types.Transcript{Speakers: map[string]types.Speaker{}}
	n := 0
	for _, js := range doc.Sections {
		sec := types.Section{Type: js.Type, Start: js.Start, End: js.End}
		for _, jt := range js.Turns {
			speaker := jt.Speaker
			if speaker == "" {
				speaker = DefaultSpeaker
			}
			seg := types.Segment{ID: segID(n), Speaker: speaker, Start: jt.Start, End: jt.End}
			n++
			if len(jt.Words) > 0 {
				seg.Words = convertWords(jt.Words)
			} else {
				text := jt.Transcript
				if text == "" {
					text = jt.Text
				}
				seg.Words = splitEven(text, jt.Start, jt.End, jt.End > jt.Start)
			}
			segmentBounds(&seg)
			sec.Turns = append(sec.Turns, types.Turn{
				Speaker:  speaker,
				Start:    seg.Start,
				End:      seg.End,
				Segments: []types.Segment{seg},
			})
		}
		if sec.End == 0 && len(sec.Turns) > 0 {
			bounds := speechSection(sec.Turns)
			sec.Start, sec.End = bounds.Start, bounds.End
		}
		tr.Sections = append(tr.Sections, sec)
	}

	var all []types.Turn
	for _, s := range tr.Sections {
		all = append(all, s.Turns...)
	}
	tr.Speakers = speakersOf(all, doc.Speakers)
	return tr, nil
}
