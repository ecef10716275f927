package types

import "strings"

// Transcript is the canonical in-memory transcript: sections of speaker
// turns, each split into time-bounded segments of words.
type Transcript struct {
	Speakers map[string]Speaker `json:"speakers"`
	Sections []Section          `json:"sections"`
}

type Speaker struct {
	Name string `json:"name,omitempty"`
}

type Section struct {
	Type  string  `json:"type"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Turns []Turn  `json:"turns,omitempty"`
}

type Turn struct {
	Speaker  string    `json:"speaker"`
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	ID      string  `json:"id"`
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Words   []Word  `json:"words"`
}

// Word times are pointers: a merged word whose utterance failed to align
// and has no prior timing carries null times.
type Word struct {
	Text        string   `json:"word"`
	Punctuation string   `json:"punctuation,omitempty"`
	Start       *float64 `json:"start"`
	End         *float64 `json:"end"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Sec returns a pointer to v.
func Sec(v float64) *float64 { return &v }

// Timed reports whether both word times are known.
func (w Word) Timed() bool { return w.Start != nil && w.End != nil }

// Span returns the word times; ok is false for untimed words.
func (w Word) Span() (start, end float64, ok bool) {
	if !w.Timed() {
		return 0, 0, false
	}
	return *w.Start, *w.End, true
}

// Surface is the word as written, punctuation included.
func (w Word) Surface() string { return w.Text + w.Punctuation }

// SectionSpeech marks sections that carry speech turns.
const SectionSpeech = "speech"

// IsSpeech reports whether the section contributes words. Untyped sections
// come from formats without section types and count as speech.
func (s Section) IsSpeech() bool { return s.Type == "" || s.Type == SectionSpeech }

// Text joins the surface forms of the segment words.
func (s Segment) Text() string {
	parts := make([]string, 0, len(s.Words))
	for _, w := range s.Words {
		if t := strings.TrimSpace(w.Surface()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Text joins the text of all turn segments.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := s.Text(); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

// SpeakerName resolves a speaker label to its display name.
func (tr Transcript) SpeakerName(id string) string {
	if sp, ok := tr.Speakers[id]; ok && strings.TrimSpace(sp.Name) != "" {
		return sp.Name
	}
	return id
}

// WordRef locates a word inside a transcript.
type WordRef struct {
	Section int
	Turn    int
	Segment int
	Word    int
}

// FlatWord is one element of the flattened word sequence.
type FlatWord struct {
	Word
	Ref       WordRef
	SegmentID string
	Speaker   string
}

// Flatten returns the words of all speech sections in document order.
func (tr Transcript) Flatten() []FlatWord {
	var out []FlatWord
	for si, sec := range tr.Sections {
		if !sec.IsSpeech() {
			continue
		}
		for ti, turn := range sec.Turns {
			for gi, seg := range turn.Segments {
				for wi, w := range seg.Words {
					out = append(out, FlatWord{
						Word:      w,
						Ref:       WordRef{Section: si, Turn: ti, Segment: gi, Word: wi},
						SegmentID: seg.ID,
						Speaker:   turn.Speaker,
					})
				}
			}
		}
	}
	return out
}

// WordCount counts words in speech sections.
func (tr Transcript) WordCount() int {
	n := 0
	for _, sec := range tr.Sections {
		if !sec.IsSpeech() {
			continue
		}
		for _, turn := range sec.Turns {
			for _, seg := range turn.Segments {
				n += len(seg.Words)
			}
		}
	}
	return n
}

// Clone returns a deep copy so renderers and mergers never share state
// with the loaded input.
func (tr Transcript) Clone() Transcript {
	out := Transcript{Speakers: make(map[string]Speaker, len(tr.Speakers))}
	for k, v := range tr.Speakers {
		out.Speakers[k] = v
	}
	out.Sections = make([]Section, len(tr.Sections))
	for i, sec := range tr.Sections {
		sec.Turns = append([]Turn(nil), sec.Turns...)
		for j, turn := range sec.Turns {
			turn.Segments = append([]Segment(nil), turn.Segments...)
			for k, seg := range turn.Segments {
				words := make([]Word, len(seg.Words))
				for l, w := range seg.Words {
					words[l] = w.clone()
				}
				seg.Words = words
				turn.Segments[k] = seg
			}
			sec.Turns[j] = turn
		}
		out.Sections[i] = sec
	}
	return out
}

func (w Word) clone() Word {
	if w.Start != nil {
		w.Start = Sec(*w.Start)
	}
	if w.End != nil {
		w.End = Sec(*w.End)
	}
	if w.Confidence != nil {
		w.Confidence = Sec(*w.Confidence)
	}
	return w
}
