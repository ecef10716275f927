// Package segmenter turns the candidate transcript into time-bounded
// utterances for forced alignment, cutting long speaker turns at trusted
// anchor points or original segment edges.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/forPelevin/realign/internal/domain/textnorm"
	"github.com/forPelevin/realign/internal/types"
)

const (
	DefaultMaxDuration = 30.0
	DefaultMaxGap      = 2.0
)

type Options struct {
	// MaxDuration caps utterance length in seconds. Zero means no cap.
	MaxDuration float64
	// MaxGap forces a cut between consecutive segments separated by more
	// than this many seconds of silence.
	MaxGap       float64
	UseAnchoring bool
}

func DefaultOptions() Options {
	return Options{MaxDuration: DefaultMaxDuration, MaxGap: DefaultMaxGap, UseAnchoring: true}
}

type Result struct {
	Utterances []types.Utterance
	// Anchored is false when the original segmentation was kept.
	Anchored bool
	// Oversize lists utterances longer than MaxDuration that had no
	// boundary to cut at.
	Oversize []string
}

// Synthesize builds utterances turn by turn. trusted holds the trusted
// anchors keyed by candidate word index and ref is the flattened reference
// whose times place anchor boundaries. Without trusted anchors, or with
// anchoring disabled, every original segment becomes one utterance.
//
// Untimed candidate segments take their bounds from the words inside them,
// timed by the reference through trusted anchors. An utterance that no
// time reaches at all has HasBounds unset.
func Synthesize(cand types.Transcript, trusted map[int]types.Anchor, ref []types.FlatWord, opts Options) Result {
	if !opts.UseAnchoring {
		trusted = nil
	}
	s := &synth{opts: opts, trusted: trusted, ref: ref}
	anchored := opts.UseAnchoring && len(trusted) > 0

	flat := 0
	for si, sec := range cand.Sections {
		if !sec.IsSpeech() {
			continue
		}
		for _, turn := range sec.Turns {
			words := turnWords(turn, flat)
			flat += len(words)
			if len(words) == 0 {
				continue
			}
			if anchored {
				s.split(si, turn, words)
			} else {
				s.original(si, turn, words)
			}
		}
	}
	return Result{Utterances: s.out, Anchored: anchored, Oversize: s.oversize}
}

type word struct {
	types.Word
	flat int
	seg  int
}

func turnWords(turn types.Turn, base int) []word {
	var out []word
	for gi, seg := range turn.Segments {
		for _, w := range seg.Words {
			out = append(out, word{Word: w, flat: base + len(out), seg: gi})
		}
	}
	return out
}

// boundary is a possible cut before words[idx].
type boundary struct {
	idx    int
	at     float64
	anchor bool
	forced bool
}

type synth struct {
	opts     Options
	trusted  map[int]types.Anchor
	ref      []types.FlatWord
	out      []types.Utterance
	oversize []string
}

// span is an estimated word time.
type span struct {
	start, end float64
	ok         bool
}

// turnTimes places the words of one turn in time. Timed segments keep their
// own bounds. Words of untimed segments use their candidate times, else the
// reference times of their trusted anchor; the rest are spread evenly
// between timed neighbours, or extended at the mean word length past the
// first and last of them.
type turnTimes struct {
	turn  types.Turn
	words []word
	est   []span
}

func (s *synth) times(turn types.Turn, words []word) turnTimes {
	est := make([]span, len(words))
	var known []int
	for i, w := range words {
		if ws, we, ok := w.Span(); ok {
			est[i] = span{ws, we, true}
		} else if a, ok := s.trusted[w.flat]; ok && a.RefIndex >= 0 && a.RefIndex < len(s.ref) {
			if rs, re, ok := s.ref[a.RefIndex].Span(); ok {
				est[i] = span{rs, re, true}
			}
		}
		if est[i].ok {
			known = append(known, i)
		}
	}
	tt := turnTimes{turn: turn, words: words, est: est}
	if len(known) == 0 {
		return tt
	}

	for p := 1; p < len(known); p++ {
		i, j := known[p-1], known[p]
		n := j - i - 1
		if n == 0 {
			continue
		}
		from := est[i].end
		step := max(0, est[j].start-from) / float64(n)
		for m := 1; m <= n; m++ {
			est[i+m] = span{from + float64(m-1)*step, from + float64(m)*step, true}
		}
	}

	first, last := known[0], known[len(known)-1]
	per := max(0, (est[last].end-est[first].start)/float64(last-first+1))
	for k := first - 1; k >= 0; k-- {
		e := est[k+1].start
		est[k] = span{max(0, e-per), e, true}
	}
	for k := last + 1; k < len(est); k++ {
		b := est[k-1].end
		est[k] = span{b, b + per, true}
	}
	return tt
}

func (tt turnTimes) segTimed(i int) bool {
	seg := tt.turn.Segments[tt.words[i].seg]
	return seg.End > seg.Start
}

// start is the earliest time of words[i]: its segment start when the
// segment is timed.
func (tt turnTimes) start(i int) float64 {
	if tt.segTimed(i) {
		return tt.turn.Segments[tt.words[i].seg].Start
	}
	return tt.est[i].start
}

func (tt turnTimes) end(i int) float64 {
	if tt.segTimed(i) {
		return tt.turn.Segments[tt.words[i].seg].End
	}
	return tt.est[i].end
}

func (tt turnTimes) placed(i int) bool { return tt.segTimed(i) || tt.est[i].ok }

func (s *synth) original(si int, turn types.Turn, words []word) {
	tt := s.times(turn, words)
	from := 0
	for i := 1; i <= len(words); i++ {
		if i < len(words) && words[i].seg == words[from].seg {
			continue
		}
		s.emit(si, turn, words[from:i], tt.start(from), tt.end(i-1), tt.placed(from))
		from = i
	}
}

func (s *synth) split(si int, turn types.Turn, words []word) {
	tt := s.times(turn, words)
	bounds := s.boundaries(tt)
	bounded := func(from, to int) bool { return tt.placed(from) && tt.placed(to-1) }

	start, at := 0, tt.start(0)
	for start < len(words) {
		stop, stopAt := len(words), 0.0
		for _, b := range bounds {
			if b.forced && b.idx > start {
				stop, stopAt = b.idx, b.at
				break
			}
		}
		end := tt.end(stop - 1)
		if s.opts.MaxDuration <= 0 || end-at <= s.opts.MaxDuration {
			s.emit(si, turn, words[start:stop], at, end, bounded(start, stop))
			start, at = stop, stopAt
			continue
		}

		cut, ok := s.pick(bounds, start, stop, at)
		if !ok {
			s.emit(si, turn, words[start:stop], at, end, bounded(start, stop))
			start, at = stop, stopAt
			continue
		}
		s.emit(si, turn, words[start:cut.idx], at, max(at, min(cut.at, tt.end(cut.idx-1))), bounded(start, cut.idx))
		start, at = cut.idx, cut.at
	}
}

// pick chooses the cut for the piece starting at words[start]: the latest
// boundary that keeps the piece within MaxDuration, anchors first, or the
// earliest boundary past the cap when nothing fits.
func (s *synth) pick(bounds []boundary, start, stop int, at float64) (boundary, bool) {
	limit := at + s.opts.MaxDuration
	var latestAnchor, latestAny, earliest *boundary
	for i := range bounds {
		b := &bounds[i]
		if b.idx <= start || b.idx >= stop || b.at <= at {
			continue
		}
		if b.at > limit {
			if earliest == nil {
				earliest = b
			}
			continue
		}
		latestAny = b
		if b.anchor {
			latestAnchor = b
		}
	}
	switch {
	case latestAnchor != nil:
		return *latestAnchor, true
	case latestAny != nil:
		return *latestAny, true
	case earliest != nil:
		return *earliest, true
	}
	return boundary{}, false
}

func (s *synth) boundaries(tt turnTimes) []boundary {
	words := tt.words
	var out []boundary
	for i := 1; i < len(words); i++ {
		var b boundary
		ok := false
		if words[i].seg != words[i-1].seg {
			b = boundary{idx: i, at: tt.start(i)}
			b.forced = s.opts.MaxGap > 0 && tt.placed(i) && tt.placed(i-1) &&
				tt.start(i)-tt.end(i-1) > s.opts.MaxGap
			ok = true
		}
		_, in := s.trusted[words[i].flat]
		_, prevIn := s.trusted[words[i-1].flat]
		if in != prevIn && !b.forced {
			if t, found := s.anchorTime(words, i, in); found {
				b = boundary{idx: i, at: t, anchor: true}
				ok = true
			}
		}
		if ok {
			out = append(out, b)
		}
	}
	return out
}

// anchorTime places a boundary at the edge of a run of trusted anchors:
// the reference start of the first anchored word, or the reference end of
// the last one. Candidate times stand in when the reference is untimed.
func (s *synth) anchorTime(words []word, i int, runStarts bool) (float64, bool) {
	w := words[i]
	if !runStarts {
		w = words[i-1]
	}
	if a, ok := s.trusted[w.flat]; ok && a.RefIndex >= 0 && a.RefIndex < len(s.ref) {
		if rs, re, ok := s.ref[a.RefIndex].Span(); ok {
			if runStarts {
				return rs, true
			}
			return re, true
		}
	}
	ws, we, ok := w.Span()
	if !ok {
		return 0, false
	}
	if runStarts {
		return ws, true
	}
	return we, true
}

func (s *synth) emit(si int, turn types.Turn, words []word, start, end float64, bounded bool) {
	u := types.Utterance{
		ID:        fmt.Sprintf("%s-seg_%04d", speakerID(turn.Speaker), len(s.out)+1),
		Speaker:   turn.Speaker,
		Section:   si,
		Start:     start,
		End:       end,
		HasBounds: bounded && end >= start,
		From:      words[0].flat,
		To:        words[len(words)-1].flat + 1,
	}
	text := make([]string, 0, len(words))
	lastSeg := -1
	for _, w := range words {
		if t := strings.TrimSpace(w.Surface()); t != "" {
			text = append(text, t)
		}
		u.Tokens = append(u.Tokens, textnorm.Word(w.Text))
		if _, ok := s.trusted[w.flat]; ok {
			u.Anchors = append(u.Anchors, w.flat)
		}
		if w.seg != lastSeg {
			u.SourceSegments = append(u.SourceSegments, turn.Segments[w.seg].ID)
			lastSeg = w.seg
		}
	}
	u.Text = strings.Join(text, " ")
	if s.opts.MaxDuration > 0 && u.Duration() > s.opts.MaxDuration {
		s.oversize = append(s.oversize, u.ID)
	}
	s.out = append(s.out, u)
}

// speakerID makes a speaker label usable as an utterance id prefix.
func speakerID(speaker string) string {
	id := strings.Join(strings.Fields(speaker), "_")
	if id == "" {
		return "spk"
	}
	return id
}
