package usecase

import (
	"github.com/forPelevin/realign/internal/types"
)

// Assemble rebuilds the candidate section layout around the merged
// utterances. Each utterance becomes one segment and consecutive segments
// of the same speaker share a turn. Non-speech sections pass through.
func Assemble(cand types.Transcript, res types.AlignmentResult) types.Transcript {
	out := types.Transcript{Speakers: make(map[string]types.Speaker, len(cand.Speakers))}
	for k, v := range cand.Speakers {
		out.Speakers[k] = v
	}

	bySection := make(map[int][]types.AlignedUtterance)
	for _, au := range res.Utterances {
		bySection[au.Section] = append(bySection[au.Section], au)
	}

	for si, sec := range cand.Sections {
		ns := types.Section{Type: sec.Type, Start: sec.Start, End: sec.End}
		if !sec.IsSpeech() {
			out.Sections = append(out.Sections, ns)
			continue
		}
		for _, au := range bySection[si] {
			seg := segmentOf(au)
			if n := len(ns.Turns); n > 0 && ns.Turns[n-1].Speaker == au.Speaker {
				t := &ns.Turns[n-1]
				t.Segments = append(t.Segments, seg)
				t.Start = min(t.Start, seg.Start)
				t.End = max(t.End, seg.End)
				continue
			}
			ns.Turns = append(ns.Turns, types.Turn{
				Speaker:  au.Speaker,
				Start:    seg.Start,
				End:      seg.End,
				Segments: []types.Segment{seg},
			})
		}
		if len(ns.Turns) > 0 {
			ns.Start = min(ns.Start, ns.Turns[0].Start)
			ns.End = max(ns.End, ns.Turns[len(ns.Turns)-1].End)
		}
		for _, t := range ns.Turns {
			if _, ok := out.Speakers[t.Speaker]; !ok {
				out.Speakers[t.Speaker] = types.Speaker{}
			}
		}
		out.Sections = append(out.Sections, ns)
	}
	return out
}

// segmentOf spans the timed words of au, or the utterance bounds when no
// word is timed.
func segmentOf(au types.AlignedUtterance) types.Segment {
	seg := types.Segment{ID: au.ID, Speaker: au.Speaker, Start: au.Start, End: au.End, Words: au.Words}
	first := true
	for _, w := range au.Words {
		s, e, ok := w.Span()
		if !ok {
			continue
		}
		if first {
			seg.Start, seg.End = s, e
			first = false
			continue
		}
		seg.Start = min(seg.Start, s)
		seg.End = max(seg.End, e)
	}
	return seg
}
