package merge

import (
	"context"
	"reflect"
	"testing"

	"github.com/forPelevin/realign/internal/types"
)

func flat(words ...string) []types.FlatWord {
	out := make([]types.FlatWord, len(words))
	for i, w := range words {
		out[i] = types.FlatWord{Word: types.Word{Text: w}}
	}
	return out
}

func timedFlat(words []string, spans [][2]float64) []types.FlatWord {
	out := flat(words...)
	for i, sp := range spans {
		out[i].Start, out[i].End = types.Sec(sp[0]), types.Sec(sp[1])
	}
	return out
}

func utt(id string, from, to int, start, end float64, toks ...string) types.Utterance {
	return types.Utterance{ID: id, From: from, To: to, Start: start, End: end, HasBounds: end > start, Tokens: toks}
}

func conf(w types.Word) float64 {
	if w.Confidence == nil {
		return -1
	}
	return *w.Confidence
}

func TestMerge_ConfidenceTable(t *testing.T) {
	cand := flat("tere", "tulemast", "saatesse", "täna")
	ref := timedFlat([]string{"tere", "tulemast", "saatesse", "täna"}, [][2]float64{{0, 0.4}, {0.5, 1.0}, {1.1, 1.6}, {1.7, 2.0}})
	in := Input{
		Candidate:  cand,
		Reference:  ref,
		Utterances: []types.Utterance{utt("S1-seg_0001", 0, 4, 0, 2.5, "tere", "tulemast", "saatesse", "täna")},
		Timings: map[string][]types.Timing{"S1-seg_0001": {
			{Word: "tere", Start: 0.05, End: 0.4},
			{Word: "tulemast", Start: 0.5, End: 9.0}, // beyond utterance bounds
			{Word: "saatesse", Start: 1.1, End: 1.5},
			{Word: "täna", Start: 1.6, End: 1.4}, // inverted
		}},
		Trusted: map[int]types.Anchor{
			0: {CandIndex: 0, RefIndex: 0, Confidence: 1},
			1: {CandIndex: 1, RefIndex: 1, Confidence: 0.9},
		},
	}
	res, err := Merge(context.Background(), in, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	words := res.Utterances[0].Words

	tests := []struct {
		name   string
		source string
		conf   float64
		start  float64
	}{
		{"anchored sane", types.SourceAnchor, 1, 0.05},
		{"anchored insane", types.SourceReference, 0.45, 0.5},
		{"unanchored sane", types.SourceAligned, 0.6, 1.1},
		{"unanchored insane", types.SourceAligned, 0.3, 1.5},
	}
	for i, tt := range tests {
		w := words[i]
		if w.Source != tt.source || conf(w) != tt.conf || *w.Start != tt.start {
			t.Fatalf("%s: got source=%s conf=%v start=%v", tt.name, w.Source, conf(w), *w.Start)
		}
	}
	if *words[1].End != 1.0 {
		t.Fatalf("expected reference end for insane anchored word, got %v", *words[1].End)
	}
	if res.Stats.AnchoredWords != 1 || res.Stats.ReferenceWords != 1 || res.Stats.AlignedWords != 2 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
	if res.Stats.LowConfidence != 2 {
		t.Fatalf("expected 2 low-confidence words, got %d", res.Stats.LowConfidence)
	}
	if cand[0].Start != nil {
		t.Fatalf("merge must not touch the candidate")
	}
}

func TestMerge_AlignerNoDataFallsBackToBounds(t *testing.T) {
	in := Input{
		Candidate: flat("üks", "kaks", "kolm"),
		Utterances: []types.Utterance{
			utt("S1-seg_0001", 0, 2, 3, 5, "üks", "kaks"),
			utt("S1-seg_0002", 2, 3, 5, 6, "kolm"),
		},
		Timings: map[string][]types.Timing{"S1-seg_0002": {{Word: "kolm", Start: 5.1, End: 5.6}}},
	}
	res, err := Merge(context.Background(), in, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	failed := res.Utterances[0]
	if !failed.Failed {
		t.Fatalf("expected first utterance marked failed")
	}
	for _, w := range failed.Words {
		if conf(w) != 0 || *w.Start != 3 || *w.End != 5 || w.Source != types.SourceFallback {
			t.Fatalf("unexpected fallback word: %+v", w)
		}
	}
	if ok := res.Utterances[1]; ok.Failed || *ok.Words[0].Start != 5.1 {
		t.Fatalf("second utterance should align normally: %+v", ok)
	}
	if res.Stats.FailedUtterances != 1 || len(res.Warnings) != 1 {
		t.Fatalf("expected one failure warning, got %+v %v", res.Stats, res.Warnings)
	}
}

func TestMerge_FallbackKeepsPriorTimingOrNull(t *testing.T) {
	cand := timedFlat([]string{"a", "b"}, [][2]float64{{1, 2}})
	in := Input{
		Candidate:  cand,
		Utterances: []types.Utterance{{ID: "u", From: 0, To: 2, Tokens: []string{"a", "b"}}},
		Timings:    map[string][]types.Timing{"u": {{Word: "a", Start: 1, End: 2}}},
	}
	res, err := Merge(context.Background(), in, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	words := res.Utterances[0].Words
	if words[0].Source != types.SourceFallback || *words[0].Start != 1 {
		t.Fatalf("expected prior timing kept: %+v", words[0])
	}
	if words[1].Source != types.SourceUnaligned || words[1].Start != nil || conf(words[1]) != 0 {
		t.Fatalf("expected null timing: %+v", words[1])
	}
}

func TestMerge_RepairsMonotonicity(t *testing.T) {
	in := Input{
		Candidate:  flat("a", "b", "c"),
		Utterances: []types.Utterance{utt("u", 0, 3, 0, 4, "a", "b", "c")},
		Timings: map[string][]types.Timing{"u": {
			{Start: 1.0, End: 2.0},
			{Start: 1.8, End: 1.9},
			{Start: 2.0, End: 2.5},
		}},
	}
	res, err := Merge(context.Background(), in, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	words := res.Utterances[0].Words
	prev := 0.0
	for i, w := range words {
		if *w.End < prev || *w.Start > *w.End {
			t.Fatalf("word %d breaks ordering: %v-%v", i, *w.Start, *w.End)
		}
		prev = *w.End
	}
	if res.Stats.Repairs != 1 || *words[1].End != 2.0 {
		t.Fatalf("expected one repair clamping to 2.0, got %d %v", res.Stats.Repairs, *words[1].End)
	}
}

func TestMerge_PunctuationOnlyTokens(t *testing.T) {
	in := Input{
		Candidate:  flat("jah", "–", "ei"),
		Utterances: []types.Utterance{utt("u", 0, 3, 0, 2, "jah", "", "ei")},
		Timings:    map[string][]types.Timing{"u": {{Start: 0.1, End: 0.5}, {Start: 0.8, End: 1.2}}},
	}
	res, err := Merge(context.Background(), in, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	dash := res.Utterances[0].Words[1]
	if *dash.Start != 0.5 || *dash.End != 0.5 || dash.Source != types.SourceFallback {
		t.Fatalf("unexpected punctuation word: %+v", dash)
	}
	if *res.Utterances[0].Words[2].Start != 0.8 {
		t.Fatalf("tokens after punctuation shifted")
	}
}

func TestMerge_Deterministic(t *testing.T) {
	in := Input{
		Candidate:  flat("a", "b"),
		Reference:  timedFlat([]string{"a", "b"}, [][2]float64{{0, 1}, {1, 2}}),
		Utterances: []types.Utterance{utt("u", 0, 2, 0, 2, "a", "b"), utt("v", 2, 2, 2, 3)},
		Timings:    map[string][]types.Timing{"u": {{Start: 0, End: 1}, {Start: 5, End: 6}}},
		Trusted:    map[int]types.Anchor{1: {CandIndex: 1, RefIndex: 1, Confidence: 1}},
	}
	first, err := Merge(context.Background(), in, Options{Tolerance: 0.5, Workers: 1})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	second, err := Merge(context.Background(), in, Options{Tolerance: 0.5, Workers: 8})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestMerge_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := Input{Candidate: flat("a"), Utterances: []types.Utterance{utt("u", 0, 1, 0, 1, "a")}}
	if _, err := Merge(ctx, in, DefaultOptions()); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestMerge_IdempotentOnOwnOutput(t *testing.T) {
	cand := flat("tere", "tulemast", "saatesse", "täna")
	u := utt("S1-seg_0001", 0, 4, 0, 2.5, "tere", "tulemast", "saatesse", "täna")
	timings := map[string][]types.Timing{"S1-seg_0001": {
		{Start: 0.05, End: 0.4},
		{Start: 0.5, End: 9.0},
		{Start: 1.1, End: 1.5},
		{Start: 1.6, End: 1.4},
	}}
	first, err := Merge(context.Background(), Input{
		Candidate:  cand,
		Reference:  timedFlat([]string{"tere", "tulemast", "saatesse", "täna"}, [][2]float64{{0, 0.4}, {0.5, 1.0}, {1.1, 1.6}, {1.7, 2.0}}),
		Utterances: []types.Utterance{u},
		Timings:    timings,
		Trusted:    map[int]types.Anchor{1: {CandIndex: 1, RefIndex: 1, Confidence: 1}},
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	// Feed the merged words back in as the reference; every word now
	// anchors exactly onto itself.
	merged := first.Utterances[0].Words
	ref := make([]types.FlatWord, len(merged))
	trusted := map[int]types.Anchor{}
	for i, w := range merged {
		ref[i] = types.FlatWord{Word: w}
		trusted[i] = types.Anchor{CandIndex: i, RefIndex: i, Confidence: 1, Exact: true}
	}
	second, err := Merge(context.Background(), Input{
		Candidate:  cand,
		Reference:  ref,
		Utterances: []types.Utterance{u},
		Timings:    timings,
		Trusted:    trusted,
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	for i, w := range second.Utterances[0].Words {
		if *w.Start != *merged[i].Start || *w.End != *merged[i].End {
			t.Fatalf("word %d moved: %v-%v, was %v-%v", i, *w.Start, *w.End, *merged[i].Start, *merged[i].End)
		}
	}
}
