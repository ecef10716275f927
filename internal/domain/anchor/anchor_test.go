package anchor

import (
	"strings"
	"testing"

	"github.com/forPelevin/realign/internal/types"
)

func TestAlign_IdenticalSequences(t *testing.T) {
	words := []string{"tere", "maailm"}
	res := Align(words, words, DefaultOptions())
	if len(res.Anchors) != 2 {
		t.Fatalf("expected 2 anchors, got %d", len(res.Anchors))
	}
	for _, a := range res.Anchors {
		if !a.Exact || a.Confidence != 1.0 {
			t.Fatalf("expected exact anchor with confidence 1, got %+v", a)
		}
	}
	rep := res.Report
	if rep.Substitutions != 0 || rep.Insertions != 0 || rep.Deletions != 0 || rep.Distance != 0 {
		t.Fatalf("expected no edits, got %+v", rep)
	}
	if rep.Matches != 2 {
		t.Fatalf("expected 2 matches, got %d", rep.Matches)
	}
	if len(res.Trusted()) != 2 {
		t.Fatalf("expected both anchors trusted")
	}
}

func TestAlign_Substitution(t *testing.T) {
	res := Align([]string{"tere", "ilm"}, []string{"tere", "maailm"}, DefaultOptions())
	if len(res.Anchors) != 1 || res.Anchors[0].Text != "tere" {
		t.Fatalf("expected single anchor on tere, got %+v", res.Anchors)
	}
	rep := res.Report
	if rep.Substitutions != 1 || rep.Insertions != 0 || rep.Deletions != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(rep.Spans))
	}
	sp := rep.Spans[0]
	if sp.Kind != types.EditSubstitution || sp.CandWords[0] != "ilm" || sp.RefWords[0] != "maailm" {
		t.Fatalf("unexpected span: %+v", sp)
	}
	if sp.CandStart != 1 || sp.CandEnd != 2 || sp.RefStart != 1 || sp.RefEnd != 2 {
		t.Fatalf("unexpected span ranges: %+v", sp)
	}
}

func TestAlign_EmptySequences(t *testing.T) {
	cand := []string{"üks", "kaks", "kolm"}

	res := Align(cand, nil, DefaultOptions())
	if len(res.Anchors) != 0 {
		t.Fatalf("expected no anchors, got %d", len(res.Anchors))
	}
	if res.Report.Insertions != 3 || res.Report.Distance != 3 {
		t.Fatalf("expected 3 insertions, got %+v", res.Report)
	}

	res = Align(nil, cand, DefaultOptions())
	if res.Report.Deletions != 3 || len(res.Anchors) != 0 {
		t.Fatalf("expected 3 deletions, got %+v", res.Report)
	}

	res = Align(nil, nil, DefaultOptions())
	if len(res.Ops) != 0 || res.Report.Distance != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestAlign_SwapKeepsCostAndSwapsLabels(t *testing.T) {
	a := strings.Fields("see on üks pikk lause mida me võrdleme")
	b := strings.Fields("see on pikk lause mida nad täna võrdlevad")

	ab := Align(a, b, DefaultOptions()).Report
	ba := Align(b, a, DefaultOptions()).Report
	if ab.Distance != ba.Distance {
		t.Fatalf("distance not symmetric: %d vs %d", ab.Distance, ba.Distance)
	}
	if ab.Insertions-ab.Deletions != ba.Deletions-ba.Insertions {
		t.Fatalf("insertion/deletion balance not swapped: %+v vs %+v", ab, ba)
	}
}

func TestAlign_AnchorCountBounded(t *testing.T) {
	tests := []struct {
		cand, ref string
	}{
		{"a b c d", "a b"},
		{"a", "a a a a"},
		{"x y z", "a b c"},
		{"tere tere tere", "tere"},
	}
	for _, tt := range tests {
		c, r := strings.Fields(tt.cand), strings.Fields(tt.ref)
		res := Align(c, r, Options{ConfidenceThreshold: 0.8, NearMatchThreshold: 0.5})
		if len(res.Anchors) > min(len(c), len(r)) {
			t.Fatalf("%q vs %q: %d anchors exceeds bound", tt.cand, tt.ref, len(res.Anchors))
		}
	}
}

func TestAlign_TieBreakIsDeterministic(t *testing.T) {
	res := Align([]string{"a", "b"}, []string{"b", "a"}, DefaultOptions())
	if res.Report.Substitutions != 2 || res.Report.Insertions != 0 || res.Report.Deletions != 0 {
		t.Fatalf("expected substitutions to win ties, got %+v", res.Report)
	}
	again := Align([]string{"a", "b"}, []string{"b", "a"}, DefaultOptions())
	for i := range res.Ops {
		if res.Ops[i] != again.Ops[i] {
			t.Fatalf("ops differ between runs at %d", i)
		}
	}
}

func TestAlign_NormalizedMatchHasLowerConfidence(t *testing.T) {
	res := Align([]string{"Tere,", "maailm"}, []string{"tere", "maailm"}, DefaultOptions())
	if len(res.Anchors) != 2 {
		t.Fatalf("expected 2 anchors, got %d", len(res.Anchors))
	}
	if res.Anchors[0].Confidence != 0.9 {
		t.Fatalf("expected 0.9 for normalized match, got %v", res.Anchors[0].Confidence)
	}
	if res.Report.Matches != 2 {
		t.Fatalf("expected normalized forms to match")
	}
}

func TestAlign_NearMatchAnchors(t *testing.T) {
	cand := []string{"tere", "maailma"}
	ref := []string{"tere", "maailm"}

	off := Align(cand, ref, DefaultOptions())
	if len(off.Anchors) != 1 {
		t.Fatalf("near matches disabled: expected 1 anchor, got %d", len(off.Anchors))
	}

	on := Align(cand, ref, Options{ConfidenceThreshold: 0.8, NearMatchThreshold: 0.85})
	if len(on.Anchors) != 2 {
		t.Fatalf("expected near-match anchor, got %+v", on.Anchors)
	}
	near := on.Anchors[1]
	if near.Exact || near.Confidence >= 1 || near.Confidence < 0.85 {
		t.Fatalf("unexpected near-match anchor: %+v", near)
	}
	if on.Report.Substitutions != 1 {
		t.Fatalf("near match must still count as substitution: %+v", on.Report)
	}
}

func TestResult_TrustedFiltersByThreshold(t *testing.T) {
	res := Align([]string{"Tere,", "maailm"}, []string{"tere", "maailm"}, Options{ConfidenceThreshold: 0.95})
	trusted := res.Trusted()
	if len(trusted) != 1 || trusted[0].Text != "maailm" {
		t.Fatalf("expected only the exact surface match to be trusted, got %+v", trusted)
	}
	if len(res.Anchors) != 2 {
		t.Fatalf("untrusted anchors must stay in the result")
	}
	byCand := res.TrustedByCandidate()
	if _, ok := byCand[1]; !ok {
		t.Fatalf("expected candidate 1 in trusted index")
	}
}

func TestAlign_DeletionSpan(t *testing.T) {
	res := Align([]string{"tere", "maailm"}, []string{"tere", "kallis", "ilus", "maailm"}, DefaultOptions())
	rep := res.Report
	if rep.Deletions != 2 || len(rep.Spans) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	sp := rep.Spans[0]
	if sp.Kind != types.EditDeletion || sp.CandStart != 1 || sp.CandEnd != 1 || sp.RefStart != 1 || sp.RefEnd != 3 {
		t.Fatalf("unexpected span: %+v", sp)
	}
}
