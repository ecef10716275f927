package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/forPelevin/realign/internal/types"
)

func TestRecordAnchoring(t *testing.T) {
	m := New()
	m.RecordAnchoring(5, 3, types.EditReport{Matches: 5, Substitutions: 1})
	if got := testutil.ToFloat64(m.Anchors.WithLabelValues("untrusted")); got != 2 {
		t.Fatalf("untrusted anchors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EditOps.WithLabelValues("substitution")); got != 1 {
		t.Fatalf("substitutions = %v, want 1", got)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Repairs.Add(3)
	if testutil.ToFloat64(b.Repairs) != 0 {
		t.Fatalf("metrics leaked between registries")
	}
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.RecordRun(true, 12)
	m.RecordMerge(types.MergeStats{AnchoredWords: 4, Repairs: 1})
	m.RecordAlignerAttempt("ok", 3)

	path := filepath.Join(t.TempDir(), "realign.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`realign_runs_total{outcome="success"} 1`,
		`realign_merged_words_total{source="anchor"} 4`,
		`realign_monotonicity_repairs_total 1`,
	} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("metrics file missing %q:\n%s", want, b)
		}
	}
}
