// Package metrics records per-run Prometheus metrics. A run is a batch job,
// so metrics live on a private registry and are exported to a textfile
// for the node exporter instead of being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forPelevin/realign/internal/types"
)

const namespace = "realign"

type Metrics struct {
	reg *prometheus.Registry

	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Anchoring
	Anchors  *prometheus.CounterVec
	EditOps  *prometheus.CounterVec
	Segments *prometheus.CounterVec

	// Aligner
	AlignerAttempts *prometheus.CounterVec
	AlignerLatency  prometheus.Histogram
	OOVWords        prometheus.Counter

	// Merge
	MergedWords       *prometheus.CounterVec
	Repairs           prometheus.Counter
	FailedUtterances  prometheus.Counter
	LowConfidenceWord prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		Anchors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_total",
			Help:      "Anchors found, by trust",
		}, []string{"trust"}),
		EditOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edit_operations_total",
			Help:      "Edit operations between candidate and reference",
		}, []string{"kind"}),
		Segments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Synthesized utterances, by segmentation mode",
		}, []string{"mode"}),
		AlignerAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aligner_attempts_total",
			Help:      "Aligner invocations by result",
		}, []string{"result"}),
		AlignerLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aligner_duration_seconds",
			Help:      "Aligner invocation latency",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		OOVWords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oov_words_total",
			Help:      "Words sent to grapheme-to-phoneme conversion",
		}),
		MergedWords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_words_total",
			Help:      "Merged words by timing source",
		}, []string{"source"}),
		Repairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monotonicity_repairs_total",
			Help:      "Word ends clamped to restore ordering",
		}),
		FailedUtterances: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_utterances_total",
			Help:      "Utterances the aligner returned no usable timing for",
		}),
		LowConfidenceWord: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_confidence_words_total",
			Help:      "Merged words flagged as low confidence",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) RecordRun(success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) RecordAnchoring(total, trusted int, edits types.EditReport) {
	m.Anchors.WithLabelValues("trusted").Add(float64(trusted))
	m.Anchors.WithLabelValues("untrusted").Add(float64(total - trusted))
	m.EditOps.WithLabelValues(string(types.EditMatch)).Add(float64(edits.Matches))
	m.EditOps.WithLabelValues(string(types.EditSubstitution)).Add(float64(edits.Substitutions))
	m.EditOps.WithLabelValues(string(types.EditInsertion)).Add(float64(edits.Insertions))
	m.EditOps.WithLabelValues(string(types.EditDeletion)).Add(float64(edits.Deletions))
}

func (m *Metrics) RecordSegmentation(anchored bool, n int) {
	mode := "original"
	if anchored {
		mode = "anchored"
	}
	m.Segments.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) RecordAlignerAttempt(result string, seconds float64) {
	m.AlignerAttempts.WithLabelValues(result).Inc()
	m.AlignerLatency.Observe(seconds)
}

func (m *Metrics) RecordMerge(s types.MergeStats) {
	m.MergedWords.WithLabelValues(types.SourceAnchor).Add(float64(s.AnchoredWords))
	m.MergedWords.WithLabelValues(types.SourceReference).Add(float64(s.ReferenceWords))
	m.MergedWords.WithLabelValues(types.SourceAligned).Add(float64(s.AlignedWords))
	m.MergedWords.WithLabelValues(types.SourceFallback).Add(float64(s.FallbackWords))
	m.MergedWords.WithLabelValues(types.SourceUnaligned).Add(float64(s.UnalignedWords))
	m.Repairs.Add(float64(s.Repairs))
	m.FailedUtterances.Add(float64(s.FailedUtterances))
	m.LowConfidenceWord.Add(float64(s.LowConfidence))
}

// WriteFile exports the registry in the text exposition format. The
// write is atomic so a collector never reads a partial file.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
