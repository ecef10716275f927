// Package merge reconciles forced-aligner word timings with the anchor map
// and the reference transcript into confidence-scored words.
package merge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/realign/internal/types"
)

const (
	DefaultTolerance = 0.5
	DefaultWorkers   = 4

	alignedConfidence   = 0.6
	suspectConfidence   = 0.3
	referenceFactor     = 0.5
	fallbackConfidence  = 0.0
	lowConfidenceCutoff = 0.5
)

type Options struct {
	// Tolerance in seconds for the sanity checks on aligner times.
	Tolerance float64
	Workers   int
}

func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance, Workers: DefaultWorkers}
}

// Input is read-only for the duration of Merge.
type Input struct {
	Candidate  []types.FlatWord
	Reference  []types.FlatWord
	Utterances []types.Utterance
	// Timings holds aligner output keyed by utterance id. A missing or
	// short entry marks the utterance as failed.
	Timings map[string][]types.Timing
	Trusted map[int]types.Anchor
}

// Merge scores every utterance in parallel. Results keep utterance order.
// The only error is context cancellation.
func Merge(ctx context.Context, in Input, opts Options) (types.AlignmentResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	out := make([]types.AlignedUtterance, len(in.Utterances))
	warns := make([][]string, len(in.Utterances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, u := range in.Utterances {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], warns[i] = mergeUtterance(u, in, opts.Tolerance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.AlignmentResult{}, fmt.Errorf("merge: %w", err)
	}

	res := types.AlignmentResult{Utterances: out}
	for i, au := range out {
		res.Warnings = append(res.Warnings, warns[i]...)
		addStats(&res.Stats, au)
	}
	return res, nil
}

func mergeUtterance(u types.Utterance, in Input, tol float64) (types.AlignedUtterance, []string) {
	au := types.AlignedUtterance{Utterance: u, Words: make([]types.Word, 0, u.To-u.From)}
	for _, fw := range in.Candidate[u.From:u.To] {
		au.Words = append(au.Words, fw.Word)
	}

	expected := 0
	for _, t := range u.Tokens {
		if t != "" {
			expected++
		}
	}
	timings, ok := in.Timings[u.ID]
	switch {
	case expected == 0:
		// nothing was sent to the aligner
	case !ok:
		fallback(&au)
		return au, []string{fmt.Sprintf("utterance %s: aligner returned no timing, kept prior timing", u.ID)}
	case len(timings) != expected:
		fallback(&au)
		return au, []string{fmt.Sprintf("utterance %s: aligner returned %d of %d words, kept prior timing", u.ID, len(timings), expected)}
	}

	next := 0
	prevEnd, havePrev := u.Start, false
	for i := range au.Words {
		w := &au.Words[i]
		if u.Tokens[i] == "" {
			// Punctuation-only token: pin it to the previous word end.
			w.Start, w.End = types.Sec(prevEnd), types.Sec(prevEnd)
			w.Confidence = types.Sec(fallbackConfidence)
			w.Source = types.SourceFallback
			continue
		}
		t := timings[next]
		next++
		sane := t.Start <= t.End &&
			(!u.HasBounds || (t.Start >= u.Start-tol && t.End <= u.End+tol)) &&
			(!havePrev || t.Start >= prevEnd-tol)
		score(w, t, sane, u.From+i, in)
		prevEnd, havePrev = *w.End, true
	}
	au.Repairs = repair(au.Words)

	var warns []string
	if au.Repairs > 0 {
		warns = append(warns, fmt.Sprintf("utterance %s: clamped %d non-monotonic word ends", u.ID, au.Repairs))
	}
	return au, warns
}

func score(w *types.Word, t types.Timing, sane bool, flat int, in Input) {
	w.Start, w.End = types.Sec(t.Start), types.Sec(t.End)
	a, anchored := in.Trusted[flat]
	switch {
	case anchored && sane:
		w.Confidence = types.Sec(a.Confidence)
		w.Source = types.SourceAnchor
	case anchored:
		w.Confidence = types.Sec(referenceFactor * a.Confidence)
		w.Source = types.SourceAligned
		if a.RefIndex >= 0 && a.RefIndex < len(in.Reference) {
			if rs, re, ok := in.Reference[a.RefIndex].Span(); ok {
				w.Start, w.End = types.Sec(rs), types.Sec(re)
				w.Source = types.SourceReference
			}
		}
	case sane:
		w.Confidence = types.Sec(alignedConfidence)
		w.Source = types.SourceAligned
	default:
		w.Confidence = types.Sec(suspectConfidence)
		w.Source = types.SourceAligned
	}
}

// fallback keeps each word's prior timing, else the utterance bounds,
// else null times. Confidence is zero either way.
func fallback(au *types.AlignedUtterance) {
	au.Failed = true
	for i := range au.Words {
		w := &au.Words[i]
		w.Confidence = types.Sec(fallbackConfidence)
		switch {
		case w.Timed():
			w.Source = types.SourceFallback
		case au.HasBounds:
			w.Start, w.End = types.Sec(au.Start), types.Sec(au.End)
			w.Source = types.SourceFallback
		default:
			w.Start, w.End = nil, nil
			w.Source = types.SourceUnaligned
		}
	}
	au.Repairs = repair(au.Words)
}

// repair clamps word ends that run backwards to the previous word end and
// keeps every start at or before its end. It returns the number of
// clamped ends.
func repair(words []types.Word) int {
	n := 0
	havePrev, prevEnd := false, 0.0
	for i := range words {
		w := &words[i]
		if !w.Timed() {
			continue
		}
		if havePrev && *w.End < prevEnd {
			w.End = types.Sec(prevEnd)
			n++
		}
		if *w.Start > *w.End {
			w.Start = types.Sec(*w.End)
		}
		havePrev, prevEnd = true, *w.End
	}
	return n
}

func addStats(s *types.MergeStats, au types.AlignedUtterance) {
	if au.Failed {
		s.FailedUtterances++
	}
	s.Repairs += au.Repairs
	for _, w := range au.Words {
		switch w.Source {
		case types.SourceAnchor:
			s.AnchoredWords++
		case types.SourceReference:
			s.ReferenceWords++
		case types.SourceAligned:
			s.AlignedWords++
		case types.SourceFallback:
			s.FallbackWords++
		case types.SourceUnaligned:
			s.UnalignedWords++
		}
		if w.Confidence != nil && *w.Confidence <= lowConfidenceCutoff {
			s.LowConfidence++
		}
	}
}
