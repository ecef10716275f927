package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/realign/internal/domain/anchor"
	"github.com/forPelevin/realign/internal/domain/format"
	"github.com/forPelevin/realign/internal/domain/lexicon"
	"github.com/forPelevin/realign/internal/domain/merge"
	"github.com/forPelevin/realign/internal/domain/segmenter"
	"github.com/forPelevin/realign/internal/metrics"
	"github.com/forPelevin/realign/internal/ports"
	"github.com/forPelevin/realign/internal/types"
)

// recommendedAnchorRatio is the share of candidate words that must carry a
// trusted anchor before anchoring is recommended.
const recommendedAnchorRatio = 0.3

type Deps struct {
	Aligner ports.Aligner
	// G2P and Audio are optional. Without G2P, OOV words reach the aligner
	// without pronunciations.
	G2P     ports.G2P
	Audio   ports.AudioTool
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return Usecase{d: d}
}

type Input struct {
	Candidate types.Transcript
	// Reference is nil when no reference transcript was given.
	Reference *types.Transcript
	Audio     string
	// Transcode converts Audio to 16 kHz mono WAV in WorkDir first.
	Transcode bool
	Lexicon   *lexicon.Lexicon
	WorkDir   string

	Anchor    anchor.Options
	Segmenter segmenter.Options
	Merge     merge.Options

	AlignTimeout time.Duration
	Retries      int

	Formats []format.Format
	FileID  string
}

// Output is one rendered artifact.
type Output struct {
	Name string
	Data []byte
}

type Result struct {
	Transcript types.Transcript
	Alignment  types.AlignmentResult
	Report     types.Report
	Outputs    []Output
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log
	cand := in.Candidate.Flatten()

	var ref []types.FlatWord
	if in.Reference != nil {
		ref = in.Reference.Flatten()
	}
	report := types.Report{
		CandidateWords:      len(cand),
		ReferenceWords:      len(ref),
		ConfidenceThreshold: in.Anchor.ConfidenceThreshold,
	}

	if len(cand) == 0 {
		log.Warn().Msg("candidate transcript has no words, writing empty output")
		tr := u.emptyTranscript(ctx, in)
		report.Warnings = append(report.Warnings, "candidate transcript has no words")
		return u.finish(Result{Transcript: tr, Report: report}, in)
	}

	// anchors
	var trusted map[int]types.Anchor
	if ref != nil {
		res := anchor.Align(texts(cand), texts(ref), in.Anchor)
		trusted = res.TrustedByCandidate()
		report.AnchorCount = len(res.Anchors)
		report.HighConfidenceCount = len(trusted)
		report.AnchorRatio = float64(len(trusted)) / float64(len(cand))
		report.RecommendedForAnchoring = report.AnchorRatio > recommendedAnchorRatio
		report.Edits = res.Report
		u.d.Metrics.RecordAnchoring(len(res.Anchors), len(trusted), res.Report)
		log.Info().
			Int("anchors", len(res.Anchors)).
			Int("trusted", len(trusted)).
			Int("edit_distance", res.Report.Distance).
			Msg("anchored candidate against reference")
	}

	seg := segmenter.Synthesize(in.Candidate, trusted, ref, in.Segmenter)
	report.AnchoringUsed = seg.Anchored
	report.Utterances = len(seg.Utterances)
	u.d.Metrics.RecordSegmentation(seg.Anchored, len(seg.Utterances))
	for _, id := range seg.Oversize {
		msg := fmt.Sprintf("utterance %s: longer than %.0fs with no boundary to cut at", id, in.Segmenter.MaxDuration)
		log.Warn().Str("utterance", id).Msg("oversize utterance")
		report.Warnings = append(report.Warnings, msg)
	}
	log.Info().Int("utterances", len(seg.Utterances)).Bool("anchored", seg.Anchored).Msg("segments synthesized")

	timings, warns, err := u.align(ctx, in, seg.Utterances)
	if err != nil {
		return Result{}, err
	}
	report.Warnings = append(report.Warnings, warns...)

	mergeIn := merge.Input{
		Candidate:  cand,
		Reference:  ref,
		Utterances: seg.Utterances,
		Timings:    timings,
	}
	if seg.Anchored {
		mergeIn.Trusted = trusted
	}
	aligned, err := merge.Merge(ctx, mergeIn, in.Merge)
	if err != nil {
		return Result{}, err
	}
	for _, w := range aligned.Warnings {
		log.Warn().Msg(w)
	}
	report.Merge = aligned.Stats
	report.Warnings = append(report.Warnings, aligned.Warnings...)
	u.d.Metrics.RecordMerge(aligned.Stats)

	return u.finish(Result{
		Transcript: Assemble(in.Candidate, aligned),
		Alignment:  aligned,
		Report:     report,
	}, in)
}

// align prepares the lexicon and data directory and runs the aligner.
// Utterances without alignable tokens or time bounds never reach it.
func (u Usecase) align(ctx context.Context, in Input, utts []types.Utterance) (map[string][]types.Timing, []string, error) {
	log := u.d.Log
	var warns []string

	var tokens []string
	for _, ut := range utts {
		toks := lexicon.AlignTokens(ut)
		if len(toks) > 0 && !ut.HasBounds {
			log.Warn().Str("utterance", ut.ID).Msg("utterance has no time bounds, not aligned")
			warns = append(warns, fmt.Sprintf("utterance %s: no time bounds, not aligned", ut.ID))
			continue
		}
		tokens = append(tokens, toks...)
	}
	if len(tokens) == 0 {
		warns = append(warns, "no utterance has alignable text, aligner skipped")
		return nil, warns, nil
	}

	audio := in.Audio
	if in.Transcode && u.d.Audio != nil {
		wav := filepath.Join(in.WorkDir, "audio.wav")
		if err := u.d.Audio.ExtractAudioMono16k(ctx, in.Audio, wav); err != nil {
			return nil, nil, err
		}
		audio = wav
	}

	lex := in.Lexicon
	if lex == nil {
		lex = lexicon.New()
	}
	if oov := lex.OOV(tokens); len(oov) > 0 {
		u.d.Metrics.OOVWords.Add(float64(len(oov)))
		switch {
		case u.d.G2P == nil:
			warns = append(warns, fmt.Sprintf("%d words missing from the lexicon and no g2p configured", len(oov)))
		default:
			prons, err := u.d.G2P.Pronounce(ctx, oov)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, err
				}
				log.Warn().Err(err).Int("words", len(oov)).Msg("g2p failed")
				warns = append(warns, fmt.Sprintf("g2p failed for %d words: %v", len(oov), err))
			} else {
				lex = lex.With(prons)
				log.Info().Int("oov", len(oov)).Int("pronounced", len(prons)).Msg("lexicon augmented")
			}
		}
	}

	dd, err := lexicon.WriteDataDir(filepath.Join(in.WorkDir, "data"), audio, utts, lex)
	if err != nil {
		return nil, nil, err
	}
	job := ports.AlignJob{
		DataDir:    dd.Dir,
		Lexicon:    dd.Lexicon,
		Audio:      audio,
		OutDir:     filepath.Join(in.WorkDir, "align"),
		Utterances: included(utts, dd.Included),
	}
	timings, err := u.invoke(ctx, job, in.AlignTimeout, in.Retries)
	if err != nil {
		return nil, nil, err
	}
	return timings, warns, nil
}

// invoke runs the aligner under a per-call timeout, retrying transient
// failures and timeouts up to retries times.
func (u Usecase) invoke(ctx context.Context, job ports.AlignJob, timeout time.Duration, retries int) (map[string][]types.Timing, error) {
	log := u.d.Log
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}
		started := time.Now()
		timings, err := u.d.Aligner.Align(actx, job)
		cancel()
		elapsed := time.Since(started).Seconds()

		if err == nil {
			u.d.Metrics.RecordAlignerAttempt("ok", elapsed)
			log.Info().Int("attempt", attempt+1).Float64("seconds", elapsed).Msg("aligner finished")
			return timings, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			u.d.Metrics.RecordAlignerAttempt("canceled", elapsed)
			return nil, fmt.Errorf("align: %w", err)
		}
		retryable := errors.Is(err, ports.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
		if !retryable {
			u.d.Metrics.RecordAlignerAttempt("error", elapsed)
			return nil, fmt.Errorf("align: %w", err)
		}
		u.d.Metrics.RecordAlignerAttempt("transient", elapsed)
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("aligner failed")
	}
	return nil, fmt.Errorf("align: gave up after %d attempts: %w", retries+1, lastErr)
}

// finish renders the selected formats.
func (u Usecase) finish(res Result, in Input) (Result, error) {
	formats := in.Formats
	if len(formats) == 0 {
		formats = format.All
	}
	for _, f := range formats {
		b, err := format.Render(f, res.Transcript, format.Options{FileID: in.FileID})
		if err != nil {
			return Result{}, err
		}
		res.Outputs = append(res.Outputs, Output{Name: f.Filename(), Data: b})
	}
	return res, nil
}

// emptyTranscript keeps the candidate speakers and covers the audio, when
// its length is known, with one non-speech section.
func (u Usecase) emptyTranscript(ctx context.Context, in Input) types.Transcript {
	tr := types.Transcript{Speakers: map[string]types.Speaker{}, Sections: []types.Section{}}
	for k, v := range in.Candidate.Speakers {
		tr.Speakers[k] = v
	}
	if u.d.Audio == nil || in.Audio == "" {
		return tr
	}
	d, err := u.d.Audio.ProbeDuration(ctx, in.Audio)
	if err != nil {
		u.d.Log.Warn().Err(err).Msg("probe audio duration")
		return tr
	}
	tr.Sections = append(tr.Sections, types.Section{Type: "non-speech", Start: 0, End: d.Seconds()})
	return tr
}

func texts(ws []types.FlatWord) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text
	}
	return out
}

func included(utts []types.Utterance, ids []string) []types.Utterance {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := make([]types.Utterance, 0, len(ids))
	for _, u := range utts {
		if keep[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
