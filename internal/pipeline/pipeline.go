package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/realign/internal/config"
	"github.com/forPelevin/realign/internal/domain/format"
	"github.com/forPelevin/realign/internal/domain/lexicon"
	"github.com/forPelevin/realign/internal/domain/reference"
	"github.com/forPelevin/realign/internal/logging"
	"github.com/forPelevin/realign/internal/metrics"
	"github.com/forPelevin/realign/internal/ports"
	"github.com/forPelevin/realign/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/realign/internal/ports/adapters/g2p"
	"github.com/forPelevin/realign/internal/ports/adapters/kaldi"
	"github.com/forPelevin/realign/internal/types"
	"github.com/forPelevin/realign/internal/usecase"
)

const (
	reportFile   = "alignment_confidence.json"
	manifestFile = "manifest.json"
)

type Config struct {
	Candidate string
	// Reference is optional; without it the run aligns the candidate
	// segmentation as is.
	Reference       string
	ReferenceFormat reference.Format
	Audio           string

	Settings config.Config

	// Aligner overrides the command-line aligner built from Settings.
	Aligner ports.Aligner
}

func (c Config) Validate() error {
	var errs []error
	if c.Candidate == "" {
		errs = append(errs, errors.New("candidate transcript is empty"))
	} else if _, err := os.Stat(c.Candidate); err != nil {
		errs = append(errs, fmt.Errorf("stat candidate: %w", err))
	}
	if c.Reference != "" {
		if _, err := os.Stat(c.Reference); err != nil {
			errs = append(errs, fmt.Errorf("stat reference: %w", err))
		}
	}
	if c.Audio == "" {
		errs = append(errs, errors.New("audio is required"))
	} else if _, err := os.Stat(c.Audio); err != nil {
		errs = append(errs, fmt.Errorf("stat audio: %w", err))
	}
	if c.Aligner == nil && c.Settings.Aligner.Command.Command == "" {
		errs = append(errs, errors.New("aligner.command is required"))
	}
	if c.Settings.Lexicon.Path != "" {
		if _, err := os.Stat(c.Settings.Lexicon.Path); err != nil {
			errs = append(errs, fmt.Errorf("stat lexicon: %w", err))
		}
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Summary describes a finished run.
type Summary struct {
	OutDir string
	Files  []string
	Report types.Report
}

// Run loads the inputs, runs the alignment and writes every artifact into
// a fresh run directory. Nothing is written under the output directory
// unless all stages succeed.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	log := logging.WithRecording("pipeline", cfg.Candidate)
	m := metrics.New()
	started := time.Now()

	sum, err := run(ctx, cfg, m)
	m.RecordRun(err == nil, time.Since(started).Seconds())
	if path := cfg.Settings.Metrics.File; path != "" {
		if werr := m.WriteFile(path); werr != nil {
			log.Warn().Err(werr).Str("path", path).Msg("write metrics")
		}
	}
	return sum, err
}

func run(ctx context.Context, cfg Config, m *metrics.Metrics) (Summary, error) {
	log := logging.WithRecording("pipeline", cfg.Candidate)
	s := cfg.Settings

	// inputs
	cand, candFmt, err := reference.Load(cfg.Candidate, reference.FormatAuto)
	if err != nil {
		return Summary{}, fmt.Errorf("candidate: %w", err)
	}
	log.Info().Str("format", string(candFmt)).Int("words", cand.WordCount()).Msg("candidate loaded")

	var ref *types.Transcript
	if cfg.Reference != "" {
		tr, refFmt, err := reference.Load(cfg.Reference, cfg.ReferenceFormat)
		if err != nil {
			return Summary{}, fmt.Errorf("reference: %w", err)
		}
		ref = &tr
		log.Info().Str("format", string(refFmt)).Int("words", tr.WordCount()).Msg("reference loaded")
	}

	lex := lexicon.New()
	if s.Lexicon.Path != "" {
		if lex, err = lexicon.Load(s.Lexicon.Path); err != nil {
			return Summary{}, err
		}
		log.Info().Int("words", lex.Len()).Msg("lexicon loaded")
	}

	formats, err := format.Parse(s.Output.Formats)
	if err != nil {
		return Summary{}, err
	}

	// workspace
	jobID := hash(cfg.Candidate + "|" + cfg.Reference + "|" + cfg.Audio)
	baseCache := s.Output.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Summary{}, err
	}
	log.Debug().Str("cache", cacheDir).Msg("workspace ready")

	// adapters
	deps := usecase.Deps{
		Aligner: cfg.Aligner,
		Audio:   ffmpeg.New(s.Audio.FFmpeg, s.Audio.FFprobe),
		Metrics: m,
		Log:     logging.WithRecording("usecase", cfg.Candidate),
	}
	if deps.Aligner == nil {
		deps.Aligner = kaldi.New(s.Aligner.Command.Command, s.Aligner.Args, s.Aligner.RelativeTimes)
	}
	if s.G2P.Command != "" {
		deps.G2P = g2p.New(s.G2P.Command, s.G2P.Args)
	}

	res, err := usecase.New(deps).Run(ctx, usecase.Input{
		Candidate:    cand,
		Reference:    ref,
		Audio:        cfg.Audio,
		Transcode:    s.Audio.Transcode,
		Lexicon:      lex,
		WorkDir:      cacheDir,
		Anchor:       s.AnchorOptions(),
		Segmenter:    s.SegmenterOptions(),
		Merge:        s.MergeOptions(),
		AlignTimeout: s.Aligner.Timeout,
		Retries:      s.Aligner.Retries,
		Formats:      formats,
		FileID:       strings.TrimSuffix(filepath.Base(cfg.Audio), filepath.Ext(cfg.Audio)),
	})
	if err != nil {
		return Summary{}, err
	}

	outDir := s.Output.Dir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Candidate, time.Now().UTC())
	files, err := writeArtifacts(runOutDir, cfg, res)
	if err != nil {
		return Summary{}, err
	}
	log.Info().
		Str("dir", runOutDir).
		Int("files", len(files)).
		Float64("anchor_ratio", res.Report.AnchorRatio).
		Msg("outputs written")
	return Summary{OutDir: runOutDir, Files: files, Report: res.Report}, nil
}

// writeArtifacts fills a staging directory and renames it into place so a
// run directory is either complete or absent.
func writeArtifacts(runOutDir string, cfg Config, res usecase.Result) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(runOutDir), 0o755); err != nil {
		return nil, err
	}
	staging := runOutDir + ".partial"
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}

	report, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	outputs := append(res.Outputs, usecase.Output{Name: reportFile, Data: report})

	manifest := types.Manifest{Candidate: cfg.Candidate, Reference: cfg.Reference, Audio: cfg.Audio}
	for _, o := range outputs {
		manifest.Files = append(manifest.Files, o.Name)
	}
	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	outputs = append(outputs, usecase.Output{Name: manifestFile, Data: mb})

	for _, o := range outputs {
		if err := os.WriteFile(filepath.Join(staging, o.Name), o.Data, 0o644); err != nil {
			_ = os.RemoveAll(staging)
			return nil, err
		}
	}
	if err := os.Rename(staging, runOutDir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}
	return append(manifest.Files, manifestFile), nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.AudioTool = (*ffmpeg.Adapter)(nil)
var _ ports.Aligner = (*kaldi.Adapter)(nil)
var _ ports.G2P = (*g2p.Adapter)(nil)
