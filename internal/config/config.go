// Package config holds the run configuration: defaults, an optional YAML
// file, and REALIGN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/realign/internal/domain/anchor"
	"github.com/forPelevin/realign/internal/domain/format"
	"github.com/forPelevin/realign/internal/domain/merge"
	"github.com/forPelevin/realign/internal/domain/segmenter"
)

type Config struct {
	Anchoring    Anchoring    `yaml:"anchoring"`
	Segmentation Segmentation `yaml:"segmentation"`
	Merge        Merge        `yaml:"merge"`
	Aligner      Aligner      `yaml:"aligner"`
	G2P          Command      `yaml:"g2p"`
	Lexicon      Lexicon      `yaml:"lexicon"`
	Audio        Audio        `yaml:"audio"`
	Output       Output       `yaml:"output"`
	Log          Log          `yaml:"log"`
	Metrics      Metrics      `yaml:"metrics"`
}

type Anchoring struct {
	UseAnchoring        bool    `yaml:"use_anchoring"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// NearMatchThreshold of zero disables near-match anchors.
	NearMatchThreshold float64 `yaml:"near_match_threshold"`
}

type Segmentation struct {
	MaxDurationSeconds float64 `yaml:"max_duration_seconds"`
	MaxGapSeconds      float64 `yaml:"max_gap_seconds"`
}

type Merge struct {
	SanityToleranceSeconds float64 `yaml:"sanity_tolerance_seconds"`
	Workers                int     `yaml:"workers"`
}

type Command struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Aligner struct {
	Command `yaml:",inline"`
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of extra attempts after a transient failure.
	Retries       int  `yaml:"retries"`
	RelativeTimes bool `yaml:"relative_times"`
}

type Lexicon struct {
	Path string `yaml:"path"`
}

type Audio struct {
	// Transcode converts the input audio to 16 kHz mono WAV before
	// alignment.
	Transcode bool   `yaml:"transcode"`
	FFmpeg    string `yaml:"ffmpeg"`
	FFprobe   string `yaml:"ffprobe"`
}

type Output struct {
	Dir      string   `yaml:"dir"`
	Formats  []string `yaml:"formats"`
	CacheDir string   `yaml:"cache_dir"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Metrics struct {
	// File receives the run metrics in Prometheus text format when set.
	File string `yaml:"file"`
}

func Default() Config {
	return Config{
		Anchoring: Anchoring{
			UseAnchoring:        true,
			ConfidenceThreshold: anchor.DefaultConfidenceThreshold,
		},
		Segmentation: Segmentation{
			MaxDurationSeconds: segmenter.DefaultMaxDuration,
			MaxGapSeconds:      segmenter.DefaultMaxGap,
		},
		Merge: Merge{
			SanityToleranceSeconds: merge.DefaultTolerance,
			Workers:                merge.DefaultWorkers,
		},
		Aligner: Aligner{
			Timeout: 30 * time.Minute,
			Retries: 1,
		},
		Audio:  Audio{FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		Output: Output{Dir: "out", CacheDir: ".cache"},
		Log:    Log{Level: "info", Format: "console"},
	}
}

// Load reads the YAML file at path over the defaults. Keys the file does
// not set keep their default values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults. Unknown keys are errors.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from REALIGN_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	boolean("REALIGN_USE_ANCHORING", &c.Anchoring.UseAnchoring)
	num("REALIGN_CONFIDENCE_THRESHOLD", &c.Anchoring.ConfidenceThreshold)
	num("REALIGN_MAX_DURATION_SECONDS", &c.Segmentation.MaxDurationSeconds)
	str("REALIGN_ALIGNER_COMMAND", &c.Aligner.Command.Command)
	str("REALIGN_G2P_COMMAND", &c.G2P.Command)
	str("REALIGN_LEXICON", &c.Lexicon.Path)
	str("REALIGN_FFMPEG", &c.Audio.FFmpeg)
	str("REALIGN_FFPROBE", &c.Audio.FFprobe)
	str("REALIGN_OUT_DIR", &c.Output.Dir)
	str("REALIGN_CACHE_DIR", &c.Output.CacheDir)
	str("REALIGN_LOG_LEVEL", &c.Log.Level)
	str("REALIGN_LOG_FORMAT", &c.Log.Format)
	str("REALIGN_METRICS_FILE", &c.Metrics.File)
	if v, ok := lookup("REALIGN_ALIGNER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("REALIGN_ALIGNER_TIMEOUT: %w", err))
		} else {
			c.Aligner.Timeout = d
		}
	}
	return errors.Join(errs...)
}

// Validate returns a joined error listing every problem found.
func (c Config) Validate() error {
	var errs []error

	if t := c.Anchoring.ConfidenceThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("anchoring.confidence_threshold %.2f is out of range (0, 1]", t))
	}
	if t := c.Anchoring.NearMatchThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("anchoring.near_match_threshold %.2f is out of range [0, 1]", t))
	}
	if c.Segmentation.MaxDurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("segmentation.max_duration_seconds must be >= 0"))
	}
	if c.Segmentation.MaxGapSeconds < 0 {
		errs = append(errs, fmt.Errorf("segmentation.max_gap_seconds must be >= 0"))
	}
	if c.Merge.SanityToleranceSeconds < 0 {
		errs = append(errs, fmt.Errorf("merge.sanity_tolerance_seconds must be >= 0"))
	}
	if c.Merge.Workers <= 0 {
		errs = append(errs, fmt.Errorf("merge.workers must be > 0"))
	}
	if c.Aligner.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("aligner.timeout must be > 0"))
	}
	if c.Aligner.Retries < 0 || c.Aligner.Retries > 1 {
		errs = append(errs, fmt.Errorf("aligner.retries %d is out of range [0, 1]", c.Aligner.Retries))
	}
	if c.Audio.Transcode && c.Audio.FFmpeg == "" {
		errs = append(errs, fmt.Errorf("audio.ffmpeg is required when audio.transcode is set"))
	}
	if _, err := format.Parse(c.Output.Formats); err != nil {
		errs = append(errs, fmt.Errorf("output.formats: %w", err))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: console, json", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) AnchorOptions() anchor.Options {
	return anchor.Options{
		ConfidenceThreshold: c.Anchoring.ConfidenceThreshold,
		NearMatchThreshold:  c.Anchoring.NearMatchThreshold,
	}
}

func (c Config) SegmenterOptions() segmenter.Options {
	return segmenter.Options{
		MaxDuration:  c.Segmentation.MaxDurationSeconds,
		MaxGap:       c.Segmentation.MaxGapSeconds,
		UseAnchoring: c.Anchoring.UseAnchoring,
	}
}

func (c Config) MergeOptions() merge.Options {
	return merge.Options{
		Tolerance: c.Merge.SanityToleranceSeconds,
		Workers:   c.Merge.Workers,
	}
}
