package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forPelevin/realign/internal/config"
	"github.com/forPelevin/realign/internal/domain/reference"
	"github.com/forPelevin/realign/internal/logging"
	"github.com/forPelevin/realign/internal/pipeline"
)

func run(cmd *cobra.Command, candidate, audio string) error {
	settings, err := loadSettings(cmd.Flags())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lc := logging.DefaultConfig()
	if settings.Log.Level != "" {
		lc.Level = settings.Log.Level
	}
	if settings.Log.Format != "" {
		lc.Format = settings.Log.Format
	}
	logging.Init(lc)

	refPath, _ := cmd.Flags().GetString("reference")
	refFmtName, _ := cmd.Flags().GetString("reference-format")
	refFmt, err := reference.ParseFormat(refFmtName)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg := pipeline.Config{
		Candidate:       absPath(candidate),
		Reference:       absPath(refPath),
		ReferenceFormat: refFmt,
		Audio:           absPath(audio),
		Settings:        settings,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	sum, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", sum.OutDir)
	return nil
}

// loadSettings layers defaults, the config file, REALIGN_* variables and
// explicitly set flags, in that order.
func loadSettings(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("formats") {
		cfg.Output.Formats, _ = flags.GetStringSlice("formats")
	}
	if flags.Changed("use-anchoring") {
		cfg.Anchoring.UseAnchoring, _ = flags.GetBool("use-anchoring")
	}
	if flags.Changed("confidence-threshold") {
		cfg.Anchoring.ConfidenceThreshold, _ = flags.GetFloat64("confidence-threshold")
	}
	if flags.Changed("max-duration") {
		cfg.Segmentation.MaxDurationSeconds, _ = flags.GetFloat64("max-duration")
	}
	if flags.Changed("max-gap") {
		cfg.Segmentation.MaxGapSeconds, _ = flags.GetFloat64("max-gap")
	}
	if flags.Changed("workers") {
		cfg.Merge.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("aligner") {
		cfg.Aligner.Command.Command, _ = flags.GetString("aligner")
	}
	if flags.Changed("lexicon") {
		cfg.Lexicon.Path, _ = flags.GetString("lexicon")
	}
	if flags.Changed("g2p") {
		cfg.G2P.Command, _ = flags.GetString("g2p")
	}
	if flags.Changed("transcode") {
		cfg.Audio.Transcode, _ = flags.GetBool("transcode")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File, _ = flags.GetString("metrics-file")
	}
	return cfg, nil
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
