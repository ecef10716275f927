package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "realign <candidate> <audio>",
		Short:        "Re-align a transcript to its audio, guided by anchors from a reference transcript",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], args[1])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	f := root.Flags()
	f.String("config", "", "YAML config file")
	f.String("reference", "", "Reference transcript (json, ctm or trs)")
	f.String("reference-format", "", "Reference format: segments, turns, ctm, trs (default: detect)")
	f.String("out", "out", "Output directory")
	f.StringSlice("formats", nil, "Output formats: json, ctm, srt, trs, txt, ass (default: all)")
	f.Bool("use-anchoring", true, "Cut utterances at reference anchors")
	f.Float64("confidence-threshold", 0.8, "Minimum anchor confidence")
	f.Float64("max-duration", 30, "Maximum utterance duration in seconds")
	f.String("aligner", "", "Forced aligner command")
	f.String("lexicon", "", "Pronunciation lexicon")
	f.String("g2p", "", "Grapheme-to-phoneme command for OOV words")
	f.Bool("transcode", false, "Convert audio to 16 kHz mono WAV with ffmpeg first")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("metrics-file", "", "Write run metrics in Prometheus text format")

	// Hidden tuning flags
	f.Float64("max-gap", 2, "Force a cut at silences longer than this many seconds")
	f.Int("workers", 4, "Parallel merge workers")
	_ = f.MarkHidden("max-gap")
	_ = f.MarkHidden("workers")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
