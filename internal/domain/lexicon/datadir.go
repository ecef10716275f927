package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/forPelevin/realign/internal/types"
)

// RecordingID names the single recording in the data directory.
const RecordingID = "audio"

// minUtteranceSeconds widens zero-length utterance bounds.
const minUtteranceSeconds = 0.1

// DataDir describes a written aligner data directory.
type DataDir struct {
	Dir      string
	Lexicon  string
	Included []string
	// Skipped lists utterances with no alignable tokens or no time bounds.
	Skipped []string
}

// AlignTokens returns the tokens of u that the aligner sees.
func AlignTokens(u types.Utterance) []string {
	out := make([]string, 0, len(u.Tokens))
	for _, t := range u.Tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// WriteDataDir writes a Kaldi-style data directory (wav.scp, segments,
// text, utt2spk, spk2utt) plus lexicon.txt and utterances.json into dir.
// Each utterance is its own speaker for alignment. Utterances without
// bounds are left out rather than given a made-up window.
func WriteDataDir(dir, audio string, utts []types.Utterance, lex *Lexicon) (DataDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DataDir{}, fmt.Errorf("mkdir datadir: %w", err)
	}
	out := DataDir{Dir: dir, Lexicon: filepath.Join(dir, "lexicon.txt")}

	sorted := slices.Clone(utts)
	slices.SortFunc(sorted, func(a, b types.Utterance) int { return strings.Compare(a.ID, b.ID) })

	var segments, text, utt2spk strings.Builder
	for _, u := range sorted {
		toks := AlignTokens(u)
		if len(toks) == 0 || !u.HasBounds {
			out.Skipped = append(out.Skipped, u.ID)
			continue
		}
		end := u.End
		if end-u.Start < minUtteranceSeconds {
			end = u.Start + minUtteranceSeconds
		}
		fmt.Fprintf(&segments, "%s %s %.3f %.3f\n", u.ID, RecordingID, u.Start, end)
		fmt.Fprintf(&text, "%s %s\n", u.ID, strings.Join(toks, " "))
		fmt.Fprintf(&utt2spk, "%s %s\n", u.ID, u.ID)
		out.Included = append(out.Included, u.ID)
	}
	if len(out.Included) == 0 {
		return out, fmt.Errorf("datadir: no bounded utterance has alignable text")
	}

	meta, err := json.MarshalIndent(utts, "", "  ")
	if err != nil {
		return out, fmt.Errorf("encode utterances: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{"wav.scp", []byte(fmt.Sprintf("%s %s\n", RecordingID, audio))},
		{"segments", []byte(segments.String())},
		{"text", []byte(text.String())},
		{"utt2spk", []byte(utt2spk.String())},
		{"spk2utt", []byte(utt2spk.String())},
		{"utterances.json", meta},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	lf, err := os.Create(out.Lexicon)
	if err != nil {
		return out, fmt.Errorf("write lexicon.txt: %w", err)
	}
	if _, err := lex.WriteTo(lf); err != nil {
		_ = lf.Close()
		return out, fmt.Errorf("write lexicon.txt: %w", err)
	}
	if err := lf.Close(); err != nil {
		return out, fmt.Errorf("write lexicon.txt: %w", err)
	}
	return out, nil
}
