package kaldi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/realign/internal/ports"
	"github.com/forPelevin/realign/internal/types"
)

// maxOutput bounds how much aligner output is kept for error messages.
const maxOutput = 4096

// Adapter runs an external forced-alignment recipe. The command and its
// arguments may use {data}, {lexicon}, {out} and {audio} placeholders.
// The recipe must leave a CTM at <out>/ctm.
type Adapter struct {
	command  string
	args     []string
	relative bool
}

// New returns an adapter. relative tells whether CTM times are offsets
// from the utterance start, as Kaldi writes them for segmented data.
func New(command string, args []string, relative bool) *Adapter {
	return &Adapter{command: command, args: args, relative: relative}
}

func (a *Adapter) Align(ctx context.Context, job ports.AlignJob) (map[string][]types.Timing, error) {
	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("aligner out dir: %w", err)
	}
	r := strings.NewReplacer("{data}", job.DataDir, "{lexicon}", job.Lexicon, "{out}", job.OutDir, "{audio}", job.Audio)
	bin, err := exec.LookPath(r.Replace(a.command))
	if err != nil {
		return nil, fmt.Errorf("aligner %q: %w", a.command, err)
	}
	args := make([]string, len(a.args))
	for i, arg := range a.args {
		args[i] = r.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("aligner: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: aligner: %w\n%s", ports.ErrTransient, err, tail(b))
		}
		return nil, fmt.Errorf("aligner: %w\n%s", err, tail(b))
	}

	f, err := os.Open(filepath.Join(job.OutDir, "ctm"))
	if err != nil {
		return nil, fmt.Errorf("aligner output: %w", err)
	}
	defer f.Close()

	var offsets map[string]float64
	if a.relative {
		offsets = make(map[string]float64, len(job.Utterances))
		for _, u := range job.Utterances {
			offsets[u.ID] = u.Start
		}
	}
	return ParseCTM(f, offsets)
}

// ParseCTM reads `utt channel start duration word [conf]` lines grouped by
// utterance. Offsets, when non-nil, are added to the times of the matching
// utterance.
func ParseCTM(r io.Reader, offsets map[string]float64) (map[string][]types.Timing, error) {
	out := map[string][]types.Timing{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], ";;") {
			continue
		}
		if len(f) < 5 {
			return nil, fmt.Errorf("ctm line %d: expected 5 fields, got %d", line, len(f))
		}
		start, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("ctm line %d: start: %w", line, err)
		}
		dur, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return nil, fmt.Errorf("ctm line %d: duration: %w", line, err)
		}
		start += offsets[f[0]]
		out[f[0]] = append(out[f[0]], types.Timing{Word: f[4], Start: start, End: start + dur})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ctm: %w", err)
	}
	return out, nil
}

func tail(b []byte) string {
	if len(b) > maxOutput {
		b = b[len(b)-maxOutput:]
	}
	return string(b)
}
