// Package format renders the canonical transcript into output formats.
// Renderers are pure: they never modify the transcript they are given.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/realign/internal/types"
)

type Format string

const (
	JSON Format = "json"
	CTM  Format = "ctm"
	SRT  Format = "srt"
	TRS  Format = "trs"
	TXT  Format = "txt"
	ASS  Format = "ass"
)

// All lists every supported format in output order.
var All = []Format{JSON, CTM, SRT, TRS, TXT, ASS}

// Options carries per-recording metadata some formats embed.
type Options struct {
	// FileID names the recording (TRS audio_filename).
	FileID string
}

// Parse validates format names. An empty list selects every format.
func Parse(names []string) ([]Format, error) {
	if len(names) == 0 {
		return append([]Format(nil), All...), nil
	}
	seen := map[Format]bool{}
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if f == "" || seen[f] {
			continue
		}
		if !f.valid() {
			return nil, fmt.Errorf("unknown output format %q", n)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func (f Format) valid() bool {
	for _, a := range All {
		if f == a {
			return true
		}
	}
	return false
}

// Filename is the artifact name for the format.
func (f Format) Filename() string { return "result." + string(f) }

func Render(f Format, tr types.Transcript, opts Options) ([]byte, error) {
	switch f {
	case JSON:
		return RenderJSON(tr)
	case CTM:
		return []byte(RenderCTM(tr)), nil
	case SRT:
		return []byte(RenderSRT(tr)), nil
	case TRS:
		return RenderTRS(tr, opts.FileID)
	case TXT:
		return []byte(RenderText(tr)), nil
	case ASS:
		return []byte(RenderASS(tr)), nil
	}
	return nil, fmt.Errorf("unknown output format %q", f)
}

// round3 rounds seconds to milliseconds.
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
