package ports

import (
	"context"
	"errors"
	"time"

	"github.com/forPelevin/realign/internal/types"
)

// ErrTransient marks failures worth one more attempt (crashed or killed
// aligner process, busy device). Callers test for it with errors.Is.
var ErrTransient = errors.New("transient failure")

// AlignJob points the aligner at a prepared data directory.
type AlignJob struct {
	DataDir    string
	Lexicon    string
	Audio      string
	OutDir     string
	Utterances []types.Utterance
}

// Aligner force-aligns every utterance of a job and returns word timings
// in absolute seconds keyed by utterance id. Utterances it could not align
// are missing from the map.
type Aligner interface {
	Align(ctx context.Context, job AlignJob) (map[string][]types.Timing, error)
}

// G2P generates pronunciations for words missing from the lexicon.
type G2P interface {
	Pronounce(ctx context.Context, words []string) (map[string][]string, error)
}

type AudioTool interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
}
