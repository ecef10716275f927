package format

import (
	"fmt"
	"strings"

	"github.com/forPelevin/realign/internal/domain/textnorm"
	"github.com/forPelevin/realign/internal/types"
)

// RenderCTM writes `<utt> 1 <start> <dur> <word> [conf]` rows keyed by
// segment id. Trailing sentence punctuation is stripped and words without
// times are left out.
func RenderCTM(tr types.Transcript) string {
	var b strings.Builder
	for _, sec := range tr.Sections {
		if !sec.IsSpeech() {
			continue
		}
		for _, turn := range sec.Turns {
			for _, seg := range turn.Segments {
				for _, w := range seg.Words {
					start, end, ok := w.Span()
					if !ok {
						continue
					}
					word := textnorm.TrimSentencePunct(w.Surface())
					if word == "" {
						continue
					}
					fmt.Fprintf(&b, "%s 1 %.3f %.3f %s", seg.ID, start, end-start, word)
					if w.Confidence != nil {
						fmt.Fprintf(&b, " %.3f", *w.Confidence)
					}
					b.WriteByte('\n')
				}
			}
		}
	}
	return b.String()
}
