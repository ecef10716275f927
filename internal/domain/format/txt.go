package format

import (
	"strings"

	"github.com/forPelevin/realign/internal/types"
)

// RenderText writes one `Speaker: transcript` line per turn.
func RenderText(tr types.Transcript) string {
	var b strings.Builder
	for _, sec := range tr.Sections {
		for _, turn := range sec.Turns {
			text := turn.Text()
			if text == "" {
				continue
			}
			b.WriteString(strings.TrimPrefix(tr.SpeakerName(turn.Speaker), "audio-"))
			b.WriteString(": ")
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
