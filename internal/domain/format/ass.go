package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/realign/internal/types"
)

// RenderASS writes karaoke subtitles: each word is highlighted for its
// aligned duration.
func RenderASS(tr types.Transcript) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ln := range subtitleLines(tr) {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(ln.Start))
		b.WriteString(",")
		b.WriteString(assTime(ln.End))
		b.WriteString(",Default,")
		b.WriteString(sanitizeASSName(ln.Speaker))
		b.WriteString(",0,0,0,,")
		for i, w := range ln.Words {
			durCS := int((w.End - w.Start) / (10 * time.Millisecond))
			if durCS < 1 {
				durCS = 1
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(fmt.Sprintf("{\\k%d}%s", durCS, sanitizeASS(w.Text)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default, Inter, 64, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 0,0,0,0,100,100,0,0,1,4,1,2, 80,80,60,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}

// sanitizeASSName keeps the Name field from breaking the comma-separated
// event layout.
func sanitizeASSName(s string) string {
	return strings.ReplaceAll(sanitizeASS(s), ",", " ")
}
