package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/realign/internal/types"
)

func RenderSRT(tr types.Transcript) string {
	var b strings.Builder
	for i, ln := range subtitleLines(tr) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, srtTime(ln.Start), srtTime(ln.End), ln.text())
	}
	return b.String()
}

// srtTime formats HH:MM:SS,mmm.
func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hs, ms, s, int(d/time.Millisecond))
}
