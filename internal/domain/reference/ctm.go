package reference

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/realign/internal/types"
)

// speakerSep separates the speaker prefix in merged utterance ids
// ("spk1###0001.230-0012.500").
const speakerSep = "###"

func parseCTM(b []byte) (types.Transcript, error) {
	byUtt := map[string]*types.Segment{}
	var order []string

	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], ";;") {
			continue
		}
		if len(f) < 5 {
			return types.Transcript{}, fmt.Errorf("ctm line %d: expected at least 5 fields, got %d", line, len(f))
		}
		start, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("ctm line %d: start %q: %w", line, f[2], err)
		}
		dur, err := strconv.ParseFloat(f[3], 64)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("ctm line %d: duration %q: %w", line, f[3], err)
		}
		if dur < 0 {
			return types.Transcript{}, fmt.Errorf("ctm line %d: negative duration %v", line, dur)
		}
		w := newWord(f[4])
		w.Start, w.End = types.Sec(start), types.Sec(start+dur)
		if len(f) > 5 {
			if c, err := strconv.ParseFloat(f[5], 64); err == nil {
				w.Confidence = types.Sec(c)
			}
		}

		utt := f[0]
		seg, ok := byUtt[utt]
		if !ok {
			seg = &types.Segment{ID: utt, Speaker: ctmSpeaker(utt), Start: start, End: start + dur}
			byUtt[utt] = seg
			order = append(order, utt)
		}
		seg.Words = append(seg.Words, w)
		seg.Start = min(seg.Start, start)
		seg.End = max(seg.End, start+dur)
	}
	if err := sc.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("read ctm: %w", err)
	}

	segs := make([]types.Segment, 0, len(order))
	for _, id := range order {
		seg := byUtt[id]
		sort.SliceStable(seg.Words, func(i, j int) bool { return *seg.Words[i].Start < *seg.Words[j].Start })
		segs = append(segs, *seg)
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	turns := groupTurns(segs)
	tr := types.Transcript{Speakers: speakersOf(turns, nil)}
	if len(turns) > 0 {
		tr.Sections = []types.Section{speechSection(turns)}
	}
	return tr, nil
}

func ctmSpeaker(utt string) string {
	if i := strings.Index(utt, speakerSep); i > 0 {
		return utt[:i]
	}
	return DefaultSpeaker
}

// looksLikeCTM reports whether the first data line has the CTM column layout.
func looksLikeCTM(b []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < 5 {
			return false
		}
		_, err1 := strconv.ParseFloat(f[2], 64)
		_, err2 := strconv.ParseFloat(f[3], 64)
		return err1 == nil && err2 == nil
	}
	return false
}
