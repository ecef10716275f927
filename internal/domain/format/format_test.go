package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/forPelevin/realign/internal/domain/reference"
	"github.com/forPelevin/realign/internal/types"
)

func word(text, punct string, start, end, conf float64) types.Word {
	return types.Word{Text: text, Punctuation: punct, Start: types.Sec(start), End: types.Sec(end), Confidence: types.Sec(conf), Source: types.SourceAligned}
}

func sample() types.Transcript {
	return types.Transcript{
		Speakers: map[string]types.Speaker{"S1": {Name: "Jaan Tamm"}, "S2": {}},
		Sections: []types.Section{
			{Type: "non-speech", Start: 0, End: 1},
			{Type: types.SectionSpeech, Start: 1, End: 5, Turns: []types.Turn{
				{Speaker: "S1", Start: 1, End: 3, Segments: []types.Segment{
					{ID: "S1-seg_0001", Speaker: "S1", Start: 1, End: 2, Words: []types.Word{
						word("Tere", ",", 1.0, 1.4, 1),
						word("maailm", ".", 1.5, 2.0, 0.6),
					}},
					{ID: "S1-seg_0002", Speaker: "S1", Start: 2, End: 3, Words: []types.Word{
						word("Kuidas", "", 2.1, 2.5, 0.6),
						{Text: "läheb", Punctuation: "?", Source: types.SourceUnaligned, Confidence: types.Sec(0)},
					}},
				}},
				{Speaker: "S2", Start: 3.5, End: 5, Segments: []types.Segment{
					{ID: "S2-seg_0003", Speaker: "S2", Start: 3.5, End: 5, Words: []types.Word{
						word("Hästi", "!", 3.6, 4.1, 0.3),
					}},
				}},
			}},
		},
	}
}

func TestParse(t *testing.T) {
	all, err := Parse(nil)
	if err != nil || len(all) != len(All) {
		t.Fatalf("expected all formats, got %v %v", all, err)
	}
	got, err := Parse([]string{"CTM", " srt", "ctm"})
	if err != nil || len(got) != 2 || got[0] != CTM || got[1] != SRT {
		t.Fatalf("unexpected formats: %v %v", got, err)
	}
	if _, err := Parse([]string{"docx"}); err == nil {
		t.Fatalf("expected error")
	}
	if CTM.Filename() != "result.ctm" {
		t.Fatalf("unexpected filename %q", CTM.Filename())
	}
}

func TestRenderCTM(t *testing.T) {
	got := RenderCTM(sample())
	want := "S1-seg_0001 1 1.000 0.400 Tere 1.000\n" +
		"S1-seg_0001 1 1.500 0.500 maailm 0.600\n" +
		"S1-seg_0002 1 2.100 0.400 Kuidas 0.600\n" +
		"S2-seg_0003 1 3.600 0.500 Hästi 0.300\n"
	if got != want {
		t.Fatalf("unexpected CTM:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderJSON_ShapeAndRoundTrip(t *testing.T) {
	tr := sample()
	b, err := RenderJSON(tr)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !strings.Contains(string(b), `"word_with_punctuation": "Tere,"`) {
		t.Fatalf("missing word_with_punctuation:\n%s", b)
	}
	if !strings.Contains(string(b), `"transcript": "Tere, maailm. Kuidas läheb?"`) {
		t.Fatalf("missing turn transcript:\n%s", b)
	}
	if !strings.Contains(string(b), `"start": null`) {
		t.Fatalf("expected null time for unaligned word:\n%s", b)
	}

	back, err := reference.Parse(b, reference.FormatTurns)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.WordCount() != tr.WordCount() {
		t.Fatalf("round trip lost words: %d vs %d", back.WordCount(), tr.WordCount())
	}
	if back.SpeakerName("S1") != "Jaan Tamm" {
		t.Fatalf("round trip lost speaker name")
	}
}

func TestRenderSRT(t *testing.T) {
	got := RenderSRT(sample())
	want := "1\n00:00:01,000 --> 00:00:02,500\nTere, maailm. Kuidas\n\n" +
		"2\n00:00:03,600 --> 00:00:04,100\nHästi!\n"
	if got != want {
		t.Fatalf("unexpected SRT:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderTRS(t *testing.T) {
	b, err := RenderTRS(sample(), "intervjuu")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		`<!DOCTYPE Trans SYSTEM "trans-14.dtd">`,
		`<Trans audio_filename="intervjuu">`,
		`<Speaker id="spk1" name="Jaan Tamm">`,
		`<Section type="nontrans" startTime="0.000" endTime="1.000">`,
		`<Turn startTime="3.500" endTime="5.000" speaker="spk2">`,
		`<Sync time="2.000">`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("TRS missing %s:\n%s", want, s)
		}
	}

	back, err := reference.Parse(b, reference.FormatTRS)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.WordCount() != 5 || back.SpeakerName("spk1") != "Jaan Tamm" {
		t.Fatalf("unexpected reparse: %d words", back.WordCount())
	}
}

func TestRenderText(t *testing.T) {
	got := RenderText(sample())
	want := "Jaan Tamm: Tere, maailm. Kuidas läheb?\nS2: Hästi!\n"
	if got != want {
		t.Fatalf("unexpected text:\n%s", got)
	}
}

func TestRender_DoesNotMutate(t *testing.T) {
	tr := sample()
	before, _ := RenderJSON(tr)
	for _, f := range All {
		if _, err := Render(f, tr, Options{FileID: "x"}); err != nil {
			t.Fatalf("render %s: %v", f, err)
		}
	}
	after, _ := RenderJSON(tr)
	if string(before) != string(after) {
		t.Fatalf("rendering mutated the transcript")
	}
}
