package reference

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/forPelevin/realign/internal/types"
)

// TRS section types that carry no transcribed speech.
var nonSpeechSections = map[string]bool{"nontrans": true}

type trsParser struct {
	tr      types.Transcript
	sec     *types.Section
	turn    *types.Turn
	syncAt  float64
	text    strings.Builder
	segSeen int
}

func parseTRS(b []byte) (types.Transcript, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	dec.CharsetReader = charsetReader
	dec.Strict = false

	p := &trsParser{tr: types.Transcript{Speakers: map[string]types.Speaker{}}}
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("decode trs: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Trans" {
				sawRoot = true
			}
			if err := p.start(t); err != nil {
				return types.Transcript{}, err
			}
		case xml.EndElement:
			p.end(t)
		case xml.CharData:
			if p.turn != nil {
				p.text.Write(t)
				p.text.WriteByte(' ')
			}
		}
	}
	if !sawRoot {
		return types.Transcript{}, errors.New("decode trs: missing <Trans> root")
	}
	return p.tr, nil
}

func (p *trsParser) start(t xml.StartElement) error {
	switch t.Name.Local {
	case "Speaker":
		id := attr(t, "id")
		if id != "" {
			p.tr.Speakers[id] = types.Speaker{Name: attr(t, "name")}
		}
	case "Section":
		start, end, err := span(t)
		if err != nil {
			return err
		}
		typ := attr(t, "type")
		if !nonSpeechSections[typ] {
			typ = types.SectionSpeech
		}
		p.tr.Sections = append(p.tr.Sections, types.Section{Type: typ, Start: start, End: end})
		p.sec = &p.tr.Sections[len(p.tr.Sections)-1]
	case "Turn":
		start, end, err := span(t)
		if err != nil {
			return err
		}
		speaker := DefaultSpeaker
		if f := strings.Fields(attr(t, "speaker")); len(f) > 0 {
			speaker = f[0]
		}
		p.turn = &types.Turn{Speaker: speaker, Start: start, End: end}
		p.syncAt = start
		p.text.Reset()
	case "Sync":
		if p.turn == nil {
			return nil
		}
		at, err := strconv.ParseFloat(attr(t, "time"), 64)
		if err != nil {
			return fmt.Errorf("trs sync time %q: %w", attr(t, "time"), err)
		}
		p.flush(at)
		p.syncAt = at
	}
	return nil
}

func (p *trsParser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "Turn":
		if p.turn == nil {
			return
		}
		p.flush(p.turn.End)
		if p.sec == nil {
			p.tr.Sections = append(p.tr.Sections, types.Section{Type: types.SectionSpeech, Start: p.turn.Start, End: p.turn.End})
			p.sec = &p.tr.Sections[len(p.tr.Sections)-1]
		}
		if len(p.turn.Segments) > 0 {
			p.sec.Turns = append(p.sec.Turns, *p.turn)
			if _, ok := p.tr.Speakers[p.turn.Speaker]; !ok {
				p.tr.Speakers[p.turn.Speaker] = types.Speaker{}
			}
		}
		p.turn = nil
	case "Section":
		p.sec = nil
	}
}

// flush closes the text collected since the last sync point as a segment
// ending at until.
func (p *trsParser) flush(until float64) {
	text := strings.TrimSpace(p.text.String())
	p.text.Reset()
	if text == "" {
		return
	}
	seg := types.Segment{
		ID:      segID(p.segSeen),
		Speaker: p.turn.Speaker,
		Start:   p.syncAt,
		End:     max(until, p.syncAt),
	}
	p.segSeen++
	seg.Words = splitEven(text, seg.Start, seg.End, seg.End > seg.Start)
	p.turn.Segments = append(p.turn.Segments, seg)
}

func span(t xml.StartElement) (float64, float64, error) {
	start, err := strconv.ParseFloat(attrOr(t, "startTime", "0"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("trs %s startTime: %w", t.Name.Local, err)
	}
	end, err := strconv.ParseFloat(attrOr(t, "endTime", "0"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("trs %s endTime: %w", t.Name.Local, err)
	}
	return start, end, nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func attrOr(t xml.StartElement, name, def string) string {
	if v := attr(t, name); v != "" {
		return v
	}
	return def
}

// charsetReader decodes legacy TRS encodings (typically ISO-8859-1/-15).
func charsetReader(label string, in io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("trs charset %q: %w", label, err)
	}
	if enc == nil {
		return in, nil
	}
	return enc.NewDecoder().Reader(in), nil
}
