package format

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strconv"

	"github.com/forPelevin/realign/internal/types"
)

const trsDoctype = `DOCTYPE Trans SYSTEM "trans-14.dtd"`

// RenderTRS writes Transcriber XML. Speakers are renumbered spk1..spkN in
// order of first appearance and each segment starts with a Sync point.
func RenderTRS(tr types.Transcript, fileID string) ([]byte, error) {
	ids := trsSpeakerIDs(tr)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	e := xml.NewEncoder(&buf)

	el := func(name string, attrs ...string) xml.StartElement {
		se := xml.StartElement{Name: xml.Name{Local: name}}
		for i := 0; i+1 < len(attrs); i += 2 {
			se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
		}
		return se
	}
	var toks []xml.Token
	open := func(se xml.StartElement) { toks = append(toks, se) }
	closeEl := func(name string) { toks = append(toks, xml.EndElement{Name: xml.Name{Local: name}}) }

	toks = append(toks, xml.Directive(trsDoctype), xml.CharData("\n"))
	if fileID != "" {
		open(el("Trans", "audio_filename", fileID))
	} else {
		open(el("Trans"))
	}
	open(el("Speakers"))
	for _, id := range ids.order {
		name := tr.SpeakerName(id)
		open(el("Speaker", "id", ids.byID[id], "name", name))
		closeEl("Speaker")
	}
	closeEl("Speakers")

	open(el("Episode"))
	for _, sec := range tr.Sections {
		typ := "report"
		if !sec.IsSpeech() {
			typ = "nontrans"
		}
		open(el("Section", "type", typ, "startTime", trsTime(sec.Start), "endTime", trsTime(sec.End)))
		for _, turn := range sec.Turns {
			open(el("Turn", "startTime", trsTime(turn.Start), "endTime", trsTime(turn.End), "speaker", ids.byID[turn.Speaker]))
			for _, seg := range turn.Segments {
				open(el("Sync", "time", trsTime(seg.Start)))
				closeEl("Sync")
				toks = append(toks, xml.CharData("\n"+seg.Text()+"\n"))
			}
			closeEl("Turn")
		}
		closeEl("Section")
	}
	closeEl("Episode")
	closeEl("Trans")

	for _, t := range toks {
		if err := e.EncodeToken(t); err != nil {
			return nil, fmt.Errorf("encode trs: %w", err)
		}
	}
	if err := e.Flush(); err != nil {
		return nil, fmt.Errorf("encode trs: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type speakerIDs struct {
	order []string
	byID  map[string]string
}

func trsSpeakerIDs(tr types.Transcript) speakerIDs {
	ids := speakerIDs{byID: map[string]string{}}
	add := func(id string) {
		if _, ok := ids.byID[id]; ok {
			return
		}
		ids.order = append(ids.order, id)
		ids.byID[id] = "spk" + strconv.Itoa(len(ids.order))
	}
	for _, sec := range tr.Sections {
		for _, turn := range sec.Turns {
			add(turn.Speaker)
		}
	}
	rest := make([]string, 0, len(tr.Speakers))
	for id := range tr.Speakers {
		rest = append(rest, id)
	}
	slices.Sort(rest)
	for _, id := range rest {
		add(id)
	}
	return ids
}

func trsTime(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
