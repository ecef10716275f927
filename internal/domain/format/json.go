package format

import (
	"encoding/json"

	"github.com/forPelevin/realign/internal/types"
)

type jsonWord struct {
	Word                string   `json:"word"`
	Punctuation         string   `json:"punctuation"`
	WordWithPunctuation string   `json:"word_with_punctuation"`
	Start               *float64 `json:"start"`
	End                 *float64 `json:"end"`
	Confidence          *float64 `json:"confidence,omitempty"`
	Source              string   `json:"source,omitempty"`
}

type jsonTurn struct {
	Speaker    string     `json:"speaker"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Transcript string     `json:"transcript"`
	Words      []jsonWord `json:"words"`
}

type jsonSection struct {
	Type  string     `json:"type"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Turns []jsonTurn `json:"turns,omitempty"`
}

type jsonDoc struct {
	Speakers map[string]types.Speaker `json:"speakers"`
	Sections []jsonSection            `json:"sections"`
}

// RenderJSON writes the speakers/sections/turns/words document.
func RenderJSON(tr types.Transcript) ([]byte, error) {
	doc := jsonDoc{Speakers: tr.Speakers, Sections: make([]jsonSection, 0, len(tr.Sections))}
	if doc.Speakers == nil {
		doc.Speakers = map[string]types.Speaker{}
	}
	for _, sec := range tr.Sections {
		js := jsonSection{Type: sec.Type, Start: round3(sec.Start), End: round3(sec.End)}
		if js.Type == "" {
			js.Type = types.SectionSpeech
		}
		for _, turn := range sec.Turns {
			jt := jsonTurn{
				Speaker:    turn.Speaker,
				Start:      round3(turn.Start),
				End:        round3(turn.End),
				Transcript: turn.Text(),
				Words:      []jsonWord{},
			}
			for _, seg := range turn.Segments {
				for _, w := range seg.Words {
					jt.Words = append(jt.Words, jsonWord{
						Word:                w.Text,
						Punctuation:         w.Punctuation,
						WordWithPunctuation: w.Surface(),
						Start:               roundPtr(w.Start),
						End:                 roundPtr(w.End),
						Confidence:          roundPtr(w.Confidence),
						Source:              w.Source,
					})
				}
			}
			js.Turns = append(js.Turns, jt)
		}
		doc.Sections = append(doc.Sections, js)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return types.Sec(round3(*v))
}
