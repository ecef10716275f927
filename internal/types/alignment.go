package types

// EditKind labels one edit-distance operation. Insertions are candidate
// tokens without a reference counterpart; deletions are reference tokens
// missing from the candidate.
type EditKind string

const (
	EditMatch        EditKind = "match"
	EditSubstitution EditKind = "substitution"
	EditInsertion    EditKind = "insertion"
	EditDeletion     EditKind = "deletion"
)

// Anchor pairs a candidate word with a reference word. Anchors are
// immutable once produced.
type Anchor struct {
	CandIndex  int     `json:"candidate_index"`
	RefIndex   int     `json:"reference_index"`
	Confidence float64 `json:"confidence"`
	Exact      bool    `json:"exact"`
	Text       string  `json:"text"`
}

// EditSpan is a maximal run of one non-match operation. Ranges are
// half-open; an empty range means the side has no tokens in the span.
type EditSpan struct {
	Kind      EditKind `json:"type"`
	CandStart int      `json:"candidate_start"`
	CandEnd   int      `json:"candidate_end"`
	RefStart  int      `json:"reference_start"`
	RefEnd    int      `json:"reference_end"`
	CandWords []string `json:"candidate_words,omitempty"`
	RefWords  []string `json:"reference_words,omitempty"`
}

type EditReport struct {
	Matches       int        `json:"matches"`
	Substitutions int        `json:"substitutions"`
	Insertions    int        `json:"insertions"`
	Deletions     int        `json:"deletions"`
	Distance      int        `json:"edit_distance"`
	Spans         []EditSpan `json:"spans"`
}

// Utterance is a synthesized unit of forced alignment. From/To index the
// flattened candidate word sequence. Tokens holds one normalized token per
// word in that range; an empty token marks a word with nothing to align.
type Utterance struct {
	ID             string   `json:"id"`
	Speaker        string   `json:"speaker"`
	Section        int      `json:"section"`
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
	HasBounds      bool     `json:"has_bounds"`
	From           int      `json:"from"`
	To             int      `json:"to"`
	Text           string   `json:"text"`
	Tokens         []string `json:"tokens"`
	Anchors        []int    `json:"anchors,omitempty"`
	SourceSegments []string `json:"source_segments,omitempty"`
}

func (u Utterance) Duration() float64 { return u.End - u.Start }

// Timing is one aligner word span in absolute seconds.
type Timing struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Word sources recorded on merged words.
const (
	SourceAnchor    = "anchor"
	SourceReference = "reference"
	SourceAligned   = "aligned"
	SourceFallback  = "fallback"
	SourceUnaligned = "unaligned"
)

type AlignedUtterance struct {
	Utterance
	Words   []Word `json:"words"`
	Failed  bool   `json:"failed,omitempty"`
	Repairs int    `json:"repairs,omitempty"`
}

type MergeStats struct {
	AnchoredWords    int `json:"anchored_words"`
	ReferenceWords   int `json:"reference_fallback_words"`
	AlignedWords     int `json:"aligned_words"`
	FallbackWords    int `json:"fallback_words"`
	UnalignedWords   int `json:"unaligned_words"`
	LowConfidence    int `json:"low_confidence_words"`
	Repairs          int `json:"monotonicity_repairs"`
	FailedUtterances int `json:"failed_utterances"`
}

type AlignmentResult struct {
	Utterances []AlignedUtterance `json:"utterances"`
	Warnings   []string           `json:"warnings,omitempty"`
	Stats      MergeStats         `json:"stats"`
}

// Report is the diagnostic summary written as alignment_confidence.json.
type Report struct {
	ReferenceWords          int        `json:"reference_words"`
	CandidateWords          int        `json:"candidate_words"`
	AnchorCount             int        `json:"anchor_count"`
	HighConfidenceCount     int        `json:"high_confidence_anchor_count"`
	AnchorRatio             float64    `json:"anchor_ratio"`
	RecommendedForAnchoring bool       `json:"recommended_for_anchoring"`
	ConfidenceThreshold     float64    `json:"confidence_threshold"`
	AnchoringUsed           bool       `json:"anchoring_used"`
	Edits                   EditReport `json:"edit_report"`
	Utterances              int        `json:"utterances"`
	Merge                   MergeStats `json:"merge"`
	Warnings                []string   `json:"warnings,omitempty"`
}

type Manifest struct {
	Candidate string   `json:"candidate"`
	Reference string   `json:"reference,omitempty"`
	Audio     string   `json:"audio,omitempty"`
	Files     []string `json:"files"`
}
