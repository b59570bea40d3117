package types

// Resolution is the disambiguation outcome for one span: the identifier the
// linking service settled on (or none), plus everything a serializer needs
// to emit the record without walking the Document again. Created by the
// merge stage in span order, one per non-sentinel span, immutable afterward.
type Resolution struct {
	SpanIndex  int     `json:"-"`                 // index into Document.Spans
	Document   string  `json:"document"`          // owning document id
	Sentence   int     `json:"sentence"`          // 1-based sentence index
	Annotation int     `json:"annotation"`        // 0-based ordinal within the sentence
	TokenRange string  `json:"tokens"`            // covered token ranges
	Surface    string  `json:"surface"`           // mention text
	Label      string  `json:"label"`             // entity type
	Identifier string  `json:"identifier"`        // resolved KB id; empty = no match
	WikidataID string  `json:"wikidata_id,omitempty"` // id carried by the input file, if any
	PageID     string  `json:"page_id,omitempty"` // encyclopedia page id from the service
	Name       string  `json:"name,omitempty"`    // preferred term from the service
	Source     string  `json:"source,omitempty"`  // resolving backend tag
	Confidence float64 `json:"confidence,omitempty"`
	Start      int     `json:"start"`  // sentence-relative rune offset
	End        int     `json:"end"`    // sentence-relative rune offset, half-open
	Length     int     `json:"length"` // End - Start
	Context    string  `json:"context,omitempty"` // surrounding sentence text
}

// Resolved reports whether the lookup produced an identifier.
func (r *Resolution) Resolved() bool {
	return r.Identifier != ""
}
