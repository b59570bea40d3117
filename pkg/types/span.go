package types

import (
	"fmt"
	"strings"
)

// Segment is an inclusive run [Start, End] of 1-based token indices within
// one sentence.
type Segment struct {
	Start int
	End   int
}

func (g Segment) String() string {
	return fmt.Sprintf("%d..%d", g.Start, g.End)
}

// Span is a named-entity annotation covering one or more disjoint token
// ranges of a single sentence, sharing one label and one disambiguation tag.
type Span struct {
	Sentence int    // 1-based index of the owning sentence
	Label    string // entity type, original spelling preserved
	// Tag is the WebAnno disambiguation index shared by all segments of the
	// span, normalized to 1..k in reading order at parse. 0 means the span
	// was a bare single-token annotation with no bracketed tag.
	Tag int
	// Stack is the position of the span inside its pipe-stacked cell,
	// 0-based. Stacked spans on the same tokens keep the order they were
	// read in; the writer re-emits that order.
	Stack    int
	Segments []Segment
	// Identifier is a pre-assigned knowledge-base id carried by the
	// identifier feature column (e.g. a Wikidata Q-id), empty when the cell
	// held no value.
	Identifier string
	// Sentinel marks a span whose label fell outside the schema tagset and
	// was coerced under lenient parsing. Sentinel spans round-trip through
	// the writer but are never sent to the resolver.
	Sentinel bool
}

// Discontinuous reports whether the span covers more than one token run.
func (sp *Span) Discontinuous() bool {
	return len(sp.Segments) > 1
}

// TokenCount returns the number of tokens covered by all segments.
func (sp *Span) TokenCount() int {
	n := 0
	for _, seg := range sp.Segments {
		n += seg.End - seg.Start + 1
	}
	return n
}

// TokenRange renders the covered ranges, e.g. "2-3..2-4,2-7..2-7".
func (sp *Span) TokenRange() string {
	parts := make([]string, len(sp.Segments))
	for i, seg := range sp.Segments {
		parts[i] = fmt.Sprintf("%d-%d..%d-%d", sp.Sentence, seg.Start, sp.Sentence, seg.End)
	}
	return strings.Join(parts, ",")
}

// Equal reports structural equality: same sentence, label, segment layout,
// stacking position, identifier and sentinel state. Tag values are part of
// the canonical model (renumbered at parse) and compare too.
func (sp *Span) Equal(o *Span) bool {
	if sp.Sentence != o.Sentence || sp.Label != o.Label || sp.Tag != o.Tag ||
		sp.Stack != o.Stack || sp.Identifier != o.Identifier || sp.Sentinel != o.Sentinel {
		return false
	}
	if len(sp.Segments) != len(o.Segments) {
		return false
	}
	for i := range sp.Segments {
		if sp.Segments[i] != o.Segments[i] {
			return false
		}
	}
	return true
}
