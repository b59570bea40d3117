package types

import (
	"fmt"
	"strings"
)

// Document is one parsed WebAnno TSV file: ordered sentences plus the
// ordered sequence of all annotation spans. Built once by the reader and
// never structurally mutated afterwards; the merge stage only derives
// Resolutions from it.
type Document struct {
	ID        string // input file stem, or a caller-assigned id
	Sentences []Sentence
	Spans     []Span
}

// SentenceByIndex returns the sentence with the given 1-based index.
// Indices are strictly increasing but need not be consecutive, so the
// direct slot is tried first and a scan covers files with gaps.
func (d *Document) SentenceByIndex(idx int) (*Sentence, bool) {
	if idx >= 1 && idx <= len(d.Sentences) && d.Sentences[idx-1].Index == idx {
		return &d.Sentences[idx-1], true
	}
	for i := range d.Sentences {
		if d.Sentences[i].Index == idx {
			return &d.Sentences[i], true
		}
	}
	return nil, false
}

// SpanSurface reconstructs the surface text of a span from its sentence.
// Within a segment the original spacing is preserved (the text is sliced
// straight out of the sentence); non-adjacent segments are joined with a
// single space.
func (d *Document) SpanSurface(sp *Span) (string, error) {
	sent, ok := d.SentenceByIndex(sp.Sentence)
	if !ok {
		return "", fmt.Errorf("span references unknown sentence %d", sp.Sentence)
	}
	ix := NewU16Index(sent.Text)
	begin := sent.Begin()

	parts := make([]string, 0, len(sp.Segments))
	for _, seg := range sp.Segments {
		first, ok := sent.Token(seg.Start)
		if !ok {
			return "", fmt.Errorf("segment %s out of range in sentence %d", seg, sp.Sentence)
		}
		last, ok := sent.Token(seg.End)
		if !ok {
			return "", fmt.Errorf("segment %s out of range in sentence %d", seg, sp.Sentence)
		}
		rel := OffsetSpan{Start: first.Offset.Start - begin, End: last.Offset.End - begin}
		text, ok := ix.Slice(rel)
		if !ok {
			return "", fmt.Errorf("offsets %d-%d do not address sentence %d", rel.Start, rel.End, sp.Sentence)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " "), nil
}

// SpanRuneOffsets returns sentence-relative rune offsets for a span: the
// start of its first segment and the end of its last. These are the offsets
// evaluation pipelines consume, independent of the UTF-16 file offsets.
func (d *Document) SpanRuneOffsets(sp *Span) (OffsetSpan, error) {
	sent, ok := d.SentenceByIndex(sp.Sentence)
	if !ok {
		return OffsetSpan{}, fmt.Errorf("span references unknown sentence %d", sp.Sentence)
	}
	ix := NewU16Index(sent.Text)
	begin := sent.Begin()

	first, ok := sent.Token(sp.Segments[0].Start)
	if !ok {
		return OffsetSpan{}, fmt.Errorf("segment %s out of range in sentence %d", sp.Segments[0], sp.Sentence)
	}
	last, ok := sent.Token(sp.Segments[len(sp.Segments)-1].End)
	if !ok {
		return OffsetSpan{}, fmt.Errorf("segment %s out of range in sentence %d", sp.Segments[len(sp.Segments)-1], sp.Sentence)
	}
	rel := OffsetSpan{Start: first.Offset.Start - begin, End: last.Offset.End - begin}
	start, end, ok := ix.RuneSpan(rel)
	if !ok {
		return OffsetSpan{}, fmt.Errorf("offsets %d-%d do not address sentence %d", rel.Start, rel.End, sp.Sentence)
	}
	return OffsetSpan{Start: start, End: end}, nil
}

// Equal reports structural equality of two documents: same sentences,
// tokens, spans, labels and stacking order. The ID is identity metadata and
// does not participate.
func (d *Document) Equal(o *Document) bool {
	if len(d.Sentences) != len(o.Sentences) || len(d.Spans) != len(o.Spans) {
		return false
	}
	for i := range d.Sentences {
		if !d.Sentences[i].Equal(&o.Sentences[i]) {
			return false
		}
	}
	for i := range d.Spans {
		if !d.Spans[i].Equal(&o.Spans[i]) {
			return false
		}
	}
	return true
}
