package wtsv

import (
	"fmt"
	"os"
	"strings"

	"github.com/Lucaterre/tsvlink/pkg/schema"
	"github.com/Lucaterre/tsvlink/pkg/types"
)

// Render serializes a document to WebAnno TSV 3.2 text. The header is
// rebuilt from the schema, span tags are regenerated from span order, and
// stacked cells follow span order, so repeated renders of one document are
// byte-identical and a document produced by Parse re-parses structurally
// equal. The document itself is never mutated.
func Render(doc *types.Document, sch *schema.Schema) ([]byte, error) {
	if sch == nil {
		def, err := schema.Default()
		if err != nil {
			return nil, err
		}
		sch = def
	}
	entityLayer := ""
	if entity, ok := sch.EntityLayer(); ok {
		entityLayer = entity.Name
	}

	tags := canonicalTags(doc.Spans)

	var b strings.Builder
	b.WriteString(FormatDecl)
	b.WriteByte('\n')
	for _, layer := range sch.Layers {
		b.WriteString(spanLayerPrefix)
		b.WriteString(layer.Name)
		for _, f := range layer.Features {
			b.WriteByte('|')
			b.WriteString(f.Name)
		}
		b.WriteByte('\n')
	}

	for si := range doc.Sentences {
		sent := &doc.Sentences[si]
		b.WriteByte('\n')
		for _, part := range strings.Split(sent.Text, "\n") {
			b.WriteString(textPrefix)
			b.WriteString(escapeText(part))
			b.WriteByte('\n')
		}

		cover, err := coveringSpans(doc, sent)
		if err != nil {
			return nil, err
		}

		for ti := range sent.Tokens {
			tok := &sent.Tokens[ti]
			fmt.Fprintf(&b, "%s\t%d-%d\t%s\t", tok.ID(), tok.Offset.Start, tok.Offset.End, escapeText(tok.Text))
			for _, layer := range sch.Layers {
				isEntity := layer.Name == entityLayer
				for _, f := range layer.Features {
					b.WriteString(renderCell(doc, isEntity, f.Kind, cover[tok.Index], tags))
					b.WriteByte('\t')
				}
			}
			b.WriteByte('\n')
		}
	}

	return []byte(b.String()), nil
}

// WriteFile renders the document and writes it to path.
func WriteFile(path string, doc *types.Document, sch *schema.Schema) error {
	data, err := Render(doc, sch)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// coveringSpans maps each token index of the sentence to the document
// span indices covering it, in span order.
func coveringSpans(doc *types.Document, sent *types.Sentence) (map[int][]int, error) {
	cover := make(map[int][]int)
	for i := range doc.Spans {
		sp := &doc.Spans[i]
		if sp.Sentence != sent.Index {
			continue
		}
		if len(sp.Segments) == 0 {
			return nil, fmt.Errorf("span %d in sentence %d has no segments", i, sp.Sentence)
		}
		for _, seg := range sp.Segments {
			if seg.Start < 1 || seg.Start > seg.End || seg.End > len(sent.Tokens) {
				return nil, fmt.Errorf("span segment %s out of range in sentence %d", seg, sp.Sentence)
			}
			for t := seg.Start; t <= seg.End; t++ {
				cover[t] = append(cover[t], i)
			}
		}
	}
	return cover, nil
}

// renderCell emits one annotation cell: the stacked entries of the spans
// covering the token for the entity layer, "_" everywhere else. A span
// contributes its label or identifier depending on the feature kind, "*"
// when the value is empty, suffixed with its tag when it has one.
func renderCell(doc *types.Document, isEntity bool, kind schema.FeatureKind, spanIdxs []int, tags []int) string {
	if !isEntity || len(spanIdxs) == 0 {
		return noValue
	}
	parts := make([]string, 0, len(spanIdxs))
	for _, si := range spanIdxs {
		sp := &doc.Spans[si]
		var v string
		switch kind {
		case schema.KindLabel:
			v = sp.Label
		case schema.KindIdentifier:
			v = sp.Identifier
		}
		if v == "" {
			v = valuelessFeature
		}
		if tags[si] > 0 {
			v = fmt.Sprintf("%s[%d]", v, tags[si])
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "|")
}
