package wtsv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Lucaterre/tsvlink/pkg/schema"
	"github.com/Lucaterre/tsvlink/pkg/types"
)

// Parse parses WebAnno TSV 3.2 text into a Document, validating the
// structural invariants of the format: header declarations against the
// schema, monotonically increasing non-overlapping token offsets, strictly
// increasing sentence indices, consistent column counts, and token text
// agreeing with the sentence text at its offsets. A nil schema means the
// builtin default.
//
// Span disambiguation tags are renumbered 1..k in reading order, so the
// returned document is canonical: rendering it reproduces the same tags.
func Parse(data []byte, sch *schema.Schema) (*types.Document, error) {
	if sch == nil {
		def, err := schema.Default()
		if err != nil {
			return nil, err
		}
		sch = def
	}

	p := &parser{
		sch:        sch,
		lines:      strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"),
		labelField: -1,
		identField: -1,
		doc:        &types.Document{},
	}
	if entity, ok := sch.EntityLayer(); ok {
		p.entityLayer = entity.Name
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	if err := p.parseBlocks(); err != nil {
		return nil, err
	}

	tags := canonicalTags(p.doc.Spans)
	for i := range p.doc.Spans {
		p.doc.Spans[i].Tag = tags[i]
	}
	return p.doc, nil
}

// ParseFile reads and parses one WebAnno TSV file. Input is UTF-8 with an
// optional byte order mark. The document ID is the file name stem.
func ParseFile(path string, sch *schema.Schema) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	decoded, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	doc, err := Parse(decoded, sch)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.ID = Stem(path)
	return doc, nil
}

// Stem returns the base name of path without its extension, the id under
// which converted output for the file is written.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type parser struct {
	sch         *schema.Schema
	entityLayer string
	lines       []string
	pos         int

	features   int // declared feature columns across all layers
	labelField int // field index of the entity label column, -1 when undeclared
	identField int // field index of the KB identifier column, -1 when undeclared

	doc          *types.Document
	sb           *sentenceBuilder
	lastSentence int
	lastEnd      int // document-wide high-water offset
}

// sentenceBuilder accumulates one sentence block.
type sentenceBuilder struct {
	line      int // first line of the block
	index     int // bound by the first token row, 0 until then
	textLines []string
	text      string
	ix        *types.U16Index
	begin     int // offset of the first token, rebases file offsets onto text
	tokens    []types.Token
	groups    map[int]*pendingSpan // file tag -> open span
	spans     []*pendingSpan       // reading order
	lastSub   int
	rowBegins int // spans begun at the current token, assigns stack positions
}

// pendingSpan is a span under construction, still keyed by file tags and
// token index lists.
type pendingSpan struct {
	line   int
	label  string
	ident  string
	tokens []int // ascending, deduplicated
	stack  int
	tagged bool
}

func (p *parser) parseHeader() error {
	if len(p.lines) == 0 || p.lines[0] != FormatDecl {
		return formatErrf(1, "first line must be %q", FormatDecl)
	}
	p.pos = 1

	seen := make(map[string]bool)
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if line == "" {
			p.pos++
			return nil
		}
		lineNo := p.pos + 1
		switch {
		case strings.HasPrefix(line, spanLayerPrefix):
			if err := p.bindSpanLayer(strings.TrimPrefix(line, spanLayerPrefix), seen, lineNo); err != nil {
				return err
			}
		case strings.HasPrefix(line, chainLayerPrefix):
			return formatErrf(lineNo, "chain layers are not supported")
		case strings.HasPrefix(line, relationLayerPrefix):
			return formatErrf(lineNo, "relation layers are not supported")
		default:
			return formatErrf(lineNo, "unexpected header line %q", line)
		}
		p.pos++
	}
	return nil
}

// bindSpanLayer maps one #T_SP declaration onto token line columns. Layers
// and features the schema does not know are accepted and their columns
// ignored; only the entity layer's label and identifier features bind.
func (p *parser) bindSpanLayer(decl string, seen map[string]bool, lineNo int) error {
	parts := strings.Split(decl, "|")
	name := parts[0]
	if name == "" {
		return formatErrf(lineNo, "span layer declaration without a type name")
	}
	if seen[name] {
		return formatErrf(lineNo, "layer %q declared twice", name)
	}
	seen[name] = true

	layer, inSchema := p.sch.LayerByName(name)
	feats := parts[1:]
	if len(feats) == 0 {
		// a feature-less span layer still occupies one column
		p.features++
		return nil
	}
	for _, fname := range feats {
		field := 3 + p.features
		p.features++
		if !inSchema || name != p.entityLayer {
			continue
		}
		for _, f := range layer.Features {
			if f.Name != fname {
				continue
			}
			switch f.Kind {
			case schema.KindLabel:
				p.labelField = field
			case schema.KindIdentifier:
				if p.identField < 0 {
					p.identField = field
				}
			}
			break
		}
	}
	return nil
}

func (p *parser) parseBlocks() error {
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		lineNo := p.pos + 1
		switch {
		case line == "":
			if err := p.endSentence(); err != nil {
				return err
			}
		case strings.HasPrefix(line, textPrefix):
			if p.sb != nil && len(p.sb.tokens) > 0 {
				return formatErrf(lineNo, "sentence text after token lines")
			}
			if p.sb == nil {
				p.sb = &sentenceBuilder{line: lineNo, groups: make(map[int]*pendingSpan)}
			}
			p.sb.textLines = append(p.sb.textLines, unescapeText(strings.TrimPrefix(line, textPrefix)))
		case strings.HasPrefix(line, "#"):
			return formatErrf(lineNo, "unexpected comment line %q", line)
		default:
			if p.sb == nil {
				return formatErrf(lineNo, "token line outside a sentence block")
			}
			if err := p.parseTokenLine(line, lineNo); err != nil {
				return err
			}
		}
		p.pos++
	}
	return p.endSentence()
}

func (p *parser) parseTokenLine(line string, lineNo int) error {
	fields := strings.Split(line, "\t")
	want := 3 + p.features
	if len(fields) == want+1 && fields[want] == "" {
		fields = fields[:want] // INCEpTION terminates token lines with a tab
	}
	if len(fields) != want {
		return formatErrf(lineNo, "inconsistent column count: got %d, want %d", len(fields), want)
	}

	sentIdx, tokIdx, subIdx, err := parseRowID(fields[0])
	if err != nil {
		return formatErrf(lineNo, "malformed token id %q", fields[0])
	}
	start, end, err := parseOffsets(fields[1])
	if err != nil {
		return formatErrf(lineNo, "malformed offset range %q", fields[1])
	}
	form := unescapeText(fields[2])

	sb := p.sb
	if sb.index == 0 {
		// the first row of a block binds its sentence index
		if sentIdx <= p.lastSentence {
			return formatErrf(lineNo, "sentence index %d is not greater than preceding sentence %d", sentIdx, p.lastSentence)
		}
		sb.index = sentIdx
		sb.text = strings.Join(sb.textLines, "\n")
		sb.ix = types.NewU16Index(sb.text)
	} else if sentIdx != sb.index {
		return formatErrf(lineNo, "token id %q does not belong to sentence %d", fields[0], sb.index)
	}

	if subIdx > 0 {
		return p.parseSubTokenRow(fields, tokIdx, subIdx, start, end, form, lineNo)
	}

	if tokIdx != len(sb.tokens)+1 {
		return formatErrf(lineNo, "token index %d out of sequence, want %d", tokIdx, len(sb.tokens)+1)
	}
	if end <= start {
		return formatErrf(lineNo, "empty or inverted offset range %d-%d", start, end)
	}
	if start < p.lastEnd {
		return formatErrf(lineNo, "token offsets %d-%d overlap the preceding token", start, end)
	}
	if len(sb.tokens) == 0 {
		sb.begin = start
	}

	rel := types.OffsetSpan{Start: start - sb.begin, End: end - sb.begin}
	text, ok := sb.ix.Slice(rel)
	if !ok {
		return formatErrf(lineNo, "offsets %d-%d fall outside the sentence text", start, end)
	}
	if text != form {
		return formatErrf(lineNo, "token text %q disagrees with sentence text %q at offsets %d-%d", form, text, start, end)
	}

	p.lastEnd = end
	sb.tokens = append(sb.tokens, types.Token{
		Sentence: sb.index,
		Index:    tokIdx,
		Offset:   types.OffsetSpan{Start: start, End: end},
		Text:     form,
	})
	sb.lastSub = 0
	sb.rowBegins = 0

	return p.attachEntries(fields, tokIdx, lineNo, false, start)
}

// parseSubTokenRow validates a sub-token row (id like "3-2.1") and folds
// its annotations into the covering token. Sub-token rows do not become
// tokens of the model.
func (p *parser) parseSubTokenRow(fields []string, tokIdx, subIdx, start, end int, form string, lineNo int) error {
	sb := p.sb
	if len(sb.tokens) == 0 {
		return formatErrf(lineNo, "sub-token row before any token in sentence %d", sb.index)
	}
	covering := sb.tokens[len(sb.tokens)-1]
	if tokIdx != covering.Index {
		return formatErrf(lineNo, "sub-token %s does not follow its covering token %s", fields[0], covering.ID())
	}
	if subIdx != sb.lastSub+1 {
		return formatErrf(lineNo, "sub-token index %d out of sequence, want %d", subIdx, sb.lastSub+1)
	}
	if end <= start || start < covering.Offset.Start || end > covering.Offset.End {
		return formatErrf(lineNo, "sub-token offsets %d-%d fall outside token %s (%d-%d)",
			start, end, covering.ID(), covering.Offset.Start, covering.Offset.End)
	}

	rel := types.OffsetSpan{Start: start - sb.begin, End: end - sb.begin}
	text, ok := sb.ix.Slice(rel)
	if !ok {
		return formatErrf(lineNo, "offsets %d-%d fall outside the sentence text", start, end)
	}
	if text != form {
		return formatErrf(lineNo, "sub-token text %q disagrees with sentence text %q at offsets %d-%d", form, text, start, end)
	}

	sb.lastSub = subIdx
	return p.attachEntries(fields, covering.Index, lineNo, true, start)
}

// attachEntries reads the entity layer cells of one row and attaches their
// annotations to the token with index tok. Tagged entries join or open the
// span group for their tag; untagged entries open single-token spans.
// INCEpTION repeats the annotation of a leading sub-token on the covering
// token row; the duplicate is folded into one span.
func (p *parser) attachEntries(fields []string, tok, lineNo int, sub bool, rowStart int) error {
	if p.labelField < 0 {
		return nil
	}
	labels, err := parseCell(fields[p.labelField], lineNo)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return nil
	}
	var idents []cellEntry
	if p.identField >= 0 {
		if idents, err = parseCell(fields[p.identField], lineNo); err != nil {
			return err
		}
	}

	sb := p.sb
	leading := sub && rowStart == sb.tokens[tok-1].Offset.Start

	for i, e := range labels {
		ident := pairedIdentifier(idents, i, e.tag)

		if e.tag > 0 {
			g := sb.groups[e.tag]
			if g == nil {
				g = &pendingSpan{line: lineNo, label: e.value, ident: ident, tagged: true, stack: sb.rowBegins}
				g.tokens = append(g.tokens, tok)
				sb.rowBegins++
				sb.groups[e.tag] = g
				sb.spans = append(sb.spans, g)
				continue
			}
			if g.label != e.value {
				return formatErrf(lineNo, "span tag %d reused with conflicting labels %q and %q", e.tag, g.label, e.value)
			}
			if g.tokens[len(g.tokens)-1] != tok {
				g.tokens = append(g.tokens, tok)
			}
			if g.ident == "" {
				g.ident = ident
			}
			continue
		}

		if leading && sb.mergeLeadingDuplicate(tok, e.value, ident) {
			continue
		}
		ps := &pendingSpan{line: lineNo, label: e.value, ident: ident, stack: sb.rowBegins}
		ps.tokens = append(ps.tokens, tok)
		sb.rowBegins++
		sb.spans = append(sb.spans, ps)
	}
	return nil
}

// mergeLeadingDuplicate looks for an untagged single-token span already
// opened on tok with the same label and merges the sub-token's annotation
// into it. Reports whether a duplicate was found.
func (sb *sentenceBuilder) mergeLeadingDuplicate(tok int, label, ident string) bool {
	for i := len(sb.spans) - 1; i >= 0; i-- {
		ps := sb.spans[i]
		if ps.tokens[len(ps.tokens)-1] < tok {
			break
		}
		if ps.tagged || len(ps.tokens) != 1 || ps.tokens[0] != tok || ps.label != label {
			continue
		}
		if ps.ident == "" {
			ps.ident = ident
		}
		return true
	}
	return false
}

// endSentence finalizes the current block: the sentence joins the document
// and pending spans become model spans, with labels checked against the
// schema tagset.
func (p *parser) endSentence() error {
	sb := p.sb
	if sb == nil {
		return nil
	}
	p.sb = nil

	if len(sb.tokens) == 0 {
		return formatErrf(sb.line, "sentence block has no token lines")
	}
	p.lastSentence = sb.index
	p.doc.Sentences = append(p.doc.Sentences, types.Sentence{
		Index:  sb.index,
		Text:   sb.text,
		Tokens: sb.tokens,
	})

	for _, ps := range sb.spans {
		sentinel := ps.label == ""
		if !sentinel && !p.sch.Contains(ps.label) {
			if !p.sch.Lenient {
				ulErr := &schema.UnknownLabelError{Label: ps.label, Schema: p.sch.Name}
				return &FormatError{Line: ps.line, Reason: ulErr.Error(), Err: ulErr}
			}
			sentinel = true
		}
		p.doc.Spans = append(p.doc.Spans, types.Span{
			Sentence:   sb.index,
			Label:      ps.label,
			Stack:      ps.stack,
			Segments:   toSegments(ps.tokens),
			Identifier: ps.ident,
			Sentinel:   sentinel,
		})
	}
	return nil
}

// cellEntry is one pipe-separated entry of an annotation cell: its value
// (empty for the valueless "*" marker) and its bracketed span tag, 0 when
// untagged.
type cellEntry struct {
	value string
	tag   int
}

// parseCell splits an annotation cell into stacked entries. "_" means no
// annotation and yields no entries.
func parseCell(cell string, lineNo int) ([]cellEntry, error) {
	if cell == noValue {
		return nil, nil
	}
	if cell == "" {
		return nil, formatErrf(lineNo, "empty annotation cell")
	}
	parts := strings.Split(cell, "|")
	entries := make([]cellEntry, 0, len(parts))
	for _, part := range parts {
		value, tag, err := splitTag(part, lineNo)
		if err != nil {
			return nil, err
		}
		if value == valuelessFeature {
			value = ""
		}
		entries = append(entries, cellEntry{value: value, tag: tag})
	}
	return entries, nil
}

// splitTag strips a trailing bracketed span tag from a cell entry.
func splitTag(part string, lineNo int) (string, int, error) {
	if strings.HasSuffix(part, "]") {
		i := strings.LastIndex(part, "[")
		if i < 0 {
			return "", 0, formatErrf(lineNo, "annotation %q closes a span tag it never opened", part)
		}
		tag, err := strconv.Atoi(part[i+1 : len(part)-1])
		if err != nil || tag < 1 {
			return "", 0, formatErrf(lineNo, "malformed span tag in %q", part)
		}
		return part[:i], tag, nil
	}
	if strings.Contains(part, "[") {
		return "", 0, formatErrf(lineNo, "unterminated span tag in %q", part)
	}
	return part, 0, nil
}

// pairedIdentifier finds the identifier cell entry belonging to a label
// entry: by shared tag for tagged spans, by cell position for untagged
// ones.
func pairedIdentifier(idents []cellEntry, pos, tag int) string {
	if tag > 0 {
		for _, e := range idents {
			if e.tag == tag {
				return reduceIdentifier(e.value)
			}
		}
		return ""
	}
	if pos < len(idents) && idents[pos].tag == 0 {
		return reduceIdentifier(idents[pos].value)
	}
	return ""
}

var wikidataIRI = regexp.MustCompile(`^https?://.+/(Q\d+)$`)

// reduceIdentifier collapses a Wikidata IRI to its bare Q-id. Anything
// else passes through untouched.
func reduceIdentifier(v string) string {
	if m := wikidataIRI.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// toSegments folds an ascending token index list into inclusive runs.
func toSegments(tokens []int) []types.Segment {
	var segs []types.Segment
	for _, t := range tokens {
		if n := len(segs); n > 0 && segs[n-1].End == t-1 {
			segs[n-1].End = t
			continue
		}
		segs = append(segs, types.Segment{Start: t, End: t})
	}
	return segs
}

func parseRowID(id string) (int, int, int, error) {
	sentPart, rest, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("no sentence-token separator in %q", id)
	}
	tokPart, subPart, hasSub := strings.Cut(rest, ".")
	sent, err := atoiStrict(sentPart)
	if err != nil {
		return 0, 0, 0, err
	}
	tok, err := atoiStrict(tokPart)
	if err != nil {
		return 0, 0, 0, err
	}
	sub := 0
	if hasSub {
		if sub, err = atoiStrict(subPart); err != nil {
			return 0, 0, 0, err
		}
		if sub < 1 {
			return 0, 0, 0, fmt.Errorf("sub-token index %d in %q", sub, id)
		}
	}
	return sent, tok, sub, nil
}

func parseOffsets(col string) (int, int, error) {
	startPart, endPart, ok := strings.Cut(col, "-")
	if !ok {
		return 0, 0, fmt.Errorf("no start-end separator in %q", col)
	}
	start, err := atoiStrict(startPart)
	if err != nil {
		return 0, 0, err
	}
	end, err := atoiStrict(endPart)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// atoiStrict parses a plain non-negative decimal: no sign, no spaces.
func atoiStrict(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	return strconv.Atoi(s)
}
