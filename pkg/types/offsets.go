package types

import (
	"unicode/utf16"
	"unicode/utf8"
)

// OffsetSpan is a character range [Start, End) - half-open interval.
// Offsets count UTF-16 code units, exactly as WebAnno TSV records them
// (the format inherits Java string indexing from the annotation platform).
type OffsetSpan struct {
	Start int
	End   int
}

// Len returns the number of UTF-16 code units covered by the span.
func (s OffsetSpan) Len() int {
	return s.End - s.Start
}

// U16Index maps UTF-16 code-unit offsets onto a Go (UTF-8) string.
// WebAnno TSV offsets cannot be used to slice Go strings directly once the
// text leaves the BMP; the index converts them to rune and byte positions.
type U16Index struct {
	text string
	// byteStart[i] is the byte offset of the rune that covers UTF-16 unit i.
	// One extra entry holds len(text) so spans ending at EOT resolve.
	byteStart []int
	// runeAt[i] is the rune index of the rune that covers UTF-16 unit i.
	runeAt []int
	len16  int
}

// NewU16Index builds the offset index for text.
func NewU16Index(text string) *U16Index {
	ix := &U16Index{text: text}
	runeIdx := 0
	for byteIdx, r := range text {
		n := len(utf16.Encode([]rune{r}))
		if n < 1 {
			// Invalid rune for UTF-16 (lone surrogate); count it as one unit
			// so the index stays aligned with what the platform would emit.
			n = 1
		}
		for i := 0; i < n; i++ {
			ix.byteStart = append(ix.byteStart, byteIdx)
			ix.runeAt = append(ix.runeAt, runeIdx)
		}
		runeIdx++
	}
	ix.len16 = len(ix.byteStart)
	ix.byteStart = append(ix.byteStart, len(text))
	ix.runeAt = append(ix.runeAt, runeIdx)
	return ix
}

// Len16 returns the UTF-16 length of the indexed text.
func (ix *U16Index) Len16() int {
	return ix.len16
}

// Slice returns the substring addressed by a UTF-16 span.
// The second return is false when the span is out of range or splits a
// surrogate pair.
func (ix *U16Index) Slice(s OffsetSpan) (string, bool) {
	if s.Start < 0 || s.End < s.Start || s.End > ix.len16 {
		return "", false
	}
	lo := ix.byteStart[s.Start]
	hi := ix.byteStart[s.End]
	if s.Start < ix.len16 && s.Start > 0 && ix.byteStart[s.Start] == ix.byteStart[s.Start-1] {
		return "", false
	}
	if s.End < ix.len16 && s.End > 0 && ix.byteStart[s.End] == ix.byteStart[s.End-1] {
		return "", false
	}
	return ix.text[lo:hi], true
}

// RuneSpan converts a UTF-16 span to rune offsets into the indexed text.
func (ix *U16Index) RuneSpan(s OffsetSpan) (start, end int, ok bool) {
	if s.Start < 0 || s.End < s.Start || s.End > ix.len16 {
		return 0, 0, false
	}
	return ix.runeAt[s.Start], ix.runeAt[s.End], true
}

// U16Len returns the UTF-16 length of s without building an index.
func U16Len(s string) int {
	n := 0
	for _, r := range s {
		l := len(utf16.Encode([]rune{r}))
		if l < 1 {
			l = 1
		}
		n += l
	}
	return n
}

// RuneLen returns the rune count of s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
