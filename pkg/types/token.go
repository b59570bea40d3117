package types

import "fmt"

// Token is a single token as read from a WebAnno TSV token line.
// Immutable once parsed.
type Token struct {
	Sentence int        // 1-based sentence index within the document
	Index    int        // 1-based token index within the sentence
	Offset   OffsetSpan // document-absolute offsets as recorded in the file
	Text     string
}

// ID renders the WebAnno token identifier, e.g. "3-2".
func (t Token) ID() string {
	return fmt.Sprintf("%d-%d", t.Sentence, t.Index)
}

// Sentence is an ordered run of tokens covered by one #Text block.
type Sentence struct {
	Index  int // 1-based, strictly increasing across the document
	Text   string
	Tokens []Token
}

// Begin returns the document-absolute offset of the sentence's first
// character. WebAnno sentence text starts exactly at the first token.
func (s *Sentence) Begin() int {
	if len(s.Tokens) == 0 {
		return 0
	}
	return s.Tokens[0].Offset.Start
}

// Token returns the 1-based idx token, or false when out of range.
func (s *Sentence) Token(idx int) (Token, bool) {
	if idx < 1 || idx > len(s.Tokens) {
		return Token{}, false
	}
	return s.Tokens[idx-1], true
}

// Equal reports structural equality of two sentences.
func (s *Sentence) Equal(o *Sentence) bool {
	if s.Index != o.Index || s.Text != o.Text || len(s.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range s.Tokens {
		if s.Tokens[i] != o.Tokens[i] {
			return false
		}
	}
	return true
}
