// Package wtsv reads and writes the WebAnno TSV 3.2 interchange format
// exported by the INCEpTION annotation platform.
//
// A file is a header block declaring the annotation layers, followed by
// blank-line-delimited sentence blocks. Each block carries the sentence
// text on #Text= lines and one token per line with tab-separated columns:
// token id, character offsets, surface form, then one column per declared
// layer feature. Offsets are UTF-16 code units (Java string indexing) and
// are preserved verbatim by the model; see pkg/types.
package wtsv

import "strings"

// FormatDecl is the mandatory first line of a WebAnno TSV 3.2 file.
const FormatDecl = "#FORMAT=WebAnno TSV 3.2"

const (
	spanLayerPrefix     = "#T_SP="
	chainLayerPrefix    = "#T_CH="
	relationLayerPrefix = "#T_RL="
	textPrefix          = "#Text="
)

// noValue is the cell placeholder for "no annotation" and valuelessFeature
// the one for "annotated, but this feature has no value".
const (
	noValue          = "_"
	valuelessFeature = "*"
)

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\t", `\t`,
)

// escapeText escapes sentence text and token forms the way INCEpTION
// actually does it: backslash, carriage return and tab. (The platform
// documentation claims more; the exports disagree.)
func escapeText(s string) string {
	return escaper.Replace(s)
}

// unescapeText is the exact inverse of escapeText. Unknown escape pairs
// are passed through untouched.
func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
