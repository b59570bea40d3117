package export

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/Lucaterre/tsvlink/pkg/types"
)

// xmlElementName constrains the project prefix of the corpus root
// element to something XML accepts.
var xmlElementName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// The evaluation-corpus layout entity-fishing tooling consumes:
// <project.entityAnnotation><document docName="stem.txt"><annotation>…
type xmlCorpus struct {
	XMLName  xml.Name
	Document xmlDocument `xml:"document"`
}

type xmlDocument struct {
	DocName     string          `xml:"docName,attr"`
	Annotations []xmlAnnotation `xml:"annotation"`
}

type xmlAnnotation struct {
	Sentence    int    `xml:"sentence,attr"`
	Label       string `xml:"label,attr,omitempty"`
	Tokens      string `xml:"tokens,attr,omitempty"`
	Mention     string `xml:"mention"`
	WikiName    string `xml:"wikiName"`
	WikidataID  string `xml:"wikidataId"`
	WikipediaID string `xml:"wikipediaId"`
	Offset      int    `xml:"offset"`
	Length      int    `xml:"length"`
}

// XML renders the resolutions of a single document as an
// entity-fishing evaluation corpus. The docName attribute is the input
// stem with a .txt suffix.
func XML(rows []types.Resolution, stem, project string) ([]byte, error) {
	if project == "" {
		project = DefaultProject
	}
	if !xmlElementName.MatchString(project) {
		return nil, &SerializationError{
			Format: FormatXML,
			Reason: fmt.Sprintf("project name %q is not a valid XML element prefix", project),
		}
	}

	docName := stem + ".txt"
	if err := checkXMLText("docName", docName); err != nil {
		return nil, err
	}

	corpus := xmlCorpus{
		XMLName:  xml.Name{Local: project + ".entityAnnotation"},
		Document: xmlDocument{DocName: docName},
	}
	for i := range rows {
		r := &rows[i]
		for _, f := range []struct{ name, value string }{
			{"mention", r.Surface},
			{"wikiName", r.Name},
			{"wikidataId", r.Identifier},
			{"label", r.Label},
			{"tokens", r.TokenRange},
		} {
			if err := checkXMLText(f.name, f.value); err != nil {
				return nil, err
			}
		}
		corpus.Document.Annotations = append(corpus.Document.Annotations, xmlAnnotation{
			Sentence:    r.Sentence,
			Label:       r.Label,
			Tokens:      r.TokenRange,
			Mention:     r.Surface,
			WikiName:    r.Name,
			WikidataID:  r.Identifier,
			WikipediaID: r.PageID,
			Offset:      r.Start,
			Length:      r.Length,
		})
	}

	out, err := xml.MarshalIndent(corpus, "", "  ")
	if err != nil {
		return nil, &SerializationError{Format: FormatXML, Reason: err.Error()}
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// checkXMLText rejects characters XML 1.0 cannot carry, instead of
// letting the encoder silently replace them.
func checkXMLText(field, s string) error {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return &SerializationError{
				Format: FormatXML,
				Reason: fmt.Sprintf("%s contains invalid UTF-8 at byte %d", field, i),
			}
		}
		if !validXMLRune(r) {
			return &SerializationError{
				Format: FormatXML,
				Reason: fmt.Sprintf("%s contains character %U, which XML cannot represent", field, r),
			}
		}
		i += size
	}
	return nil
}

func validXMLRune(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}
