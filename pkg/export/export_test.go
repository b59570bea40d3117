package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lucaterre/tsvlink/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []types.Resolution {
	return []types.Resolution{
		{
			Document: "visit", Sentence: 1, Annotation: 0,
			TokenRange: "1-1..1-2", Surface: "Barack Obama", Label: "PERSON",
			Identifier: "Q76", WikidataID: "Q76", PageID: "534366",
			Name: "Barack Obama", Source: "entity-fishing", Confidence: 1,
			Start: 0, End: 12, Length: 12,
			Context: "Barack Obama visited Paris .",
		},
		{
			Document: "visit", Sentence: 1, Annotation: 1,
			TokenRange: "1-4..1-4", Surface: "Paris", Label: "LOCATION",
			Start: 21, End: 26, Length: 5,
			Context: "Barack Obama visited Paris .",
		},
	}
}

func TestCSV(t *testing.T) {
	out, err := CSV(sampleRows())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one record per resolution")

	assert.Equal(t, csvHeader, records[0])

	obama := records[1]
	assert.Equal(t, "visit", obama[0])
	assert.Equal(t, "1", obama[1])
	assert.Equal(t, "0", obama[2])
	assert.Equal(t, "1-1..1-2", obama[3])
	assert.Equal(t, "Barack Obama", obama[4])
	assert.Equal(t, "PERSON", obama[5])
	assert.Equal(t, "Q76", obama[6])
	assert.Equal(t, "Barack Obama", obama[8])
	assert.Equal(t, "12", obama[12])

	paris := records[2]
	assert.Equal(t, "Paris", paris[4])
	assert.Empty(t, paris[6], "unresolved identifier stays empty")
	assert.Empty(t, paris[9])
}

func TestCSV_QuotesAwkwardFields(t *testing.T) {
	rows := sampleRows()[:1]
	rows[0].Context = "He said, \"hello\"\nand left."
	rows[0].Surface = "said, \"hello\""

	out, err := CSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "said, \"hello\"", records[1][4])
	assert.Equal(t, "He said, \"hello\"\nand left.", records[1][13])
}

func TestCSV_Empty(t *testing.T) {
	out, err := CSV(nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "header only")
}

func TestXML(t *testing.T) {
	out, err := XML(sampleRows(), "visit", "clef_hipe")
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, xml.Header))
	assert.Contains(t, s, "<clef_hipe.entityAnnotation>")
	assert.Contains(t, s, `<document docName="visit.txt">`)

	var got xmlCorpus
	require.NoError(t, xml.Unmarshal(out, &got))
	assert.Equal(t, "clef_hipe.entityAnnotation", got.XMLName.Local)
	assert.Equal(t, "visit.txt", got.Document.DocName)
	require.Len(t, got.Document.Annotations, 2)

	obama := got.Document.Annotations[0]
	assert.Equal(t, "Barack Obama", obama.Mention)
	assert.Equal(t, "Barack Obama", obama.WikiName)
	assert.Equal(t, "Q76", obama.WikidataID)
	assert.Equal(t, "534366", obama.WikipediaID)
	assert.Equal(t, 0, obama.Offset)
	assert.Equal(t, 12, obama.Length)
	assert.Equal(t, 1, obama.Sentence)
	assert.Equal(t, "PERSON", obama.Label)

	paris := got.Document.Annotations[1]
	assert.Empty(t, paris.WikidataID)
	assert.Empty(t, paris.WikipediaID)
	assert.Equal(t, 21, paris.Offset)
}

func TestXML_DefaultProject(t *testing.T) {
	out, err := XML(nil, "empty", "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<"+DefaultProject+".entityAnnotation>")
	assert.Contains(t, string(out), `docName="empty.txt"`, "a document with no annotations still appears")
}

func TestXML_EscapesMarkup(t *testing.T) {
	rows := sampleRows()[:1]
	rows[0].Surface = `Smith & Wesson <plc> "quoted"`

	out, err := XML(rows, "doc", "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Smith &amp; Wesson &lt;plc&gt;")

	var got xmlCorpus
	require.NoError(t, xml.Unmarshal(out, &got))
	assert.Equal(t, `Smith & Wesson <plc> "quoted"`, got.Document.Annotations[0].Mention)
}

func TestXML_RejectsControlCharacters(t *testing.T) {
	rows := sampleRows()[:1]
	rows[0].Surface = "bad\x01char"

	_, err := XML(rows, "doc", "")
	require.Error(t, err)

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, FormatXML, serr.Format)
	assert.Contains(t, serr.Reason, "U+0001")
}

func TestXML_RejectsBadProjectName(t *testing.T) {
	_, err := XML(nil, "doc", "1 bad name")
	require.Error(t, err)

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Reason, "project name")
}

func TestJSON(t *testing.T) {
	out, err := JSON(sampleRows())
	require.NoError(t, err)

	var got []types.Resolution
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Barack Obama", got[0].Surface)
	assert.Equal(t, "Q76", got[0].Identifier)
	assert.Equal(t, "Paris", got[1].Surface)
	assert.Empty(t, got[1].Identifier)
}

func TestJSON_EmptyIsArray(t *testing.T) {
	out, err := JSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"csv":   FormatCSV,
		"XML":   FormatXML,
		" json": FormatJSON,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutDir: filepath.Join(dir, "out"), Project: "demo"}

	path, err := w.Write(FormatCSV, "visit", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "visit.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, _ := CSV(sampleRows())
	assert.Equal(t, want, data)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful write")
}

func TestWriter_Overwrite(t *testing.T) {
	w := &Writer{OutDir: t.TempDir()}

	path, err := w.Write(FormatJSON, "visit", nil)
	require.NoError(t, err)

	_, err = w.Write(FormatJSON, "visit", sampleRows())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []types.Resolution
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 2)
}

func TestWriter_NoFileOnSerializationError(t *testing.T) {
	w := &Writer{OutDir: t.TempDir()}

	rows := sampleRows()[:1]
	rows[0].Surface = "bad\x01char"

	_, err := w.Write(FormatXML, "visit", rows)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(w.OutDir, "visit.xml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_UnknownFormat(t *testing.T) {
	w := &Writer{OutDir: t.TempDir()}
	_, err := w.Write(Format("yaml"), "visit", nil)
	require.Error(t, err)
}
