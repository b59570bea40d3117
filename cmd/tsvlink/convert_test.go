package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucaterre/tsvlink/pkg/export"
	"github.com/Lucaterre/tsvlink/pkg/linking"
)

const noticeTSV = "#FORMAT=WebAnno TSV 3.2\n" +
	"#T_SP=de.tudarmstadt.ukp.dkpro.core.api.ner.type.NamedEntity|identifier|value\n" +
	"\n" +
	"#Text=Barack Obama visited Paris .\n" +
	"1-1\t0-6\tBarack\tQ76[1]\tPERSON[1]\t\n" +
	"1-2\t7-12\tObama\tQ76[1]\tPERSON[1]\t\n" +
	"1-3\t13-20\tvisited\t_\t_\t\n" +
	"1-4\t21-26\tParis\t*\tLOCATION\t\n" +
	"1-5\t27-28\t.\t_\t_\t\n"

// stubFishing serves a minimal entity-fishing lookalike: Q76 is the only
// known concept and disambiguation never finds anything.
func stubFishing(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/kb/concept/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Q76") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"rawName":"Barack Obama","preferredTerm":"Barack Obama","wikidataId":"Q76","wikipediaExternalRef":534366}`)
	})
	mux.HandleFunc("/disambiguate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"entities":[]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// resetConvertFlags restores every convert flag to its default before a test
// overrides the ones it cares about.
func resetConvertFlags(tmpDir string) {
	convertFormat = "csv"
	convertOutDir = filepath.Join(tmpDir, "out")
	convertProject = export.DefaultProject
	convertLanguage = linking.DefaultLanguage
	convertAPIBase = linking.DefaultBaseURL
	convertSchema = ""
	convertLenient = false
	convertWorkers = 2
	convertTimeout = 5 * time.Second
	convertRetries = 1
	convertCache = ""
	convertDryRun = false
	convertContext = true
	convertColor = "never"
}

func TestRunConvert(t *testing.T) {
	// Create a temporary directory with a test file
	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	err := os.WriteFile(tsvPath, []byte(noticeTSV), 0644)
	require.NoError(t, err)

	stub := stubFishing(t)

	// Create a buffer to capture output
	var buf bytes.Buffer

	// Create a test command with our buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Reset flags for test
	resetConvertFlags(tmpDir)
	convertAPIBase = stub.URL

	// Execute convert command
	err = runConvert(cmd, []string{tsvPath})
	require.NoError(t, err)

	// Verify the summary reports one resolved and one unmatched span
	output := buf.String()
	assert.Contains(t, output, "1/2 resolved")
	assert.Contains(t, output, "Converted 1 documents: 2 spans, 1 resolved, 1 without a match, 0 failed")

	// Verify the CSV output was written
	data, err := os.ReadFile(filepath.Join(tmpDir, "out", "notice.csv"))
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per span")

	assert.Equal(t, "notice", records[1][0])
	assert.Equal(t, "Barack Obama", records[1][4])
	assert.Equal(t, "Q76", records[1][6])
	assert.Empty(t, records[2][6], "unmatched span keeps an empty identifier")
}

func TestRunConvertXML(t *testing.T) {
	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	err := os.WriteFile(tsvPath, []byte(noticeTSV), 0644)
	require.NoError(t, err)

	stub := stubFishing(t)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Reset flags for test
	resetConvertFlags(tmpDir)
	convertAPIBase = stub.URL
	convertFormat = "xml"
	convertProject = "my_project"

	err = runConvert(cmd, []string{tsvPath})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tmpDir, "out", "notice.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<my_project.entityAnnotation>")
	assert.Contains(t, string(data), `docName="notice.txt"`)
	assert.Contains(t, string(data), "<wikidataId>Q76</wikidataId>")
}

func TestRunConvertDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	err := os.WriteFile(tsvPath, []byte(noticeTSV), 0644)
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Reset flags for test - no stub needed, dry run makes no lookups
	resetConvertFlags(tmpDir)
	convertDryRun = true

	err = runConvert(cmd, []string{tsvPath})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "parsed")
	assert.Contains(t, output, "1 sentences, 2 spans")
	assert.Contains(t, output, "Validated 1 documents, 2 spans")

	// Verify nothing was written
	_, err = os.Stat(filepath.Join(tmpDir, "out"))
	assert.True(t, os.IsNotExist(err), "dry run must not create the output directory")
}

func TestRunConvertDirectory(t *testing.T) {
	// A directory target picks up every .tsv beneath it, sorted
	tmpDir := t.TempDir()
	corpus := filepath.Join(tmpDir, "corpus")
	require.NoError(t, os.MkdirAll(filepath.Join(corpus, "nested"), 0755))

	err := os.WriteFile(filepath.Join(corpus, "beta.tsv"), []byte(noticeTSV), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(corpus, "nested", "alpha.tsv"), []byte(noticeTSV), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(corpus, "readme.txt"), []byte("not a tsv"), 0644)
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	resetConvertFlags(tmpDir)
	convertDryRun = true

	err = runConvert(cmd, []string{corpus})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "beta.tsv")
	assert.Contains(t, output, "alpha.tsv")
	assert.NotContains(t, output, "readme.txt")
	assert.Contains(t, output, "Validated 2 documents, 4 spans")
}

func TestRunConvertInvalidTarget(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	resetConvertFlags(t.TempDir())

	// Execute convert command with nonexistent target
	err := runConvert(cmd, []string{"/nonexistent/path"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target does not exist")
}

func TestRunConvertNoInputs(t *testing.T) {
	tmpDir := t.TempDir()
	empty := filepath.Join(tmpDir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0755))

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	resetConvertFlags(tmpDir)

	err := runConvert(cmd, []string{empty})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .tsv files under")
}

func TestRunConvertUnknownFormat(t *testing.T) {
	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	err := os.WriteFile(tsvPath, []byte(noticeTSV), 0644)
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	resetConvertFlags(tmpDir)
	convertFormat = "yaml"

	err = runConvert(cmd, []string{tsvPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
