//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertIntegration_CSV(t *testing.T) {
	bin := buildBinary(t)
	stub := stubFishing(t)

	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte(noticeTSV), 0644))
	outDir := filepath.Join(tmpDir, "out")

	cmd := exec.Command(bin, "convert", tsvPath,
		"--api-base", stub.URL,
		"--out-dir", outDir,
		"--format", "csv",
		"--color", "never")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "convert failed: %s", string(output))

	assert.Contains(t, string(output), "1/2 resolved")
	assert.Contains(t, string(output), "Converted 1 documents")

	data, err := os.ReadFile(filepath.Join(outDir, "notice.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Barack Obama")
	assert.Contains(t, string(data), "Q76")
}

func TestConvertIntegration_DryRun(t *testing.T) {
	bin := buildBinary(t)

	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte(noticeTSV), 0644))

	cmd := exec.Command(bin, "convert", tsvPath, "--dry-run", "--color", "never")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "dry run failed: %s", string(output))

	assert.Contains(t, string(output), "Validated 1 documents, 2 spans")
}

func TestCheckIntegration_RoundTrip(t *testing.T) {
	bin := buildBinary(t)

	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "notice.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte(noticeTSV), 0644))

	cmd := exec.Command(bin, "check", tsvPath)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "check failed: %s", string(output))

	assert.Contains(t, string(output), "round-trip ok")
	assert.Contains(t, string(output), "label PERSON")
}

func TestCheckIntegration_Malformed(t *testing.T) {
	bin := buildBinary(t)

	tmpDir := t.TempDir()
	tsvPath := filepath.Join(tmpDir, "bad.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte("not a webanno file\n"), 0644))

	cmd := exec.Command(bin, "check", tsvPath)
	output, err := cmd.CombinedOutput()
	assert.Error(t, err, "check should fail on a malformed file: %s", string(output))
}
