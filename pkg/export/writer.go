package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lucaterre/tsvlink/pkg/types"
)

// Writer serializes resolution sets into an output directory, one file
// per document and format.
type Writer struct {
	// OutDir is created on first write if missing.
	OutDir string

	// Project names the XML corpus root element. Empty means
	// DefaultProject.
	Project string
}

// Write serializes rows for the document stem and returns the path of
// the written file.
func (w *Writer) Write(f Format, stem string, rows []types.Resolution) (string, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatCSV:
		data, err = CSV(rows)
	case FormatXML:
		project := w.Project
		if project == "" {
			project = DefaultProject
		}
		data, err = XML(rows, stem, project)
	case FormatJSON:
		data, err = JSON(rows)
	default:
		err = fmt.Errorf("unknown output format %q", f)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.OutDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(w.OutDir, stem+"."+f.Ext())
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
