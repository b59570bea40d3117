// Package export serializes resolutions to the supported output
// formats: CSV rows, the entity-fishing evaluation-corpus XML shape,
// and indented JSON.
package export

import (
	"fmt"
	"os"
	"strings"
)

// DefaultProject names the XML corpus root when the caller gives none.
const DefaultProject = "my_project"

// Format identifies an output serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xml":
		return FormatXML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want csv, xml or json)", s)
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// SerializationError reports content that cannot be represented in the
// requested format. No output file is written when it occurs.
type SerializationError struct {
	Format Format
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s output: %s", e.Format, e.Reason)
}

// writeFileAtomic writes via a temp file and rename so readers never
// observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming %s: %w", tempPath, err)
	}
	return nil
}
