package export

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/Lucaterre/tsvlink/pkg/types"
)

// csvHeader is the fixed column order of CSV exports.
var csvHeader = []string{
	"document",
	"sentence_index",
	"annotation_index",
	"token_range",
	"surface",
	"label",
	"identifier",
	"wikidata_id",
	"wiki_name",
	"source",
	"offset_start",
	"offset_end",
	"length",
	"sentence",
}

// CSV renders one record per resolution, in input order, preceded by
// the header row. Unresolved fields stay empty.
func CSV(rows []types.Resolution) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)

	if err := w.Write(csvHeader); err != nil {
		return nil, &SerializationError{Format: FormatCSV, Reason: err.Error()}
	}
	for i := range rows {
		r := &rows[i]
		record := []string{
			r.Document,
			strconv.Itoa(r.Sentence),
			strconv.Itoa(r.Annotation),
			r.TokenRange,
			r.Surface,
			r.Label,
			r.Identifier,
			r.WikidataID,
			r.Name,
			r.Source,
			strconv.Itoa(r.Start),
			strconv.Itoa(r.End),
			strconv.Itoa(r.Length),
			r.Context,
		}
		if err := w.Write(record); err != nil {
			return nil, &SerializationError{Format: FormatCSV, Reason: err.Error()}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &SerializationError{Format: FormatCSV, Reason: err.Error()}
	}
	return b.Bytes(), nil
}
