// Package dataset decodes uploaded CSV bytes into the ordered header/row form
// the ingestion engine consumes. It is the only place raw bytes are touched;
// downstream stages see resolved headers and aligned row values.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"snapload/internal/header"
)

// Dataset is a decoded tabular export.
//
// Rows are aligned positionally with Headers: Rows[i][j] is the value of
// Headers[j] in row i, either a string or nil. Empty cells are nil before
// they ever reach the mapper; downstream code never sees "".
type Dataset struct {
	Headers []header.Normalized
	Rows    [][]any
}

// Empty reports whether the dataset carries no data rows.
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// SniffDelimiter picks the column separator for a CSV export.
//
// Heuristic carried over from the legacy uploader: tab wins when tabs appear
// without commas, semicolon wins when it outnumbers commas, comma otherwise.
func SniffDelimiter(content []byte) rune {
	hasTab := bytes.ContainsRune(content, '\t')
	commas := bytes.Count(content, []byte(","))
	semis := bytes.Count(content, []byte(";"))

	switch {
	case hasTab && commas == 0:
		return '\t'
	case semis > 0 && semis > commas:
		return ';'
	default:
		return ','
	}
}

// Decode parses CSV bytes into a Dataset.
//
// This is a two-pass parse in spirit: the header record is read and resolved
// into unique parse-time keys first, and only then are data rows read against
// that column list. That ordering is what keeps duplicate headers alive as
// distinct columns.
//
// Row shaping matches the source system's exports: short rows are padded with
// nils, long rows are truncated to the header width.
func Decode(content []byte) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = SniffDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rawHeader, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("decode csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("decode csv: read header: %w", err)
	}

	// Excel exports prefix the first cell with a UTF-8 BOM.
	if len(rawHeader) > 0 {
		rawHeader[0] = strings.TrimPrefix(rawHeader[0], "\ufeff")
	}

	headers := header.Resolve(rawHeader)

	ds := &Dataset{Headers: headers}
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("decode csv: line %d: %w", line, err)
		}

		row := make([]any, len(headers))
		for j := range headers {
			if j >= len(rec) {
				continue // short row: pad with nil
			}
			v := strings.TrimSpace(rec[j])
			if v == "" {
				continue
			}
			row[j] = v
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}
