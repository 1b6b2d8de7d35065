package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Rows are positional and follow
// the Headers order, so repeated header labels keep their own columns.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// CSVExporter renders Dataset records into CSV bytes.
//
// QuoteAll forces every field into double quotes with newline-joined rows,
// matching the format the legacy attendance exports were published in.
// Without it the standard encoding/csv quoting rules apply.
type CSVExporter struct {
	QuoteAll bool
}

// NewCSVExporter builds a CSV exporter with standard quoting.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// NewQuotedCSVExporter builds a CSV exporter that quotes every field.
func NewQuotedCSVExporter() *CSVExporter {
	return &CSVExporter{QuoteAll: true}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	if e.QuoteAll {
		return e.renderQuoted(data), nil
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(padRecord(row, len(data.Headers))); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) renderQuoted(data Dataset) []byte {
	lines := make([]string, 0, len(data.Rows)+1)
	lines = append(lines, quoteRecord(data.Headers))
	for _, row := range data.Rows {
		lines = append(lines, quoteRecord(padRecord(row, len(data.Headers))))
	}
	return []byte(strings.Join(lines, "\n"))
}

func padRecord(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	record := make([]string, width)
	copy(record, row)
	return record
}

func quoteRecord(fields []string) string {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}
