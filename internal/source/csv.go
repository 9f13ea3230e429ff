package source

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvBatchSize is the number of data rows per emitted table.
const csvBatchSize = 20

// CSVConverter handles CSV files. The first record is the header; data rows
// are split into GFM tables of csvBatchSize rows, each under its own heading.
type CSVConverter struct{}

func (c *CSVConverter) Convert(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Title: title(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	headers := records[0]
	dataRows := records[1:]
	var md mdBuilder
	if len(dataRows) == 0 {
		md.block(tableMarkdown(headers, nil))
	}
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		md.heading(2, fmt.Sprintf("Rows %d-%d", i+2, end+1)) // 1-indexed, skip header
		md.block(tableMarkdown(headers, dataRows[i:end]))
	}
	doc.Markdown = md.String()
	return doc, nil
}
