// Package ingest turns user-supplied target lists (pasted text, .txt/.csv
// files, or PDF observing proposals) into an ordered identifier list.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// SampleIDs is the demo target list offered by the CLI.
var SampleIDs = []string{
	"Gaia DR3 4111834567779557376",
	"TIC 261136679",
	"Proxima Centauri",
	"TRAPPIST-1",
	"HD 209458",
}

// Parse splits text on newlines and commas, trims each entry, and drops
// blanks. Order and duplicates are kept.
func Parse(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			ids = append(ids, f)
		}
	}
	return ids
}

// FromReader reads identifiers from r. name picks the decoder by extension:
// .pdf is text-extracted first, .csv contributes its first column, anything
// else is read as plain text.
func FromReader(r io.Reader, name string) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	text := string(data)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		if text, err = ExtractText(data); err != nil {
			return nil, err
		}
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	}
	return Parse(text), nil
}

// headerNames are first-column titles that mark a CSV header row.
var headerNames = map[string]struct{}{
	"name": {}, "id": {}, "ids": {}, "identifier": {}, "target": {},
	"object": {}, "object name": {}, "input": {}, "designation": {}, "source": {},
}

// ParseCSV reads identifiers from the first column of a CSV target list. A
// leading header row is skipped; blank cells are dropped.
func ParseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	ids := []string{}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		cell := strings.TrimSpace(record[0])
		if row == 0 {
			if _, ok := headerNames[strings.ToLower(cell)]; ok {
				continue
			}
		}
		if cell != "" {
			ids = append(ids, cell)
		}
	}
	return ids, nil
}

// FromFile opens path and hands it to FromReader.
func FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open target list: %w", err)
	}
	defer f.Close()
	return FromReader(f, path)
}

// ExtractText reads PDF bytes and returns the plain text of every page, one
// page per line block.
func ExtractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	for page := 1; page <= doc.NumPage(); page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		for _, row := range rows {
			for i, word := range row.Content {
				if i > 0 {
					builder.WriteByte(' ')
				}
				builder.WriteString(word.S)
			}
			builder.WriteByte('\n')
		}
	}
	return builder.String(), nil
}
