package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// ReadCSV reads one document per row. The header row names the columns:
// idColumn supplies the document id, the text columns become fields and
// every other column becomes metadata. An empty textFields treats every
// column but the id as text. Rows with an empty id are given one by the
// indexer.
func ReadCSV(r io.Reader, idColumn string, textFields []string) ([]vector.Document, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	idCol := slices.Index(header, idColumn)
	for _, f := range textFields {
		if !slices.Contains(header, f) {
			return nil, fmt.Errorf("text column %q not in header", f)
		}
	}

	var docs []vector.Document
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		doc := vector.Document{Fields: map[string]string{}}
		for i, col := range header {
			cell := strings.TrimSpace(row[i])
			switch {
			case i == idCol:
				doc.ID = cell
			case len(textFields) == 0 || slices.Contains(textFields, col):
				if cell != "" {
					doc.Fields[col] = cell
				}
			case cell != "":
				if doc.Metadata == nil {
					doc.Metadata = map[string]any{}
				}
				doc.Metadata[col] = scalar(cell)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// scalar parses a metadata cell into a number or bool when it is one.
func scalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
