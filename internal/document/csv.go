package document

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gridscript/internal/sheet"
)

// LoadCSV reads a document from a CSV file. Cells starting with '=' are
// stored as formulas; numeric and boolean literals are typed, anything
// else is text, and empty cells stay empty.
func LoadCSV(path string) (*Document, error) {
	f, err := os.Open(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}

	doc := New(0, 0)
	for row, record := range records {
		for col, field := range record {
			if field == "" {
				continue
			}
			if strings.HasPrefix(field, "=") {
				doc.SetFormula(row, col, field)
				continue
			}
			doc.SetValue(row, col, parseCell(field))
		}
	}
	return doc, nil
}

func parseCell(field string) sheet.Value {
	if n, err := strconv.ParseFloat(field, 64); err == nil {
		return sheet.NumberValue(n)
	}
	switch strings.ToLower(field) {
	case "true":
		return sheet.BoolValue(true)
	case "false":
		return sheet.BoolValue(false)
	}
	return sheet.TextValue(field)
}

// WriteCSV writes the document back out. Formulas are written as their
// '=' source text; other cells use their display form.
func WriteCSV(path string, doc *Document) error {
	f, err := os.Create(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for row := 0; row < doc.Rows(); row++ {
		record := make([]string, doc.Cols())
		for col := 0; col < doc.Cols(); col++ {
			if formula, ok := doc.Formula(row, col); ok {
				record[col] = formula
				continue
			}
			if v := doc.Value(row, col); !v.IsNil() {
				record[col] = v.Display()
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
