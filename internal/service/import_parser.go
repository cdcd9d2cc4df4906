package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	minImportColumns = 6
	utf8BOM          = "\ufeff"
)

// ImportColumns is the fixed column order of import files and the template.
var ImportColumns = []string{"Title", "Author", "CategoryID", "ISBN", "Quantity", "PublishYear", "Description", "ImagePath"}

// csvRecord is one parsed record with the source line it started on.
type csvRecord struct {
	Line   int
	Fields []string
	Err    error
}

// importRow is a coerced candidate row. Field order matches rule message order.
type importRow struct {
	Line        int    `validate:"-"`
	Title       string `validate:"required"`
	Author      string `validate:"required"`
	CategoryID  int    `validate:"min=1,max=6"`
	Quantity    int    `validate:"min=0"`
	ISBN        string `validate:"omitempty,minbytes=10"`
	PublishYear int    `validate:"omitempty,publishyear"`
	Description string `validate:"-"`
	ImagePath   string `validate:"-"`
}

var importRowMessages = map[string]string{
	"Title":       "title must not be empty",
	"Author":      "author must not be empty",
	"CategoryID":  "categoryId must be between 1 and 6",
	"Quantity":    "quantity must not be negative",
	"ISBN":        "isbn must be at least 10 characters",
	"PublishYear": "publishYear must be between 1000 and the current year",
}

// readCSV parses r leniently: stray quotes are kept literally and records may
// have any number of fields. A malformed record is returned with Err set and
// reading continues with the next line.
func readCSV(r io.Reader) ([]csvRecord, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records []csvRecord
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				records = append(records, csvRecord{Line: parseErr.StartLine, Err: parseErr.Err})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(records) == 0 && len(fields) > 0 {
			fields[0] = strings.TrimPrefix(fields[0], utf8BOM)
		}
		records = append(records, csvRecord{Line: line, Fields: fields})
	}
	return records, nil
}

// rowFromFields trims and coerces a record with at least six fields.
func rowFromFields(line int, fields []string) importRow {
	row := importRow{
		Line:        line,
		Title:       strings.TrimSpace(fields[0]),
		Author:      strings.TrimSpace(fields[1]),
		CategoryID:  coerceInt(fields[2]),
		ISBN:        strings.TrimSpace(fields[3]),
		Quantity:    coerceInt(fields[4]),
		PublishYear: coerceInt(fields[5]),
	}
	if len(fields) > 6 {
		row.Description = strings.TrimSpace(fields[6])
	}
	if len(fields) > 7 {
		row.ImagePath = strings.TrimSpace(fields[7])
	}
	// Non-positive years mean "unknown" and are stored as NULL.
	if row.PublishYear < 0 {
		row.PublishYear = 0
	}
	return row
}

// coerceInt reads the leading optionally signed integer of raw. Anything
// unparseable yields 0 and out-of-range values clamp.
func coerceInt(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
		if n > math.MaxInt32 {
			n = math.MaxInt32
			break
		}
	}
	if negative {
		n = -n
	}
	return int(n)
}
