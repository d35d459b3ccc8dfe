package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
)

type Kind int

const (
	KindCSV Kind = iota + 1
	KindXLSX
)

// KindOf maps a declared media type to a tabular kind.
func KindOf(contentType string) (Kind, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, false
	}
	switch mt {
	case "text/csv", "application/csv", "application/vnd.ms-excel":
		return KindCSV, true
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return KindXLSX, true
	}
	return 0, false
}

// Record is one data row keyed by standardized header. Line is 1-based in the source file.
type Record struct {
	Line   int
	Fields map[string]string
}

var errNoDataRows = errors.New("no data rows")

func invalidContent(cause error) error {
	return apperr.Validation(apperr.CodeInvalidCSV, "Invalid CSV content", cause)
}

// Parse reads the whole table. Any failure, or a table with no data rows, is INVALID_CSV_CONTENT.
func Parse(r io.Reader, kind Kind) ([]Record, error) {
	var (
		rows  [][]string
		lines []int
		err   error
	)
	switch kind {
	case KindCSV:
		rows, lines, err = readCSV(r)
	case KindXLSX:
		rows, lines, err = readXLSX(r)
	default:
		err = fmt.Errorf("unknown kind %d", kind)
	}
	if err != nil {
		return nil, invalidContent(err)
	}

	records := toRecords(rows, lines)
	if len(records) == 0 {
		return nil, invalidContent(errNoDataRows)
	}
	return records, nil
}

func readCSV(r io.Reader) ([][]string, []int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		rows  [][]string
		lines []int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

func readXLSX(r io.Reader) ([][]string, []int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

// toRecords treats the first non-blank row as the header. Blank rows are skipped; short rows
// leave missing columns empty and extra cells are ignored.
func toRecords(rows [][]string, lines []int) []Record {
	var (
		header  []string
		records []Record
	)
	for i, row := range rows {
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}
		if blank(row) {
			continue
		}
		if header == nil {
			header = make([]string, len(row))
			for j, h := range row {
				header[j] = StandardizeHeader(h)
			}
			continue
		}
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if name == "" {
				continue
			}
			if j < len(row) {
				fields[name] = row[j]
			} else {
				fields[name] = ""
			}
		}
		records = append(records, Record{Line: lines[i], Fields: fields})
	}
	return records
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
