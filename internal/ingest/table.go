package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported import file format")

// table is a header row plus data rows keyed by normalized column name.
type table struct {
	headers []string
	rows    [][]string
}

// readTable picks the decoder from the file extension.
func readTable(r io.Reader, fileName string) (*table, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

func readCSV(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return newTable(records), nil
}

func readXLSX(r io.Reader) (*table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return newTable(nil), nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newTable(records), nil
}

func newTable(records [][]string) *table {
	t := &table{}
	if len(records) == 0 {
		return t
	}
	for _, h := range records[0] {
		t.headers = append(t.headers, normalizeHeader(h))
	}
	t.rows = records[1:]
	return t
}

// record maps the recognized columns of row i to their trimmed values.
func (t *table) record(i int, recognized map[string]struct{}) map[string]string {
	out := make(map[string]string, len(recognized))
	row := t.rows[i]
	for col, header := range t.headers {
		if _, ok := recognized[header]; !ok || col >= len(row) {
			continue
		}
		out[header] = strings.TrimSpace(row[col])
	}
	return out
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.Join(strings.Fields(h), "_")
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
