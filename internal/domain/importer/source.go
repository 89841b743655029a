package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
)

// Row is one non-blank data row keyed by column header. Number is the
// row's position as reported to the user: data rows count from 2.
type Row struct {
	Number int
	Values map[string]string
}

// Source turns an uploaded document into rows.
type Source interface {
	Rows(r io.Reader) ([]Row, error)
}

// SourceFor picks a reader by file extension.
func SourceFor(filename string) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return XLSXSource{}, nil
	case ".csv", ".txt":
		return CSVSource{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// XLSXSource reads the first worksheet of a workbook. Cells are read raw so
// date cells arrive as serial numbers regardless of their display format.
type XLSXSource struct{}

func (XLSXSource) Rows(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	rows, err := toRows(records)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		for _, col := range dateColumns {
			if iso, ok := serialDate(row.Values[col]); ok {
				row.Values[col] = iso
			}
		}
	}
	return rows, nil
}

// maxSerialDate is 9999-12-31 as a spreadsheet serial number.
const maxSerialDate = 2958466

// serialDate converts a raw date cell stored as a serial number to ISO form.
func serialDate(raw string) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 || serial >= maxSerialDate {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// CSVSource reads comma or semicolon separated text. The delimiter is taken
// from the header line.
type CSVSource struct{}

func (CSVSource) Rows(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(records)
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func toRows(records [][]string) ([]Row, error) {
	var header []string
	var rows []Row
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if header == nil {
			header = make([]string, len(rec))
			for i, h := range rec {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}
		values := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			values[h] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, Row{Number: len(rows) + 2, Values: values})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
