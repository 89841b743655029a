package export

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentType is the media type of the documents produced by XLSXWriter.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Writer renders sheets into a binary document.
type Writer interface {
	Write(sheets []Sheet) ([]byte, error)
}

// XLSXWriter writes an Office Open XML workbook, one worksheet per sheet.
type XLSXWriter struct{}

func (XLSXWriter) Write(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, errors.New("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sh.Name)
		} else {
			_, err = f.NewSheet(sh.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", sh.Name, err)
		}
		if err := writeSheet(f, sh, bold); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sh.Name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sh Sheet, bold int) error {
	for i := range sh.Rows {
		if len(sh.Rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.Name, cell, &sh.Rows[i]); err != nil {
			return err
		}
	}
	for i, w := range sh.Widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh.Name, col, col, w); err != nil {
			return err
		}
	}
	for _, row := range sh.Headings {
		if row < 0 || row >= len(sh.Rows) {
			continue
		}
		from, _ := excelize.CoordinatesToCellName(1, row+1)
		to, _ := excelize.CoordinatesToCellName(max(len(sh.Rows[row]), 1), row+1)
		if err := f.SetCellStyle(sh.Name, from, to, bold); err != nil {
			return err
		}
	}
	return nil
}
