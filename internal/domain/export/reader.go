package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/livestock/claims/internal/domain/claim"
)

// SheetLedger is the ledger section read back from one worksheet.
type SheetLedger struct {
	Name    string
	Records claim.Ledger
}

// ReadLedger parses the ledger section of every sheet of an exported
// workbook, in sheet order. Record ids are not part of the document and are
// left empty.
func ReadLedger(doc []byte) ([]SheetLedger, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []SheetLedger
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		records, err := parseLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		out = append(out, SheetLedger{Name: name, Records: records})
	}
	return out, nil
}

func parseLedger(rows [][]string) (claim.Ledger, error) {
	start := -1
	for i, row := range rows {
		if cell(row, 0) == LedgerHeader[0] && cell(row, 1) == LedgerHeader[1] {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("ledger header not found")
	}

	ledger := claim.Ledger{}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if cell(row, 0) == "" || cell(row, 0) == SummaryTitle {
			break
		}
		date, err := parseFormattedDate(cell(row, 1))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		headcount, err := strconv.Atoi(cell(row, 2))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: headcount %q", i+1, claim.ErrInvalidNumber, cell(row, 2))
		}
		deaths, err := strconv.Atoi(cell(row, 3))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: deaths %q", i+1, claim.ErrInvalidNumber, cell(row, 3))
		}
		// An empty treatment is written as "-", so a literal "-" reads back
		// as no treatment.
		treatment := rawCell(row, 5)
		if treatment == noTreatment {
			treatment = ""
		}
		ledger = append(ledger, claim.DailyRecord{
			Date:      date,
			Headcount: headcount,
			Deaths:    deaths,
			Diagnosis: rawCell(row, 4),
			Treatment: treatment,
		})
	}
	return ledger, nil
}

func parseFormattedDate(s string) (claim.Date, error) {
	t, err := time.Parse("2. 1. 2006.", strings.TrimSpace(s))
	if err != nil {
		return claim.Date{}, fmt.Errorf("%w: %q", claim.ErrInvalidDate, s)
	}
	return claim.DateOf(t), nil
}

func cell(row []string, i int) string {
	return strings.TrimSpace(rawCell(row, i))
}

// rawCell returns free text exactly as written.
func rawCell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
