package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestCSVSource_SemicolonAndBOM(t *testing.T) {
	data := "\xEF\xBB\xBF" + strings.ReplaceAll(samplePolicies, ",", ";")
	rows, err := CSVSource{}.Rows(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Values[ColPolicyNumber] != "806411" {
		t.Errorf("BOM must not leak into the first header, got %v", rows[0].Values)
	}
	if rows[1].Values[ColHoldingID] != "744328008499" || rows[1].Number != 3 {
		t.Errorf("unexpected second row %+v", rows[1])
	}
}

func TestCSVSource_TrimsAndSkipsBlankRows(t *testing.T) {
	data := "\n" + header + " 806411 , Farma ,RJ,V,O,1,2,2025-01-01,2025-12-31,10,2025-01-01\n;;;\n\n806412,Farma,RJ,V,O,1,3,2025-01-01,2025-12-31,10,2025-01-01\n"
	rows, err := CSVSource{}.Rows(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Values[ColPolicyNumber] != "806411" || rows[0].Values[ColInsuredParty] != "Farma" {
		t.Errorf("expected trimmed cells, got %v", rows[0].Values)
	}
}

func TestCSVSource_Empty(t *testing.T) {
	for _, data := range []string{"", "  \n", header} {
		if _, err := (CSVSource{}).Rows(strings.NewReader(data)); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("expected ErrEmptyFile for %q, got %v", data, err)
		}
	}
}

func policyWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	head := make([]interface{}, len(Columns))
	for i, col := range Columns {
		head[i] = col
	}
	rows := [][]interface{}{
		head,
		{"806411", "Spasić Farm doo Stalać", "Ćićevac", "Lohmann Brown", "FĆ 1", "744247000750", "744328008498",
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "31.12.2025.", 19499, "2025-01-01"},
		{},
		{"806412", "Petrović Farm", "Kruševac", "Lohmann Brown", "Objekat A", "744247000760", "744328008500",
			"2025-02-01", "2025-08-01", 15000, "1/2/2025"},
	}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestXLSXSource_Rows(t *testing.T) {
	rows, err := XLSXSource{}.Rows(bytes.NewReader(policyWorkbook(t)))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Number != 3 {
		t.Errorf("blank rows must not count, got row number %d", rows[1].Number)
	}

	c, err := MapRow(rows[0])
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if c.PolicyStart.String() != "2025-01-01" || c.PolicyEnd.String() != "2025-12-31" {
		t.Errorf("unexpected policy dates %s - %s", c.PolicyStart, c.PolicyEnd)
	}
	if c.InitialHeadcount != 19499 {
		t.Errorf("expected 19499, got %d", c.InitialHeadcount)
	}
	if c.InsuredParty != "Spasić Farm doo Stalać" {
		t.Errorf("unexpected insured party %q", c.InsuredParty)
	}
}

func TestXLSXSource_ConvertsSerialDates(t *testing.T) {
	rows, err := XLSXSource{}.Rows(bytes.NewReader(policyWorkbook(t)))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if got := rows[0].Values[ColPolicyStart]; got != "2025-01-01" {
		t.Errorf("date cell = %q, want 2025-01-01", got)
	}
	if got := rows[0].Values[ColInitialHeadcount]; got != "19499" {
		t.Errorf("numeric cells outside date columns must stay raw, got %q", got)
	}
}

func TestSerialDate(t *testing.T) {
	if iso, ok := serialDate("45662"); !ok || iso != "2025-01-05" {
		t.Errorf("serialDate(45662) = %q, %v", iso, ok)
	}
	for _, bad := range []string{"", "2025-01-05", "0", "99999999"} {
		if _, ok := serialDate(bad); ok {
			t.Errorf("serialDate(%q) should not convert", bad)
		}
	}
}

func TestXLSXSource_NotAWorkbook(t *testing.T) {
	if _, err := (XLSXSource{}).Rows(strings.NewReader("not a zip")); err == nil {
		t.Error("expected error for a non-workbook upload")
	}
}

func TestSourceFor(t *testing.T) {
	if s, err := SourceFor("Polise.XLSX"); err != nil {
		t.Errorf("unexpected error: %v", err)
	} else if _, ok := s.(XLSXSource); !ok {
		t.Errorf("expected XLSXSource, got %T", s)
	}
	if s, _ := SourceFor("polise.csv"); s == nil {
		t.Error("expected a csv source")
	}
	if _, err := SourceFor("polise.pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
