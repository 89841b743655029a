package export

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/livestock/claims/internal/domain/claim"
)

type tuple struct {
	Date      string
	Headcount int
	Deaths    int
	Diagnosis string
	Treatment string
}

func tuples(l claim.Ledger) []tuple {
	out := make([]tuple, 0, len(l))
	for _, r := range l {
		out = append(out, tuple{r.Date.String(), r.Headcount, r.Deaths, r.Diagnosis, r.Treatment})
	}
	return out
}

func TestXLSXWriter_RoundTrip(t *testing.T) {
	second := sampleClaim()
	second.Ledger = claim.Ledger{
		{Date: claim.NewDate(2025, 3, 1), Headcount: 4123, Deaths: 0, Diagnosis: "", Treatment: ""},
	}
	claims := []*claim.Claim{sampleClaim(), second}

	sheets, err := Build(claims, ModeAll, exportDate)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc, err := XLSXWriter{}.Write(sheets)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadLedger(doc)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(got))
	}
	for i, c := range claims {
		if got[i].Name != sheets[i].Name {
			t.Errorf("sheet %d: got name %q, want %q", i, got[i].Name, sheets[i].Name)
		}
		want := tuples(c.Ledger.Sorted())
		if !reflect.DeepEqual(tuples(got[i].Records), want) {
			t.Errorf("sheet %d: got %+v, want %+v", i, tuples(got[i].Records), want)
		}
	}
}

func TestXLSXWriter_RoundTripKeepsFreeText(t *testing.T) {
	c := sampleClaim()
	c.Ledger = claim.Ledger{
		{Date: claim.NewDate(2025, 3, 1), Headcount: 100, Deaths: 1, Diagnosis: " a ", Treatment: " Enrofloksacin "},
		{Date: claim.NewDate(2025, 3, 2), Headcount: 99, Deaths: 0, Diagnosis: "b", Treatment: " "},
		{Date: claim.NewDate(2025, 3, 3), Headcount: 99, Deaths: 2, Diagnosis: "c", Treatment: "-"},
	}
	sheets, err := Build([]*claim.Claim{c}, ModeSingle, exportDate)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc, err := XLSXWriter{}.Write(sheets)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadLedger(doc)
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	recs := got[0].Records
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Diagnosis != " a " || recs[0].Treatment != " Enrofloksacin " {
		t.Errorf("free text must not be trimmed, got %q / %q", recs[0].Diagnosis, recs[0].Treatment)
	}
	if recs[1].Treatment != " " {
		t.Errorf("blank treatment = %q, want a single space", recs[1].Treatment)
	}
	// "-" is the marker for no treatment.
	if recs[2].Treatment != "" {
		t.Errorf("dash treatment = %q, want empty", recs[2].Treatment)
	}
}

func TestXLSXWriter_Layout(t *testing.T) {
	sheets, _ := Build([]*claim.Claim{sampleClaim()}, ModeSingle, exportDate)
	doc, err := XLSXWriter{}.Write(sheets)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if list := f.GetSheetList(); !reflect.DeepEqual(list, []string{"Tab1"}) {
		t.Fatalf("unexpected sheets %v", list)
	}
	checks := map[string]string{
		"A1":  Title,
		"E3":  "806411",
		"E4":  "3. 2. 2025.",
		"E5":  "19499 kom",
		"F13": "-",
		"A16": SummaryTitle,
		"B19": "0.04%",
	}
	for cell, want := range checks {
		if got, _ := f.GetCellValue("Tab1", cell); got != want {
			t.Errorf("%s: got %q, want %q", cell, got, want)
		}
	}
	for col, want := range map[string]float64{"A": 5, "B": 15, "D": 10, "F": 20} {
		if got, _ := f.GetColWidth("Tab1", col); got != want {
			t.Errorf("column %s: got width %v, want %v", col, got, want)
		}
	}
}

func TestXLSXWriter_NoSheets(t *testing.T) {
	if _, err := (XLSXWriter{}).Write(nil); err == nil {
		t.Error("expected error for an empty workbook")
	}
}

func TestReadLedger_Errors(t *testing.T) {
	if _, err := ReadLedger([]byte("not a workbook")); err == nil {
		t.Error("expected error for a non-workbook document")
	}

	sheets := []Sheet{{Name: "Tab1", Rows: [][]interface{}{{Title}}}}
	doc, err := XLSXWriter{}.Write(sheets)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ReadLedger(doc); err == nil {
		t.Error("expected error when the ledger header is missing")
	}

	sheets = []Sheet{{Name: "Tab1", Rows: [][]interface{}{LedgerHeader, {1, "32. 1. 2025.", 10, 1, "", "-"}}}}
	doc, _ = XLSXWriter{}.Write(sheets)
	if _, err := ReadLedger(doc); !errors.Is(err, claim.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
