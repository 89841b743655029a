package claim

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func callWorksheet(t *testing.T, fn func(echo.Context) error, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(jsonRequest(http.MethodPost, body), rec)
	return rec, fn(c)
}

func TestWorksheet_AppendCarriesHeadcount(t *testing.T) {
	h := NewWorksheetHandler()
	rec, err := callWorksheet(t, h.Append, `{
		"initial_headcount": 1000,
		"daily_records": [{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01", "date": "2024-03-01", "headcount": 1000, "deaths": 12}],
		"entry": {"date": "2024-03-02", "deaths": 4}
	}`)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	var out worksheetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out.Records))
	}
	if out.Record == nil || out.Record.Headcount != 988 {
		t.Errorf("expected carried headcount 988, got %+v", out.Record)
	}
	if out.Summary == nil || out.Summary.TotalDeaths != 16 || out.Summary.DeathRatePercent != "1.60%" {
		t.Errorf("unexpected summary %+v", out.Summary)
	}
}

func TestWorksheet_EditRecomputes(t *testing.T) {
	h := NewWorksheetHandler()
	rec, err := callWorksheet(t, h.Edit, `{
		"initial_headcount": 100,
		"daily_records": [
			{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01", "date": "2024-03-01", "headcount": 100, "deaths": 2},
			{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e02", "date": "2024-03-02", "headcount": 98, "deaths": 1},
			{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e03", "date": "2024-03-03", "headcount": 97, "deaths": 0}
		],
		"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01",
		"patch": {"deaths": 20}
	}`)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	var out worksheetResponse
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Records[1].Headcount != 80 || out.Records[2].Headcount != 80 {
		t.Errorf("expected later headcounts 80, got %d and %d", out.Records[1].Headcount, out.Records[2].Headcount)
	}
}

func TestWorksheet_RemoveLastRecord(t *testing.T) {
	h := NewWorksheetHandler()
	_, err := callWorksheet(t, h.Remove, `{
		"daily_records": [{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01", "date": "2024-03-01", "headcount": 10, "deaths": 1}],
		"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01"
	}`)
	expectHTTPError(t, err, http.StatusBadRequest)
}

func TestWorksheet_RemoveUnknown(t *testing.T) {
	h := NewWorksheetHandler()
	_, err := callWorksheet(t, h.Remove, `{
		"daily_records": [{"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e01", "date": "2024-03-01", "headcount": 10, "deaths": 1}],
		"id": "6f1c7a52-1d0b-4a8e-9b53-2a1f6c1d9e09"
	}`)
	expectHTTPError(t, err, http.StatusNotFound)
}

func TestWorksheet_Summary(t *testing.T) {
	h := NewWorksheetHandler()
	rec, err := callWorksheet(t, h.Summary, `{"initial_headcount": 0, "daily_records": []}`)
	expectHTTPError(t, err, http.StatusUnprocessableEntity)

	rec, err = callWorksheet(t, h.Summary, `{"initial_headcount": 50, "daily_records": []}`)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	var s Summary
	json.Unmarshal(rec.Body.Bytes(), &s)
	if s.AverageDailyDeaths != "0.0" || s.DeathRatePercent != "0.00%" {
		t.Errorf("unexpected empty summary %+v", s)
	}
}
