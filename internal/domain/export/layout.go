package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/livestock/claims/internal/domain/claim"
)

// Mode selects how sheets are named.
type Mode string

const (
	// ModeSingle names the only sheet after the tab convention of its breed label.
	ModeSingle Mode = "single"
	// ModeAll names sheets Prijava_1..N in input order.
	ModeAll Mode = "all"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeAll:
		return ModeAll, nil
	}
	return "", claim.Invalid("unknown export mode %q", raw)
}

// Labels of the claim document.
const (
	Title         = "PRIJAVA ŠTETE NA ŽIVINI"
	LedgerTitle   = "DNEVNI ZAPISNIK ŠTETE"
	SummaryTitle  = "REZIME ŠTETE"
	noTreatment   = "-"
	rateUndefined = "-"
)

// LedgerHeader opens the ledger section of every sheet.
var LedgerHeader = []interface{}{"RB", "Datum", "Brojno stanje", "Uginulo", "Dijagnoza", "Terapija"}

// ColumnWidths are the character widths of columns A to F.
var ColumnWidths = []float64{5, 15, 15, 10, 20, 20}

// Sheet is one worksheet: rows of heterogeneous cell values plus column
// width hints. An empty row is left blank.
type Sheet struct {
	Name     string
	Rows     [][]interface{}
	Widths   []float64
	Headings []int // zero-based indexes of rows rendered bold
}

// FormatDate renders a date the way the sr-RS locale does, e.g. "5. 1. 2025.".
func FormatDate(d claim.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d. %d. %d.", d.Day(), int(d.Month()), d.Year())
}

// Build lays out one sheet per claim. Single mode takes exactly one claim.
func Build(claims []*claim.Claim, mode Mode, exportDate time.Time) ([]Sheet, error) {
	if len(claims) == 0 {
		return nil, claim.Invalid("no claims to export")
	}
	if mode == ModeSingle && len(claims) > 1 {
		return nil, claim.Invalid("single mode exports one claim, got %d", len(claims))
	}
	sheets := make([]Sheet, 0, len(claims))
	for i, c := range claims {
		if c == nil {
			return nil, claim.Invalid("claim %d is empty", i+1)
		}
		rows := Layout(c, exportDate)
		sheets = append(sheets, Sheet{
			Name:     sheetName(c, mode, i),
			Rows:     rows,
			Widths:   ColumnWidths,
			Headings: headings(rows),
		})
	}
	return sheets, nil
}

func sheetName(c *claim.Claim, mode Mode, index int) string {
	if mode == ModeAll {
		return fmt.Sprintf("Prijava_%d", index+1)
	}
	if strings.Contains(c.Breed, "Tab2") {
		return "Tab2"
	}
	return "Tab1"
}

func headings(rows [][]interface{}) []int {
	var idx []int
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		switch row[0] {
		case Title, LedgerTitle, SummaryTitle, LedgerHeader[0]:
			idx = append(idx, i)
		}
	}
	return idx
}

// Layout renders the fixed row order of a claim document. The ledger is
// written in date order whatever order the claim holds it in.
func Layout(c *claim.Claim, exportDate time.Time) [][]interface{} {
	rows := [][]interface{}{
		{Title},
		{},
		{"Osiguranik:", c.InsuredParty, "", "Polisa:", c.PolicyNumber},
		{"Radna jedinica:", c.WorkUnit, "", "Datum:", FormatDate(claim.DateOf(exportDate))},
		{"Vrsta:", strings.TrimSpace(c.Breed + " " + c.Facility), "", "Useljeno:", fmt.Sprintf("%d kom", c.InitialHeadcount)},
		{},
		{"Vrsta štete:", c.DamageType, "", "Uzrok:", c.DamageCause},
		{"Veterinar:", c.VetName, "", "Licenca:", c.VetLicense},
		{"Period od:", FormatDate(c.PeriodStart), "", "do:", FormatDate(c.PeriodEnd)},
		{},
		{LedgerTitle},
		LedgerHeader,
	}

	ledger := c.Ledger.Sorted()
	for i, r := range ledger {
		treatment := r.Treatment
		if treatment == "" {
			treatment = noTreatment
		}
		rows = append(rows, []interface{}{i + 1, FormatDate(r.Date), r.Headcount, r.Deaths, r.Diagnosis, treatment})
	}

	s, err := claim.Summarize(ledger, c.InitialHeadcount)
	rate := s.DeathRatePercent
	if err != nil {
		rate = rateUndefined
	}
	return append(rows,
		[]interface{}{},
		[]interface{}{SummaryTitle},
		[]interface{}{"Total uginulih:", s.TotalDeaths, "kom"},
		[]interface{}{"Prosečno dnevno:", s.AverageDailyDeaths, "kom"},
		[]interface{}{"Procenat od useljenih:", rate, ""},
	)
}
