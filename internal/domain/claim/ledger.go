package claim

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the ordered list of daily records of one claim.
type Ledger []DailyRecord

// Today returns the current calendar day; replaced in tests.
var Today = func() Date { return DateOf(time.Now()) }

// EntryInput describes a record to append. A nil Headcount means "carry
// over from the previous day".
type EntryInput struct {
	Date      Date   `json:"date"`
	Headcount *int   `json:"headcount,omitempty"`
	Deaths    int    `json:"deaths"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}

// EntryPatch describes an edit to one record. Nil fields are left untouched.
type EntryPatch struct {
	Date      *Date   `json:"date,omitempty"`
	Headcount *int    `json:"headcount,omitempty"`
	Deaths    *int    `json:"deaths,omitempty"`
	Diagnosis *string `json:"diagnosis,omitempty"`
	Treatment *string `json:"treatment,omitempty"`
}

// Append adds a record at the end of the ledger. The first record defaults
// to initialHeadcount, later ones to the previous headcount minus the
// previous day's deaths.
func (l *Ledger) Append(in EntryInput, initialHeadcount int) (DailyRecord, error) {
	rec := DailyRecord{
		ID:        uuid.New(),
		Date:      in.Date,
		Deaths:    in.Deaths,
		Diagnosis: in.Diagnosis,
		Treatment: in.Treatment,
	}
	if rec.Date.IsZero() {
		rec.Date = Today()
	}
	switch {
	case in.Headcount != nil:
		rec.Headcount = *in.Headcount
	case len(*l) > 0:
		prev := (*l)[len(*l)-1]
		rec.Headcount = prev.Headcount - prev.Deaths
	default:
		rec.Headcount = initialHeadcount
	}
	if rec.Headcount < 0 {
		return DailyRecord{}, Invalid("headcount must not be negative")
	}
	if rec.Deaths < 0 {
		return DailyRecord{}, Invalid("deaths must not be negative")
	}
	*l = append(*l, rec)
	return rec, nil
}

func (l Ledger) indexOf(id uuid.UUID) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// Edit applies patch to the record with the given id. Changing the headcount
// or the deaths of a record rewrites every later headcount via Recompute.
func (l Ledger) Edit(id uuid.UUID, patch EntryPatch) error {
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: daily record %s", ErrNotFound, id)
	}
	rec := l[i]
	if patch.Date != nil {
		rec.Date = *patch.Date
	}
	if patch.Headcount != nil {
		rec.Headcount = *patch.Headcount
	}
	if patch.Deaths != nil {
		rec.Deaths = *patch.Deaths
	}
	if patch.Diagnosis != nil {
		rec.Diagnosis = *patch.Diagnosis
	}
	if patch.Treatment != nil {
		rec.Treatment = *patch.Treatment
	}
	if rec.Headcount < 0 || rec.Deaths < 0 {
		return Invalid("headcount and deaths must not be negative")
	}
	l[i] = rec
	if patch.Headcount != nil || patch.Deaths != nil {
		return l.Recompute(id)
	}
	return nil
}

// Recompute sets the headcount of every record after the given one to that
// record's headcount minus its deaths. The value is the same for all later
// records; later deaths are not compounded.
func (l Ledger) Recompute(id uuid.UUID) error {
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: daily record %s", ErrNotFound, id)
	}
	carried := l[i].Headcount - l[i].Deaths
	for j := i + 1; j < len(l); j++ {
		l[j].Headcount = carried
	}
	return nil
}

// Remove deletes a record. The last remaining record cannot be removed.
func (l *Ledger) Remove(id uuid.UUID) error {
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: daily record %s", ErrNotFound, id)
	}
	if len(*l) == 1 {
		return Invalid("a claim must keep at least one daily record")
	}
	*l = append((*l)[:i], (*l)[i+1:]...)
	return nil
}

// Sorted returns a copy ordered by date ascending. Records on the same day
// keep their relative order.
func (l Ledger) Sorted() Ledger {
	out := append(Ledger(nil), l...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// TotalDeaths sums deaths over all records.
func (l Ledger) TotalDeaths() int {
	total := 0
	for _, r := range l {
		total += r.Deaths
	}
	return total
}

// Summary is the aggregate mortality of a ledger.
type Summary struct {
	TotalDeaths        int    `json:"total_deaths"`
	AverageDailyDeaths string `json:"average_daily_deaths"`
	DeathRatePercent   string `json:"death_rate_percent"`
}

// Summarize computes the summary of a ledger against the initial headcount.
// The average has one decimal, the rate two decimals and a percent sign.
func Summarize(l Ledger, initialHeadcount int) (Summary, error) {
	s := Summary{TotalDeaths: l.TotalDeaths(), AverageDailyDeaths: "0.0"}
	total := decimal.NewFromInt(int64(s.TotalDeaths))
	if len(l) > 0 {
		s.AverageDailyDeaths = total.Div(decimal.NewFromInt(int64(len(l)))).StringFixed(1)
	}
	if initialHeadcount <= 0 {
		return s, ErrDivisionByZero
	}
	rate := total.Div(decimal.NewFromInt(int64(initialHeadcount))).Mul(decimal.NewFromInt(100))
	s.DeathRatePercent = rate.StringFixed(2) + "%"
	return s, nil
}
