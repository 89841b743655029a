package claim

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is applied when a claim is saved without a category.
const DefaultCategory = "Kokoši"

// Date is a calendar day without a time-of-day component.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate returns the given calendar day at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Fields holds the editable scalar part of a claim.
type Fields struct {
	PolicyNumber     string `json:"policy_number"`
	InsuredParty     string `json:"insured_party"`
	WorkUnit         string `json:"work_unit"`
	Breed            string `json:"breed"`
	Category         string `json:"category"`
	Facility         string `json:"facility"`
	FarmRegistryID   string `json:"bpg"`
	HoldingID        string `json:"hid"`
	PolicyStart      Date   `json:"policy_start"`
	PolicyEnd        Date   `json:"policy_end"`
	InitialHeadcount int    `json:"initial_headcount"`
	MoveInDate       *Date  `json:"move_in_date,omitempty"`
	DamageType       string `json:"damage_type"`
	DamageCause      string `json:"damage_cause"`
	VetName          string `json:"vet_name"`
	VetLicense       string `json:"vet_license"`
	PeriodStart      Date   `json:"period_start"`
	PeriodEnd        Date   `json:"period_end"`
}

func (f *Fields) normalize() {
	for _, s := range []*string{
		&f.PolicyNumber, &f.InsuredParty, &f.WorkUnit, &f.Breed, &f.Category, &f.Facility,
		&f.FarmRegistryID, &f.HoldingID, &f.DamageType, &f.DamageCause, &f.VetName, &f.VetLicense,
	} {
		*s = strings.TrimSpace(*s)
	}
	if f.Category == "" {
		f.Category = DefaultCategory
	}
}

// Claim is one facility's mortality claim for an insurance period. It owns
// its ledger exclusively.
type Claim struct {
	ID uuid.UUID `json:"id"`
	Fields
	Status    Status    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Ledger    Ledger    `json:"daily_records"`
}

// Summary computes the mortality summary of the claim's ledger.
func (c *Claim) Summary() (Summary, error) {
	return Summarize(c.Ledger, c.InitialHeadcount)
}

// Clone returns a deep copy, so callers can mutate without aliasing the
// ledger slice.
func (c *Claim) Clone() *Claim {
	cp := *c
	if c.MoveInDate != nil {
		d := *c.MoveInDate
		cp.MoveInDate = &d
	}
	cp.Ledger = append(Ledger(nil), c.Ledger...)
	return &cp
}

// DailyRecord is one day's observation in a claim's ledger.
type DailyRecord struct {
	ID        uuid.UUID `json:"id"`
	ClaimID   uuid.UUID `json:"claim_id"`
	Date      Date      `json:"date"`
	Headcount int       `json:"headcount"`
	Deaths    int       `json:"deaths"`
	Diagnosis string    `json:"diagnosis"`
	Treatment string    `json:"treatment"`
}
