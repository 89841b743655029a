package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livestock/claims/internal/domain/claim"
)

// Column headers of the policy spreadsheet, in document order.
const (
	ColPolicyNumber     = "Broj polise"
	ColInsuredParty     = "Osiguranik"
	ColWorkUnit         = "Radna jedinica"
	ColBreed            = "Vrsta"
	ColFacility         = "Objekat"
	ColFarmRegistryID   = "BPG"
	ColHoldingID        = "HID"
	ColPolicyStart      = "Datum početka"
	ColPolicyEnd        = "Datum isteka"
	ColInitialHeadcount = "Broj useljenih"
	ColMoveInDate       = "Datum useljenja"
)

// Columns lists every required header.
var Columns = []string{
	ColPolicyNumber, ColInsuredParty, ColWorkUnit, ColBreed, ColFacility, ColFarmRegistryID,
	ColHoldingID, ColPolicyStart, ColPolicyEnd, ColInitialHeadcount, ColMoveInDate,
}

// dateColumns hold dates; workbooks may store them as serial numbers.
var dateColumns = []string{ColPolicyStart, ColPolicyEnd, ColMoveInDate}

// ErrMissingFields marks a row with empty required columns.
var ErrMissingFields = errors.New("missing fields")

// Defaults applied to every imported claim.
const (
	DefaultDamageType  = "Uginuće"
	DefaultDamageCause = "Bolest"
	DefaultPeriodDays  = 30
)

// ClaimImporter stores a claim built from a policy row.
type ClaimImporter interface {
	Import(ctx context.Context, c *claim.Claim) error
}

// Result reports the outcome of an import. Row failures are collected, not
// returned as errors.
type Result struct {
	SuccessCount int         `json:"success_count"`
	Errors       []string    `json:"errors"`
	ClaimIDs     []uuid.UUID `json:"claim_ids"`
}

type Mapper struct {
	claims ClaimImporter
	logger zerolog.Logger
}

func NewMapper(claims ClaimImporter, logger zerolog.Logger) *Mapper {
	return &Mapper{claims: claims, logger: logger}
}

// Run maps and stores every row. A failing row never stops the ones after it.
func (m *Mapper) Run(ctx context.Context, rows []Row) Result {
	res := Result{Errors: []string{}, ClaimIDs: []uuid.UUID{}}
	for _, row := range rows {
		c, err := MapRow(row)
		if err == nil {
			err = m.claims.Import(ctx, c)
		}
		if err != nil {
			msg := fmt.Sprintf("Row %d: %s", row.Number, rowMessage(err))
			m.logger.Warn().Int("row", row.Number).Err(err).Msg("import row rejected")
			res.Errors = append(res.Errors, msg)
			continue
		}
		res.SuccessCount++
		res.ClaimIDs = append(res.ClaimIDs, c.ID)
	}
	m.logger.Info().Int("rows", len(rows)).Int("imported", res.SuccessCount).
		Int("failed", len(res.Errors)).Msg("policy import finished")
	return res
}

// rowError carries the message reported for a row and the sentinel it
// stands for.
type rowError struct {
	msg string
	err error
}

func (e *rowError) Error() string { return e.msg }
func (e *rowError) Unwrap() error { return e.err }

func rowMessage(err error) string {
	if re, ok := err.(*rowError); ok {
		return re.msg
	}
	return err.Error()
}

// MapRow converts one spreadsheet row into a draft claim. Checks stop at the
// first failing group: missing fields, then dates, then the headcount.
func MapRow(row Row) (*claim.Claim, error) {
	var missing []string
	for _, col := range Columns {
		if strings.TrimSpace(row.Values[col]) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &rowError{"Missing fields: " + strings.Join(missing, ", "), ErrMissingFields}
	}

	start, err1 := ParseDate(row.Values[ColPolicyStart])
	end, err2 := ParseDate(row.Values[ColPolicyEnd])
	moveIn, err3 := ParseDate(row.Values[ColMoveInDate])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, &rowError{"Invalid date format", claim.ErrInvalidDate}
	}

	headcount, err := parseCount(row.Values[ColInitialHeadcount])
	if err != nil || headcount <= 0 {
		return nil, &rowError{"Invalid initial headcount", claim.ErrInvalidNumber}
	}

	return &claim.Claim{
		Fields: claim.Fields{
			PolicyNumber:     row.Values[ColPolicyNumber],
			InsuredParty:     row.Values[ColInsuredParty],
			WorkUnit:         row.Values[ColWorkUnit],
			Breed:            row.Values[ColBreed],
			Category:         claim.DefaultCategory,
			Facility:         row.Values[ColFacility],
			FarmRegistryID:   row.Values[ColFarmRegistryID],
			HoldingID:        row.Values[ColHoldingID],
			PolicyStart:      start,
			PolicyEnd:        end,
			InitialHeadcount: headcount,
			MoveInDate:       &moveIn,
			DamageType:       DefaultDamageType,
			DamageCause:      DefaultDamageCause,
			PeriodStart:      start,
			PeriodEnd:        start.AddDays(DefaultPeriodDays),
		},
		Status: claim.StatusDraft,
	}, nil
}

var dateLayouts = []string{"2006-01-02", "2/1/2006", "2.1.2006", "2. 1. 2006"}

// ParseDate reads the date formats found in policy spreadsheets: ISO and
// day-first with slashes or dots (an optional trailing dot is ignored).
// Workbook serial numbers are converted by XLSXSource before this point.
func ParseDate(raw string) (claim.Date, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return claim.DateOf(t), nil
		}
	}
	return claim.Date{}, fmt.Errorf("%w: %q", claim.ErrInvalidDate, raw)
}

// parseCount accepts whole numbers, including spreadsheet values such as
// "19499.0".
func parseCount(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", claim.ErrInvalidNumber, raw)
	}
	return int(f), nil
}
