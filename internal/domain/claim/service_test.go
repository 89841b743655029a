package claim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), nil, zerolog.Nop())
}

func validFields() Fields {
	return Fields{
		PolicyNumber:     "806411",
		InsuredParty:     "Farma Jovanović d.o.o.",
		WorkUnit:         "Novi Sad",
		Breed:            "Tab1 brojleri",
		Facility:         "Objekat 3",
		FarmRegistryID:   "712345",
		HoldingID:        "RS-HID-0042",
		PolicyStart:      NewDate(2024, 3, 1),
		PolicyEnd:        NewDate(2025, 2, 28),
		InitialHeadcount: 19499,
		DamageType:       "Uginuće",
		DamageCause:      "Bolest",
		VetName:          "dr Petar Petrović",
		VetLicense:       "VL-1234",
		PeriodStart:      NewDate(2024, 3, 1),
		PeriodEnd:        NewDate(2024, 3, 31),
	}
}

func validLedger() Ledger {
	return Ledger{
		{Date: NewDate(2024, 3, 2), Headcount: 19494, Deaths: 3},
		{Date: NewDate(2024, 3, 1), Headcount: 19499, Deaths: 5},
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	f := validFields()
	f.Category = ""
	c, err := svc.Create(context.Background(), f, validLedger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if c.Status != StatusDraft {
		t.Errorf("expected DRAFT, got %s", c.Status)
	}
	if c.Version != 1 {
		t.Errorf("expected version 1, got %d", c.Version)
	}
	if c.Category != DefaultCategory {
		t.Errorf("expected default category, got %q", c.Category)
	}
	if !c.Ledger[0].Date.Before(c.Ledger[1].Date.Time) {
		t.Error("expected ledger ordered by date")
	}
}

func TestService_Create_CollectsAllProblems(t *testing.T) {
	svc := newTestService()
	f := validFields()
	f.InsuredParty = "  "
	f.VetLicense = ""
	f.InitialHeadcount = 0
	f.PeriodEnd = NewDate(2024, 2, 1)

	_, err := svc.Create(context.Background(), f, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	details := strings.Join(Details(err), "|")
	for _, want := range []string{
		"insured_party is required",
		"vet_license is required",
		"initial_headcount must be a positive number",
		"period_end must not be before period_start",
		"at least one daily record is required",
	} {
		if !strings.Contains(details, want) {
			t.Errorf("expected detail %q in %q", want, details)
		}
	}
}

func TestService_Create_RejectsBadRecords(t *testing.T) {
	svc := newTestService()
	ledger := Ledger{{Headcount: -1, Deaths: -2}}
	_, err := svc.Create(context.Background(), validFields(), ledger)
	details := Details(err)
	if len(details) != 3 {
		t.Fatalf("expected 3 record problems, got %v", details)
	}
	if details[0] != "daily record 1: date is required" {
		t.Errorf("unexpected first detail %q", details[0])
	}
}

func TestService_Create_DuplicateNaturalKey(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Create(ctx, validFields(), validLedger()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, validFields(), validLedger()); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	other := validFields()
	other.HoldingID = "RS-HID-0043"
	if _, err := svc.Create(ctx, other, validLedger()); err != nil {
		t.Errorf("same policy with another HID should be accepted, got %v", err)
	}
}

func TestService_Import_CoreOnly(t *testing.T) {
	svc := newTestService()
	f := validFields()
	f.VetName, f.VetLicense, f.WorkUnit = "", "", ""
	c := &Claim{Fields: f, Status: StatusApproved}
	if err := svc.Import(context.Background(), c); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if c.Status != StatusDraft {
		t.Errorf("imported claims start as DRAFT, got %s", c.Status)
	}
	if len(c.Ledger) != 0 {
		t.Errorf("expected empty ledger, got %d", len(c.Ledger))
	}

	bad := &Claim{Fields: Fields{PolicyNumber: "1"}}
	if err := svc.Import(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_Update_ReplacesLedger(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, validFields(), validLedger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f := c.Fields
	f.DamageCause = "Toplotni udar"
	replacement := Ledger{{Date: NewDate(2024, 3, 5), Headcount: 19000, Deaths: 12, Diagnosis: "Hipertermija"}}
	updated, err := svc.Update(ctx, c.ID, f, replacement, c.Version)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if updated.DamageCause != "Toplotni udar" {
		t.Errorf("expected new damage cause, got %q", updated.DamageCause)
	}
	if len(updated.Ledger) != 1 || updated.Ledger[0].Deaths != 12 {
		t.Fatalf("expected the ledger to be replaced, got %+v", updated.Ledger)
	}

	reloaded, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(reloaded.Ledger) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(reloaded.Ledger))
	}
	if !reloaded.CreatedAt.Equal(c.CreatedAt) {
		t.Error("update must keep the creation time")
	}
}

func TestService_Update_Locked(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, validFields(), validLedger())
	if _, err := svc.AdvanceStatus(ctx, c.ID, StatusSubmitted); err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}

	f := c.Fields
	f.VetName = "dr Neko Drugi"
	_, err := svc.Update(ctx, c.ID, f, validLedger(), 0)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	stored, _ := svc.Get(ctx, c.ID)
	if stored.VetName != "dr Petar Petrović" {
		t.Errorf("locked claim must stay unchanged, got vet %q", stored.VetName)
	}
}

func TestService_Update_CustomLockPolicy(t *testing.T) {
	svc := NewService(NewMemoryRepository(), LockedSet(StatusApproved), zerolog.Nop())
	ctx := context.Background()
	c, _ := svc.Create(ctx, validFields(), validLedger())
	svc.AdvanceStatus(ctx, c.ID, StatusSubmitted)

	if _, err := svc.Update(ctx, c.ID, c.Fields, validLedger(), 0); err != nil {
		t.Errorf("SUBMITTED should be editable with this policy, got %v", err)
	}
	svc.AdvanceStatus(ctx, c.ID, StatusApproved)
	if _, err := svc.Update(ctx, c.ID, c.Fields, validLedger(), 0); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked for APPROVED, got %v", err)
	}
}

func TestService_Update_VersionConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, validFields(), validLedger())
	if _, err := svc.Update(ctx, c.ID, c.Fields, validLedger(), 1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := svc.Update(ctx, c.ID, c.Fields, validLedger(), 1); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestService_Update_NotFoundAndInvalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Update(ctx, uuid.New(), validFields(), validLedger(), 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	c, _ := svc.Create(ctx, validFields(), validLedger())
	if _, err := svc.Update(ctx, c.ID, c.Fields, Ledger{}, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for an empty ledger, got %v", err)
	}
	stored, _ := svc.Get(ctx, c.ID)
	if stored.Version != 1 {
		t.Errorf("rejected update must not bump the version, got %d", stored.Version)
	}
}

func TestService_AdvanceStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, validFields(), validLedger())

	// Any status may follow any other.
	for _, st := range []Status{StatusApproved, StatusDraft, StatusRejected} {
		got, err := svc.AdvanceStatus(ctx, c.ID, st)
		if err != nil {
			t.Fatalf("AdvanceStatus(%s): %v", st, err)
		}
		if got.Status != st {
			t.Errorf("expected %s, got %s", st, got.Status)
		}
	}
	if _, err := svc.AdvanceStatus(ctx, c.ID, Status("CLOSED")); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, uuid.New(), StatusSubmitted); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	first, _ := svc.Create(ctx, validFields(), validLedger())
	f := validFields()
	f.PolicyNumber = "900001"
	f.InsuredParty = "Živinarstvo Sombor"
	second, _ := svc.Create(ctx, f, validLedger())
	svc.AdvanceStatus(ctx, second.ID, StatusSubmitted)

	all, total, err := svc.List(ctx, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || all[0].ID != second.ID {
		t.Errorf("expected newest first, got total=%d first=%v", total, all[0].ID)
	}

	byStatus, _, _ := svc.List(ctx, ListFilter{Status: StatusDraft}, 10, 0)
	if len(byStatus) != 1 || byStatus[0].ID != first.ID {
		t.Errorf("expected only the draft claim, got %d", len(byStatus))
	}

	bySearch, _, _ := svc.List(ctx, ListFilter{Search: "sombor"}, 10, 0)
	if len(bySearch) != 1 || bySearch[0].ID != second.ID {
		t.Errorf("expected search to match insured party, got %d", len(bySearch))
	}

	page, total, _ := svc.List(ctx, ListFilter{}, 1, 1)
	if total != 2 || len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("unexpected second page: total=%d len=%d", total, len(page))
	}
}
