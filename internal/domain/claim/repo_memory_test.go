package claim

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := &Claim{Fields: validFields(), Status: StatusDraft, Ledger: validLedger()}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := repo.GetByID(ctx, c.ID)
	got.InsuredParty = "changed"
	got.Ledger[0].Deaths = 999

	again, _ := repo.GetByID(ctx, c.ID)
	if again.InsuredParty == "changed" || again.Ledger[0].Deaths == 999 {
		t.Error("mutating a returned claim must not change the stored one")
	}
	if again.Ledger[0].ClaimID != c.ID {
		t.Error("expected records to point at their claim")
	}
}

func TestMemoryRepository_UpdateAbortsOnMutateError(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := &Claim{Fields: validFields(), Status: StatusDraft, Ledger: validLedger()}
	repo.Create(ctx, c)

	boom := errors.New("boom")
	_, err := repo.Update(ctx, c.ID, func(cur *Claim) error {
		cur.InsuredParty = "half written"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	stored, _ := repo.GetByID(ctx, c.ID)
	if stored.InsuredParty == "half written" || stored.Version != 1 {
		t.Errorf("aborted update leaked: %+v", stored)
	}
}

func TestMemoryRepository_UpdateKeepsNaturalKeyUnique(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	a := &Claim{Fields: validFields(), Status: StatusDraft}
	repo.Create(ctx, a)
	f := validFields()
	f.HoldingID = "RS-HID-0099"
	b := &Claim{Fields: f, Status: StatusDraft}
	repo.Create(ctx, b)

	_, err := repo.Update(ctx, b.ID, func(cur *Claim) error {
		cur.HoldingID = a.HoldingID
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryRepository_ListByPolicyNumber(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for _, hid := range []string{"HID-1", "HID-2"} {
		f := validFields()
		f.HoldingID = hid
		repo.Create(ctx, &Claim{Fields: f, Status: StatusDraft})
	}
	other := validFields()
	other.PolicyNumber = "111"
	repo.Create(ctx, &Claim{Fields: other, Status: StatusDraft})

	items, total, err := repo.List(ctx, ListFilter{PolicyNumber: "806411"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 claims for the policy, got total=%d len=%d", total, len(items))
	}

	items, total, _ = repo.List(ctx, ListFilter{}, 10, 5)
	if total != 3 || len(items) != 0 {
		t.Errorf("offset past the end should be empty, got total=%d len=%d", total, len(items))
	}
}
