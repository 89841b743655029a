package submission

import (
	"errors"
	"strings"
	"testing"

	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/platform/notification"
)

func TestCompose(t *testing.T) {
	a := &claim.Claim{Fields: claimFields("744328008498", "FĆ 1"), Ledger: claimLedger()}
	b := &claim.Claim{Fields: claimFields("744328008499", "<FĆ 2>"), Ledger: claim.Ledger{
		{Date: claim.NewDate(2025, 1, 7), Headcount: 100, Deaths: 2, Diagnosis: "Newcastle", Treatment: "Vakcina"},
		{Date: claim.NewDate(2025, 1, 6), Headcount: 100, Deaths: 0, Diagnosis: "Newcastle"},
	}}
	b.InitialHeadcount = 100

	msg, err := Compose(notification.NewTemplateEngine(), []*claim.Claim{a, b}, sentAt)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if want := "Prijava štete - Spasić Farm doo Stalać - Lohmann Brown FĆ 1"; msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}

	for _, part := range []string{
		"Osiguranik: Spasić Farm doo Stalać",
		"Polisa: 806411",
		"- Lohmann Brown FĆ 1 (HID 744328008498), period 1. 1. 2025. - 31. 1. 2025.: uginulo 5 kom, prosečno dnevno 5.0, 0.03% od useljenih",
		"uginulo 2 kom, prosečno dnevno 1.0, 2.00% od useljenih",
		"Poslato: 3. 2. 2025. 10:04",
	} {
		if !strings.Contains(msg.Text, part) {
			t.Errorf("text body missing %q:\n%s", part, msg.Text)
		}
	}

	for _, part := range []string{
		"Spasić Farm doo Stalać - Polisa #806411",
		"&lt;FĆ 2&gt;",
		"<td>6. 1. 2025.</td><td>100</td><td>0</td><td>Newcastle</td><td>-</td>",
		"<td>7. 1. 2025.</td><td>100</td><td>2</td><td>Newcastle</td><td>Vakcina</td>",
		"Procenat od useljenih: <strong>0.03%</strong>",
	} {
		if !strings.Contains(msg.HTML, part) {
			t.Errorf("html body missing %q", part)
		}
	}
	if strings.Contains(msg.HTML, "<FĆ 2>") {
		t.Error("html body must escape claim data")
	}
	if strings.Index(msg.HTML, "6. 1. 2025.") > strings.Index(msg.HTML, "7. 1. 2025.") {
		t.Error("ledger must be listed in date order")
	}
}

func TestCompose_PlaceholderLikeInput(t *testing.T) {
	c := &claim.Claim{Fields: claimFields("744328008498", "FĆ 1"), Ledger: claimLedger()}
	c.InsuredParty = "Farma {{policy}}"
	for i := 0; i < 20; i++ {
		msg, err := Compose(notification.NewTemplateEngine(), []*claim.Claim{c}, sentAt)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if want := "Prijava štete - Farma {{policy}} - Lohmann Brown FĆ 1"; msg.Subject != want {
			t.Fatalf("subject = %q, want %q", msg.Subject, want)
		}
	}
}

func TestCompose_ZeroHeadcount(t *testing.T) {
	c := &claim.Claim{Fields: claimFields("744328008498", "FĆ 1"), Ledger: claimLedger()}
	c.InitialHeadcount = 0
	msg, err := Compose(notification.NewTemplateEngine(), []*claim.Claim{c}, sentAt)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(msg.Text, ", - od useljenih") {
		t.Errorf("expected undefined rate marker:\n%s", msg.Text)
	}
}

func TestCompose_NoClaims(t *testing.T) {
	if _, err := Compose(notification.NewTemplateEngine(), nil, sentAt); !errors.Is(err, claim.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
