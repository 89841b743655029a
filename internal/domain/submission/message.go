package submission

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/domain/export"
	"github.com/livestock/claims/internal/platform/notification"
)

// claimView is one claim as shown in a submission message.
type claimView struct {
	*claim.Claim
	Records []recordView
	Totals  claim.Summary
}

type recordView struct {
	Date      string
	Headcount int
	Deaths    int
	Diagnosis string
	Treatment string
}

func newClaimView(c *claim.Claim) claimView {
	ledger := c.Ledger.Sorted()
	v := claimView{Claim: c, Records: make([]recordView, 0, len(ledger))}
	for _, r := range ledger {
		v.Records = append(v.Records, recordView{
			Date:      export.FormatDate(r.Date),
			Headcount: r.Headcount,
			Deaths:    r.Deaths,
			Diagnosis: r.Diagnosis,
			Treatment: r.Treatment,
		})
	}
	s, err := claim.Summarize(ledger, c.InitialHeadcount)
	if err != nil {
		s.DeathRatePercent = "-"
	}
	v.Totals = s
	return v
}

func (v claimView) line() string {
	return fmt.Sprintf("- %s %s (HID %s), period %s - %s: uginulo %d kom, prosečno dnevno %s, %s od useljenih",
		v.Breed, v.Facility, v.HoldingID,
		export.FormatDate(v.PeriodStart), export.FormatDate(v.PeriodEnd),
		v.Totals.TotalDeaths, v.Totals.AverageDailyDeaths, v.Totals.DeathRatePercent)
}

// sentAtFormat renders a dispatch time, e.g. "5. 1. 2025. 10:04".
func sentAtFormat(t time.Time) string {
	return export.FormatDate(claim.DateOf(t)) + " " + t.Format("15:04")
}

// Compose formats claims into one message. Subject and plain text come from
// the claim submission template; the HTML alternative lists every claim's
// data, ledger and summary.
func Compose(engine *notification.TemplateEngine, claims []*claim.Claim, sentAt time.Time) (notification.Message, error) {
	if len(claims) == 0 {
		return notification.Message{}, claim.Invalid("no claims to submit")
	}
	views := make([]claimView, 0, len(claims))
	lines := make([]string, 0, len(claims))
	for _, c := range claims {
		v := newClaimView(c)
		views = append(views, v)
		lines = append(lines, v.line())
	}

	first := claims[0]
	subject, text, err := engine.Render(notification.TemplateClaimSubmission, map[string]string{
		"insured":  first.InsuredParty,
		"policy":   first.PolicyNumber,
		"breed":    first.Breed,
		"facility": first.Facility,
		"claims":   strings.Join(lines, "\n"),
		"sent_at":  sentAtFormat(sentAt),
	})
	if err != nil {
		return notification.Message{}, err
	}

	var buf bytes.Buffer
	err = htmlBody.Execute(&buf, map[string]interface{}{
		"Insured": first.InsuredParty,
		"Policy":  first.PolicyNumber,
		"Claims":  views,
		"SentAt":  sentAtFormat(sentAt),
	})
	if err != nil {
		return notification.Message{}, fmt.Errorf("render html body: %w", err)
	}
	return notification.Message{Subject: subject, Text: text, HTML: buf.String()}, nil
}

var htmlBody = template.Must(template.New("submission").Funcs(template.FuncMap{
	"date": export.FormatDate,
	"dash": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.header { background: #2563eb; color: white; padding: 20px; text-align: center; }
.section { margin: 20px 0; padding: 15px; border: 1px solid #ddd; border-radius: 5px; }
table { width: 100%; border-collapse: collapse; margin: 10px 0; }
th, td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
th { background-color: #f3f4f6; }
.summary { background-color: #f0f9ff; padding: 15px; border-radius: 5px; }
</style>
</head>
<body>
<div class="header">
<h1>Prijava štete na živini</h1>
<p>{{.Insured}} - Polisa #{{.Policy}}</p>
</div>
{{range .Claims}}
<div class="section">
<h2>Osnovni podaci</h2>
<table>
<tr><th>Osiguranik</th><td>{{.InsuredParty}}</td></tr>
<tr><th>Radna jedinica/farma</th><td>{{.WorkUnit}}</td></tr>
<tr><th>Vrsta/Kategorija</th><td>{{.Breed}} / {{.Category}}</td></tr>
<tr><th>Objekat</th><td>{{.Facility}}</td></tr>
<tr><th>BPG</th><td>{{.FarmRegistryID}}</td></tr>
<tr><th>HID</th><td>{{.HoldingID}}</td></tr>
<tr><th>Broj polise</th><td>{{.PolicyNumber}}</td></tr>
<tr><th>Datum početka osiguranja</th><td>{{date .PolicyStart}}</td></tr>
<tr><th>Datum isteka osiguranja</th><td>{{date .PolicyEnd}}</td></tr>
<tr><th>Broj useljenih</th><td>{{.InitialHeadcount}}</td></tr>
</table>
</div>
<div class="section">
<h2>Podaci o šteti</h2>
<table>
<tr><th>Vrsta štete</th><td>{{.DamageType}}</td></tr>
<tr><th>Uzrok štete</th><td>{{.DamageCause}}</td></tr>
<tr><th>Veterinar</th><td>{{.VetName}}</td></tr>
<tr><th>Broj licence</th><td>{{.VetLicense}}</td></tr>
<tr><th>Prijava štete od</th><td>{{date .PeriodStart}}</td></tr>
<tr><th>Prijava štete do</th><td>{{date .PeriodEnd}}</td></tr>
</table>
</div>
<div class="section">
<h2>Dnevni zapisnici štete</h2>
<table>
<thead><tr><th>Datum</th><th>Brojno stanje</th><th>Uginulo</th><th>Dijagnoza</th><th>Terapija</th></tr></thead>
<tbody>
{{range .Records}}<tr><td>{{.Date}}</td><td>{{.Headcount}}</td><td>{{.Deaths}}</td><td>{{.Diagnosis}}</td><td>{{dash .Treatment}}</td></tr>
{{end}}</tbody>
</table>
</div>
<div class="summary">
<h2>Rezime štete</h2>
<p>Total uginulih: <strong>{{.Totals.TotalDeaths}}</strong></p>
<p>Prosečno dnevno: <strong>{{.Totals.AverageDailyDeaths}}</strong></p>
<p>Procenat od useljenih: <strong>{{.Totals.DeathRatePercent}}</strong></p>
</div>
{{end}}
<p style="color: #666; font-size: 12px;">Poslato {{.SentAt}}. Ova prijava je automatski generisana iz sistema prijave štete na živini.</p>
</body>
</html>
`))
