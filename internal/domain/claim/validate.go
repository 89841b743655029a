package claim

// validateCore checks the invariants every stored claim satisfies, including
// imported policy rows that have no ledger yet.
func validateCore(f Fields, ve *ValidationError) {
	required(ve, "policy_number", f.PolicyNumber)
	required(ve, "insured_party", f.InsuredParty)
	required(ve, "facility", f.Facility)
	required(ve, "hid", f.HoldingID)

	if f.PolicyStart.IsZero() {
		ve.add("policy_start is required")
	}
	if f.PolicyEnd.IsZero() {
		ve.add("policy_end is required")
	}
	if f.PeriodStart.IsZero() {
		ve.add("period_start is required")
	}
	if f.PeriodEnd.IsZero() {
		ve.add("period_end is required")
	}
	if !f.PeriodStart.IsZero() && !f.PeriodEnd.IsZero() && f.PeriodEnd.Before(f.PeriodStart.Time) {
		ve.add("period_end must not be before period_start")
	}
	if !f.PolicyStart.IsZero() && !f.PolicyEnd.IsZero() && f.PolicyEnd.Before(f.PolicyStart.Time) {
		ve.add("policy_end must not be before policy_start")
	}
	if f.InitialHeadcount <= 0 {
		ve.add("initial_headcount must be a positive number")
	}
}

// validateFull is applied when a claim is saved from the entry form.
func validateFull(f Fields, ledger Ledger) error {
	ve := &ValidationError{}
	validateCore(f, ve)

	required(ve, "work_unit", f.WorkUnit)
	required(ve, "breed", f.Breed)
	required(ve, "damage_type", f.DamageType)
	required(ve, "damage_cause", f.DamageCause)
	required(ve, "vet_name", f.VetName)
	required(ve, "vet_license", f.VetLicense)

	validateLedger(ledger, ve)
	return ve.orNil()
}

func validateLedger(ledger Ledger, ve *ValidationError) {
	if len(ledger) == 0 {
		ve.add("at least one daily record is required")
		return
	}
	for i, r := range ledger {
		n := i + 1
		if r.Date.IsZero() {
			ve.add("daily record %d: date is required", n)
		}
		if r.Headcount < 0 {
			ve.add("daily record %d: headcount must not be negative", n)
		}
		if r.Deaths < 0 {
			ve.add("daily record %d: deaths must not be negative", n)
		}
	}
}

func required(ve *ValidationError, field, value string) {
	if value == "" {
		ve.add("%s is required", field)
	}
}
