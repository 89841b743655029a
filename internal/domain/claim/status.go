package claim

import (
	"strings"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusInReview  Status = "IN_REVIEW"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSubmitted, StatusInReview, StatusApproved, StatusRejected}

// legacyStatuses maps the values stored by the first version of the
// application to the current enum.
var legacyStatuses = map[string]Status{
	"U_RADU":   StatusDraft,
	"PODNETA":  StatusSubmitted,
	"U_OBRADI": StatusInReview,
	"ODOBRENA": StatusApproved,
	"ODBIJENA": StatusRejected,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts current and legacy status names, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "", Invalid("status is required")
	}
	if s := Status(v); s.Valid() {
		return s, nil
	}
	if s, ok := legacyStatuses[v]; ok {
		return s, nil
	}
	return "", Invalid("unknown status %q", raw)
}

// LockPolicy reports whether a claim in the given status may no longer be
// edited. Draft claims are always editable.
type LockPolicy func(Status) bool

// DefaultLockedStatuses locks every status past DRAFT.
var DefaultLockedStatuses = []Status{StatusSubmitted, StatusInReview, StatusApproved, StatusRejected}

// LockedSet builds a LockPolicy from an explicit set of statuses.
func LockedSet(statuses ...Status) LockPolicy {
	locked := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		if s != StatusDraft {
			locked[s] = true
		}
	}
	return func(s Status) bool { return locked[s] }
}

// ParseLockedSet parses a comma separated status list, e.g. from config.
func ParseLockedSet(raw string) (LockPolicy, error) {
	if strings.TrimSpace(raw) == "" {
		return LockedSet(DefaultLockedStatuses...), nil
	}
	var statuses []Status
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseStatus(part)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return LockedSet(statuses...), nil
}
