package claim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	claims Repository
	locked LockPolicy
	logger zerolog.Logger
}

func NewService(claims Repository, locked LockPolicy, logger zerolog.Logger) *Service {
	if locked == nil {
		locked = LockedSet(DefaultLockedStatuses...)
	}
	return &Service{claims: claims, locked: locked, logger: logger}
}

// IsLocked reports whether a claim in status s rejects full updates.
func (s *Service) IsLocked(st Status) bool {
	return s.locked(st)
}

// Create validates a claim from the entry form and stores it as a draft.
func (s *Service) Create(ctx context.Context, f Fields, ledger Ledger) (*Claim, error) {
	f.normalize()
	if err := validateFull(f, ledger); err != nil {
		return nil, err
	}
	c := &Claim{Fields: f, Status: StatusDraft, Ledger: ledger.Sorted()}
	if err := s.claims.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("claim_id", c.ID.String()).Str("policy_number", c.PolicyNumber).
		Int("records", len(c.Ledger)).Msg("claim created")
	return c, nil
}

// Import stores a claim built from a policy row. Only the core fields are
// checked; the veterinarian data and the ledger are filled in later.
func (s *Service) Import(ctx context.Context, c *Claim) error {
	c.normalize()
	ve := &ValidationError{}
	validateCore(c.Fields, ve)
	if err := ve.orNil(); err != nil {
		return err
	}
	c.Status = StatusDraft
	c.Ledger = c.Ledger.Sorted()
	return s.claims.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Claim, int, error) {
	return s.claims.List(ctx, filter, limit, offset)
}

// Update replaces the scalar fields and the whole ledger of a claim. An
// expectedVersion of zero skips the optimistic concurrency check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, f Fields, ledger Ledger, expectedVersion int) (*Claim, error) {
	f.normalize()
	validation := validateFull(f, ledger)

	updated, err := s.claims.Update(ctx, id, func(current *Claim) error {
		if s.locked(current.Status) {
			return fmt.Errorf("%w: status %s", ErrLocked, current.Status)
		}
		if expectedVersion > 0 && expectedVersion != current.Version {
			return fmt.Errorf("%w: expected version %d, current %d", ErrVersionConflict, expectedVersion, current.Version)
		}
		if validation != nil {
			return validation
		}
		current.Fields = f
		current.Ledger = ledger.Sorted()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("claim_id", id.String()).Int("version", updated.Version).
		Int("records", len(updated.Ledger)).Msg("claim updated")
	return updated, nil
}

// AdvanceStatus writes only the status. Any status may follow any other.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, st Status) (*Claim, error) {
	if !st.Valid() {
		return nil, Invalid("unknown status %q", st)
	}
	c, err := s.claims.PatchStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("claim_id", id.String()).Str("status", string(st)).Msg("claim status changed")
	return c, nil
}
