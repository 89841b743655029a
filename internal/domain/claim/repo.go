package claim

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a claim listing. Zero values match everything.
type ListFilter struct {
	Status       Status
	PolicyNumber string
	// Search matches insured party, breed, policy number and work unit,
	// case-insensitively.
	Search string
}

// Repository is the storage boundary for claims and their ledgers.
type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// Update loads the claim, lets mutate change it and then writes the
	// scalar fields and the whole ledger in one transaction. Any error from
	// mutate aborts the write.
	Update(ctx context.Context, id uuid.UUID, mutate func(current *Claim) error) (*Claim, error)
	PatchStatus(ctx context.Context, id uuid.UUID, status Status) (*Claim, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Claim, int, error)
}
