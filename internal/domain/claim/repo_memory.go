package claim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps claims in process memory. It backs STORAGE=memory
// and tests of packages that sit on top of the claim service.
type MemoryRepository struct {
	mu     sync.RWMutex
	claims map[uuid.UUID]*Claim
	order  map[uuid.UUID]int64
	seq    int64
	now    func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		claims: make(map[uuid.UUID]*Claim),
		order:  make(map[uuid.UUID]int64),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, c *Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(c); err != nil {
		return err
	}
	c.ID = uuid.New()
	c.Version = 1
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	r.assignRecordIDs(c)

	r.seq++
	r.claims[c.ID] = c.Clone()
	r.order[c.ID] = r.seq
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.view(c), nil
}

func (r *MemoryRepository) Update(_ context.Context, id uuid.UUID, mutate func(current *Claim) error) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := stored.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	if err := r.checkUnique(next); err != nil {
		return nil, err
	}
	next.CreatedAt = stored.CreatedAt
	next.Version = stored.Version + 1
	next.UpdatedAt = r.now()
	r.assignRecordIDs(next)
	r.claims[id] = next
	return r.view(next), nil
}

func (r *MemoryRepository) PatchStatus(_ context.Context, id uuid.UUID, status Status) (*Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.Status = status
	c.Version++
	c.UpdatedAt = r.now()
	return r.view(c), nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Claim, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Claim
	for _, c := range r.claims {
		if matches(c, filter) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.order[matched[i].ID] > r.order[matched[j].ID]
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]*Claim, 0, end-offset)
	for _, c := range matched[offset:end] {
		out = append(out, r.view(c))
	}
	return out, total, nil
}

func matches(c *Claim, f ListFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.PolicyNumber != "" && c.PolicyNumber != f.PolicyNumber {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		for _, v := range []string{c.InsuredParty, c.Breed, c.PolicyNumber, c.WorkUnit} {
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
		return false
	}
	return true
}

// checkUnique enforces the natural key (policy number, holding id, period start).
func (r *MemoryRepository) checkUnique(c *Claim) error {
	for id, other := range r.claims {
		if id == c.ID {
			continue
		}
		if other.PolicyNumber == c.PolicyNumber && other.HoldingID == c.HoldingID && other.PeriodStart.Equal(c.PeriodStart.Time) {
			return fmt.Errorf("%w: policy %s, HID %s, period from %s", ErrConflict, c.PolicyNumber, c.HoldingID, c.PeriodStart)
		}
	}
	return nil
}

// assignRecordIDs gives every record a fresh identity, as a ledger replace
// does in the database.
func (r *MemoryRepository) assignRecordIDs(c *Claim) {
	for i := range c.Ledger {
		c.Ledger[i].ID = uuid.New()
		c.Ledger[i].ClaimID = c.ID
	}
}

func (r *MemoryRepository) view(c *Claim) *Claim {
	out := c.Clone()
	out.Ledger = out.Ledger.Sorted()
	return out
}
