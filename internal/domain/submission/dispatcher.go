package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/platform/notification"
)

// ClaimStore reads claims and writes their status.
type ClaimStore interface {
	Get(ctx context.Context, id uuid.UUID) (*claim.Claim, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, st claim.Status) (*claim.Claim, error)
}

// Sender hands a message to the mail transport.
type Sender interface {
	Send(ctx context.Context, msg notification.Message, metadata map[string]string) (*notification.Notification, error)
}

// Result is the outcome of a successful submission.
type Result struct {
	MessageID string         `json:"message_id"`
	Claims    []*claim.Claim `json:"claims"`
}

// Dispatcher submits claims: every claim is moved to SUBMITTED first and the
// message is sent afterwards. When sending fails and rollback is enabled the
// previous statuses are restored.
type Dispatcher struct {
	claims    ClaimStore
	sender    Sender
	templates *notification.TemplateEngine
	rollback  bool
	now       func() time.Time
	logger    zerolog.Logger
}

func NewDispatcher(claims ClaimStore, sender Sender, rollback bool, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		claims:    claims,
		sender:    sender,
		templates: notification.NewTemplateEngine(),
		rollback:  rollback,
		now:       time.Now,
		logger:    logger,
	}
}

// Submit notifies recipient about the claims. An empty recipient uses the
// configured default. Unknown ids fail before any status is changed.
func (d *Dispatcher) Submit(ctx context.Context, ids []uuid.UUID, recipient string) (*Result, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return nil, claim.Invalid("at least one claim id is required")
	}

	loaded := make([]*claim.Claim, 0, len(ids))
	for _, id := range ids {
		c, err := d.claims.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}

	msg, err := Compose(d.templates, loaded, d.now())
	if err != nil {
		return nil, err
	}
	msg.To = recipient

	previous := make(map[uuid.UUID]claim.Status, len(loaded))
	advanced := make([]*claim.Claim, 0, len(loaded))
	for _, c := range loaded {
		updated, err := d.claims.AdvanceStatus(ctx, c.ID, claim.StatusSubmitted)
		if err != nil {
			d.restore(ctx, previous)
			return nil, err
		}
		previous[c.ID] = c.Status
		advanced = append(advanced, updated)
	}
	d.logger.Info().Int("claims", len(advanced)).Msg("claims advanced to submitted")

	n, err := d.sender.Send(ctx, msg, map[string]string{
		"policy_number": loaded[0].PolicyNumber,
		"claims":        fmt.Sprint(len(loaded)),
	})
	if err != nil {
		d.logger.Error().Err(err).Int("claims", len(loaded)).Msg("submission email failed")
		if d.rollback {
			d.restore(ctx, previous)
		}
		return nil, fmt.Errorf("%w: %v", claim.ErrUnavailable, err)
	}

	d.logger.Info().Str("message_id", n.ID).Str("recipient", n.Recipient).
		Int("claims", len(advanced)).Msg("claims submitted")
	return &Result{MessageID: n.ID, Claims: advanced}, nil
}

// restoreTimeout bounds the compensating writes. They run detached from the
// request context, which is usually the reason the send failed.
const restoreTimeout = 10 * time.Second

// restore puts claims back to the status they had before submission.
// Failures are logged; the original error is what the caller sees.
func (d *Dispatcher) restore(parent context.Context, previous map[uuid.UUID]claim.Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), restoreTimeout)
	defer cancel()
	for id, st := range previous {
		if _, err := d.claims.AdvanceStatus(ctx, id, st); err != nil {
			d.logger.Error().Err(err).Str("claim_id", id.String()).Str("status", string(st)).
				Msg("could not restore claim status")
			continue
		}
		d.logger.Warn().Str("claim_id", id.String()).Str("status", string(st)).Msg("claim status restored")
	}
}

func unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
