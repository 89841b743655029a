package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livestock/claims/internal/domain/claim"
)

// ClaimLoader fetches stored claims by id.
type ClaimLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*claim.Claim, error)
}

// Document is a rendered export ready to be downloaded.
type Document struct {
	Filename string
	Data     []byte
}

type Exporter struct {
	claims ClaimLoader
	writer Writer
	now    func() time.Time
	logger zerolog.Logger
}

func NewExporter(claims ClaimLoader, writer Writer, logger zerolog.Logger) *Exporter {
	if writer == nil {
		writer = XLSXWriter{}
	}
	return &Exporter{claims: claims, writer: writer, now: time.Now, logger: logger}
}

// Filename is the download name of an export produced at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("prijava-stete-%s.xlsx", t.Format("2006-01-02"))
}

// Export loads the claims by id, in the given order, and renders them.
func (e *Exporter) Export(ctx context.Context, ids []uuid.UUID, mode Mode) (*Document, error) {
	claims := make([]*claim.Claim, 0, len(ids))
	for _, id := range ids {
		c, err := e.claims.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return e.Render(claims, mode)
}

// Render lays out and writes claims that are already in memory.
func (e *Exporter) Render(claims []*claim.Claim, mode Mode) (*Document, error) {
	now := e.now()
	sheets, err := Build(claims, mode, now)
	if err != nil {
		return nil, err
	}
	data, err := e.writer.Write(sheets)
	if err != nil {
		e.logger.Error().Err(err).Int("claims", len(claims)).Msg("export failed")
		return nil, fmt.Errorf("%w: %v", claim.ErrUnavailable, err)
	}
	e.logger.Info().Int("claims", len(claims)).Str("mode", string(mode)).Int("bytes", len(data)).Msg("claims exported")
	return &Document{Filename: Filename(now), Data: data}, nil
}
