package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livestock/claims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &claimRepoPG{pool: pool}
}

func (r *claimRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimCols = `id, policy_number, insured_party, work_unit, breed, category, facility,
	farm_registry_id, holding_id, policy_start, policy_end, initial_headcount, move_in_date,
	damage_type, damage_cause, vet_name, vet_license, period_start, period_end,
	status, version, created_at, updated_at`

const recordCols = `id, claim_id, record_date, headcount, deaths, diagnosis, treatment`

func (r *claimRepoPG) scanClaim(row pgx.Row) (*Claim, error) {
	var (
		c      Claim
		status string
		moveIn *time.Time
	)
	err := row.Scan(&c.ID, &c.PolicyNumber, &c.InsuredParty, &c.WorkUnit, &c.Breed, &c.Category, &c.Facility,
		&c.FarmRegistryID, &c.HoldingID, &c.PolicyStart.Time, &c.PolicyEnd.Time, &c.InitialHeadcount, &moveIn,
		&c.DamageType, &c.DamageCause, &c.VetName, &c.VetLicense, &c.PeriodStart.Time, &c.PeriodEnd.Time,
		&status, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	c.Status = Status(status)
	if moveIn != nil {
		d := DateOf(*moveIn)
		c.MoveInDate = &d
	}
	return &c, nil
}

func (r *claimRepoPG) Create(ctx context.Context, c *Claim) error {
	return mapError(db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		c.ID = uuid.New()
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO claim (id, policy_number, insured_party, work_unit, breed, category, facility,
				farm_registry_id, holding_id, policy_start, policy_end, initial_headcount, move_in_date,
				damage_type, damage_cause, vet_name, vet_license, period_start, period_end, status, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1)
			RETURNING version, created_at, updated_at`,
			c.ID, c.PolicyNumber, c.InsuredParty, c.WorkUnit, c.Breed, c.Category, c.Facility,
			c.FarmRegistryID, c.HoldingID, c.PolicyStart.Time, c.PolicyEnd.Time, c.InitialHeadcount, nullableDate(c.MoveInDate),
			c.DamageType, c.DamageCause, c.VetName, c.VetLicense, c.PeriodStart.Time, c.PeriodEnd.Time, string(c.Status),
		).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}
		return r.insertLedger(ctx, c)
	}))
}

func (r *claimRepoPG) insertLedger(ctx context.Context, c *Claim) error {
	for i := range c.Ledger {
		rec := &c.Ledger[i]
		rec.ID = uuid.New()
		rec.ClaimID = c.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO daily_record (`+recordCols+`, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rec.ID, rec.ClaimID, rec.Date.Time, rec.Headcount, rec.Deaths, rec.Diagnosis, rec.Treatment, i,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := r.scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLedgers(ctx, []*Claim{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *claimRepoPG) Update(ctx context.Context, id uuid.UUID, mutate func(current *Claim) error) (*Claim, error) {
	var out *Claim
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		current, err := r.scanClaim(r.conn(ctx).QueryRow(ctx,
			`SELECT `+claimCols+` FROM claim WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := r.loadLedgers(ctx, []*Claim{current}); err != nil {
			return err
		}
		if err := mutate(current); err != nil {
			return err
		}
		c := current
		err = r.conn(ctx).QueryRow(ctx, `
			UPDATE claim SET policy_number=$2, insured_party=$3, work_unit=$4, breed=$5, category=$6,
				facility=$7, farm_registry_id=$8, holding_id=$9, policy_start=$10, policy_end=$11,
				initial_headcount=$12, move_in_date=$13, damage_type=$14, damage_cause=$15, vet_name=$16,
				vet_license=$17, period_start=$18, period_end=$19, status=$20,
				version=version+1, updated_at=NOW()
			WHERE id = $1
			RETURNING version, updated_at`,
			id, c.PolicyNumber, c.InsuredParty, c.WorkUnit, c.Breed, c.Category,
			c.Facility, c.FarmRegistryID, c.HoldingID, c.PolicyStart.Time, c.PolicyEnd.Time,
			c.InitialHeadcount, nullableDate(c.MoveInDate), c.DamageType, c.DamageCause, c.VetName,
			c.VetLicense, c.PeriodStart.Time, c.PeriodEnd.Time, string(c.Status),
		).Scan(&c.Version, &c.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM daily_record WHERE claim_id = $1`, id); err != nil {
			return err
		}
		if err := r.insertLedger(ctx, c); err != nil {
			return err
		}
		c.Ledger = c.Ledger.Sorted()
		out = c
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *claimRepoPG) PatchStatus(ctx context.Context, id uuid.UUID, status Status) (*Claim, error) {
	c, err := r.scanClaim(r.conn(ctx).QueryRow(ctx, `
		UPDATE claim SET status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING `+claimCols, id, string(status)))
	if err != nil {
		return nil, err
	}
	if err := r.loadLedgers(ctx, []*Claim{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *claimRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Claim, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PolicyNumber != "" {
		args = append(args, filter.PolicyNumber)
		where = append(where, fmt.Sprintf("policy_number = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(LOWER(insured_party) LIKE $%d OR LOWER(breed) LIKE $%d OR LOWER(policy_number) LIKE $%d OR LOWER(work_unit) LIKE $%d)",
			n, n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM claim`+clause, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT `+claimCols+` FROM claim`+clause+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		c, err := r.scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	if err := r.loadLedgers(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadLedgers fills the ledger of every claim with one query, ordered by
// date and then by entry position.
func (r *claimRepoPG) loadLedgers(ctx context.Context, claims []*Claim) error {
	if len(claims) == 0 {
		return nil
	}
	ids := make([]string, len(claims))
	byID := make(map[uuid.UUID]*Claim, len(claims))
	for i, c := range claims {
		ids[i] = c.ID.String()
		c.Ledger = Ledger{}
		byID[c.ID] = c
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM daily_record
		WHERE claim_id = ANY($1::uuid[]) ORDER BY claim_id, record_date ASC, position ASC`, ids)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec DailyRecord
		if err := rows.Scan(&rec.ID, &rec.ClaimID, &rec.Date.Time, &rec.Headcount, &rec.Deaths,
			&rec.Diagnosis, &rec.Treatment); err != nil {
			return mapError(err)
		}
		if c, ok := byID[rec.ClaimID]; ok {
			c.Ledger = append(c.Ledger, rec)
		}
	}
	return mapError(rows.Err())
}

func nullableDate(d *Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}

// mapError translates driver errors into the claim error taxonomy. Errors
// already in the taxonomy pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrLocked, ErrNotFound, ErrConflict, ErrVersionConflict, ErrUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503", "23514", "23502", "22001":
			return Invalid("%s", pgErr.Message)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, db.ErrNoPool) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
