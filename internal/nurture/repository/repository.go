package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")

	// ErrConflict means another transition committed between our read and
	// our write. The caller must drop its work; the other write won.
	ErrConflict = errors.New("lead was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                  uuid.UUID
	Name                string
	Email               *string
	Phone               *string
	PipelineNotes       *string
	Stage               string
	ContactCount        int
	LastContactAt       *time.Time
	LastChannel         *string
	HasInboundResponses bool
	NextActionAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const leadColumns = `id, name, email, phone, pipeline_notes, stage, contact_count,
	last_contact_at, last_channel, has_inbound_responses, next_action_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.PipelineNotes,
		&lead.Stage, &lead.ContactCount, &lead.LastContactAt, &lead.LastChannel,
		&lead.HasInboundResponses, &lead.NextActionAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// FindDue returns leads whose next action is at or before the given
// moment, oldest first. The limit bounds one sweep batch; leftover due
// leads are picked up by the next tick.
func (r *Repository) FindDue(ctx context.Context, before time.Time, limit int) ([]Lead, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE next_action_at IS NOT NULL AND next_action_at <= $1
		ORDER BY next_action_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

// NurtureUpdate is the full set of fields the nurture engine owns on a
// lead. Every value is written on commit; callers pass the current value
// for fields they do not change.
type NurtureUpdate struct {
	Stage         string
	ContactCount  int
	LastContactAt *time.Time
	LastChannel   *string
	NextActionAt  *time.Time
}

// CommitNurture applies a nurture transition if and only if the lead is
// still in the state the caller read it in. The expectedUpdatedAt guard
// makes the write a compare-and-commit: when another transition landed
// in between, no row matches and ErrConflict comes back.
func (r *Repository) CommitNurture(ctx context.Context, id uuid.UUID, expectedUpdatedAt time.Time, u NurtureUpdate) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET stage = $3, contact_count = $4, last_contact_at = $5, last_channel = $6,
			next_action_at = $7, updated_at = now()
		WHERE id = $1 AND updated_at = $2
		RETURNING `+leadColumns,
		id, expectedUpdatedAt,
		u.Stage, u.ContactCount, u.LastContactAt, u.LastChannel, u.NextActionAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, r.commitConflict(ctx, id)
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// commitConflict distinguishes a lost optimistic race from a vanished
// lead so callers can log the right thing.
func (r *Repository) commitConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// SetInboundReceived flags that the lead has ever replied and returns the
// refreshed row. Runs before intent classification so the flag is durable
// even when routing fails halfway. The updated_at bump also invalidates
// any scheduled-send commit racing with this inbound message.
func (r *Repository) SetInboundReceived(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET has_inbound_responses = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// FindByEmail resolves an inbound address to the most recent matching
// lead. Webhook deliveries identify leads by contact surface, not id.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(email) = lower($1)
		ORDER BY created_at DESC
		LIMIT 1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// FindByPhone resolves a normalized E.164 number to the most recent
// matching lead.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}
