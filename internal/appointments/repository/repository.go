// Package repository provides persistence for viewing appointments.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no appointment matches.
var ErrNotFound = errors.New("appointment not found")

// ErrNoOpenProposal is returned when the appointment exists but is no
// longer in the proposed state.
var ErrNoOpenProposal = errors.New("appointment has no open proposal")

// Appointment statuses.
const (
	StatusProposed  = "proposed"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment is one viewing: proposed with candidate slots, then
// confirmed on one of them or cancelled.
type Appointment struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	Status        string
	ProposedSlots []time.Time
	ScheduledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const appointmentColumns = `id, lead_id, status, proposed_slots, scheduled_at, created_at, updated_at`

// Repository provides database operations for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		a        Appointment
		rawSlots []byte
	)
	err := row.Scan(&a.ID, &a.LeadID, &a.Status, &rawSlots, &a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Appointment{}, err
	}
	if len(rawSlots) > 0 {
		if err := json.Unmarshal(rawSlots, &a.ProposedSlots); err != nil {
			return Appointment{}, fmt.Errorf("decode proposed slots: %w", err)
		}
	}
	return a, nil
}

// Create stores a new proposal with its candidate slots.
func (r *Repository) Create(ctx context.Context, leadID uuid.UUID, slots []time.Time) (Appointment, error) {
	if r == nil || r.pool == nil {
		return Appointment{}, errors.New("appointment repository not initialized")
	}
	rawSlots, err := json.Marshal(slots)
	if err != nil {
		return Appointment{}, fmt.Errorf("encode proposed slots: %w", err)
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_appointments (lead_id, status, proposed_slots)
		VALUES ($1, $2, $3)
		RETURNING `+appointmentColumns,
		leadID, StatusProposed, rawSlots)
	a, err := scanAppointment(row)
	if err != nil {
		return Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	return a, nil
}

// Get retrieves an appointment by its ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	if r == nil || r.pool == nil {
		return Appointment{}, errors.New("appointment repository not initialized")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM lead_appointments
		WHERE id = $1
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListForLead returns a lead's appointments, newest first.
func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]Appointment, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("appointment repository not initialized")
	}
	if limit < 1 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM lead_appointments
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// Confirm settles an open proposal on the given slot. Only a proposed
// appointment can be confirmed.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (Appointment, error) {
	return r.settle(ctx, id, StatusConfirmed, &scheduledAt)
}

// Cancel closes an open proposal without picking a slot.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (Appointment, error) {
	return r.settle(ctx, id, StatusCancelled, nil)
}

func (r *Repository) settle(ctx context.Context, id uuid.UUID, status string, scheduledAt *time.Time) (Appointment, error) {
	if r == nil || r.pool == nil {
		return Appointment{}, errors.New("appointment repository not initialized")
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE lead_appointments
		SET status = $2, scheduled_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+appointmentColumns,
		id, status, scheduledAt, StatusProposed)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from one already settled.
			var exists bool
			checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lead_appointments WHERE id = $1)`, id).Scan(&exists)
			if checkErr == nil && exists {
				return Appointment{}, ErrNoOpenProposal
			}
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	return a, nil
}
