package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Activity levels mirror how severe the logged decision was.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ActivityMessageMaxLen caps stored activity messages. Composed message
// bodies and inbound excerpts get truncated, never rejected.
const ActivityMessageMaxLen = 500

type ActivityEntry struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Level     string
	Message   string
	CreatedAt time.Time
}

// AppendActivity writes one append-only activity line for a lead.
func (r *Repository) AppendActivity(ctx context.Context, leadID uuid.UUID, level, message string) error {
	message = strings.TrimSpace(message)
	if len(message) > ActivityMessageMaxLen {
		message = message[:ActivityMessageMaxLen] + "..."
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_activity_log (lead_id, level, message)
		VALUES ($1, $2, $3)
	`, leadID, level, message)
	return err
}

// RecentActivity returns the newest activity lines for a lead.
func (r *Repository) RecentActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]ActivityEntry, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, level, message, created_at
		FROM lead_activity_log
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]ActivityEntry, 0)
	for rows.Next() {
		var entry ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.Level, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}
