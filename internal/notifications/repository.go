package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

// Repository handles notification log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a queued notification log row.
func (r *Repository) Create(ctx context.Context, log *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (id, event_id, paper_id, recipient_email, kind, subject, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		log.EventID, log.PaperID, log.RecipientEmail, log.Kind, log.Subject, models.NotificationStatusQueued).
		Scan(&log.ID, &log.CreatedAt)
}

// MarkSent records successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_logs SET status = $1, sent_at = NOW(), error_message = '' WHERE id = $2`,
		models.NotificationStatusSent, id)
	return err
}

// MarkFailed records a delivery failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_logs SET status = $1, error_message = $2 WHERE id = $3`,
		models.NotificationStatusFailed, reason, id)
	return err
}

// ListByEvent returns the notification log of an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.NotificationLog, error) {
	const q = `SELECT id, event_id, paper_id, recipient_email, kind, subject, status, sent_at, error_message, created_at
		FROM notification_logs WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NotificationLog
	for rows.Next() {
		var n models.NotificationLog
		if err := rows.Scan(&n.ID, &n.EventID, &n.PaperID, &n.RecipientEmail, &n.Kind, &n.Subject,
			&n.Status, &n.SentAt, &n.ErrorMessage, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
