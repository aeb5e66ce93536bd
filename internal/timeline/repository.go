package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

// Repository handles timeline item persistence. Cross-row invariants (the
// two-item swap and the delete reindex) are kept inside single transactions;
// the unique (event_id, sort_order) constraint is deferred to commit.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a timeline repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, event_id, name, description, date, type, sort_order, is_public, is_completed, created_at, updated_at`

// Create appends a new item at the tail: sort_order = current count + 1.
func (r *Repository) Create(ctx context.Context, item *models.TimelineItem) error {
	const q = `INSERT INTO timeline_items (id, event_id, name, description, date, type, sort_order, is_public)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(sort_order), 0) + 1 FROM timeline_items WHERE event_id = $1),
			$6)
		RETURNING id, sort_order, is_completed, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, item.EventID, item.Name, item.Description, item.Date, string(item.Type), item.IsPublic).
		Scan(&item.ID, &item.SortOrder, &item.IsCompleted, &item.CreatedAt, &item.UpdatedAt)
}

// GetByID returns a timeline item, or nil if not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.TimelineItem, error) {
	var it models.TimelineItem
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM timeline_items WHERE id = $1`, id).
		Scan(&it.ID, &it.EventID, &it.Name, &it.Description, &it.Date, &it.Type, &it.SortOrder,
			&it.IsPublic, &it.IsCompleted, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.TimelineItem, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TimelineItem
	for rows.Next() {
		var it models.TimelineItem
		if err := rows.Scan(&it.ID, &it.EventID, &it.Name, &it.Description, &it.Date, &it.Type, &it.SortOrder,
			&it.IsPublic, &it.IsCompleted, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// ListByEvent returns all items of an event in display order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM timeline_items WHERE event_id = $1 ORDER BY sort_order ASC, date ASC`, eventID)
}

// ListPublicByEvent returns the public items of an event in display order.
func (r *Repository) ListPublicByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TimelineItem, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM timeline_items WHERE event_id = $1 AND is_public ORDER BY sort_order ASC, date ASC`, eventID)
}

// UpdateParams are the mutable timeline item fields; nil means leave untouched.
type UpdateParams struct {
	Name        *string
	Description *string
	Date        *time.Time
	Type        *string
	SortOrder   *int
	IsPublic    *bool
	IsCompleted *bool
}

// Update applies a partial update to a timeline item.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	const q = `UPDATE timeline_items SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			date = COALESCE($3, date),
			type = COALESCE($4, type),
			sort_order = COALESCE($5, sort_order),
			is_public = COALESCE($6, is_public),
			is_completed = COALESCE($7, is_completed),
			updated_at = NOW()
		WHERE id = $8`
	_, err := r.pool.Exec(ctx, q, p.Name, p.Description, p.Date, p.Type, p.SortOrder, p.IsPublic, p.IsCompleted, id)
	return err
}

// SwapOrder exchanges the sort orders of two items in one transaction.
// Both updates apply or neither does.
func (r *Repository) SwapOrder(ctx context.Context, a, b models.TimelineItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE timeline_items SET sort_order = $1, updated_at = NOW() WHERE id = $2`,
		b.SortOrder, a.ID); err != nil {
		return fmt.Errorf("swap first: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE timeline_items SET sort_order = $1, updated_at = NOW() WHERE id = $2`,
		a.SortOrder, b.ID); err != nil {
		return fmt.Errorf("swap second: %w", err)
	}
	return tx.Commit(ctx)
}

// DeleteAndReindex removes an item and renumbers the remaining items of the
// event to a contiguous 1..N by (sort_order, date), all in one transaction.
func (r *Repository) DeleteAndReindex(ctx context.Context, id, eventID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM timeline_items WHERE id = $1 AND event_id = $2`, id, eventID)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	const reindex = `UPDATE timeline_items t SET sort_order = ranked.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY sort_order ASC, date ASC) AS rn
			FROM timeline_items WHERE event_id = $1
		) ranked
		WHERE t.id = ranked.id AND t.sort_order <> ranked.rn`
	if _, err := tx.Exec(ctx, reindex, eventID); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	return tx.Commit(ctx)
}
