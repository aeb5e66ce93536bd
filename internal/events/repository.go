package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

// Repository handles event, area and paper type persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, organization_id, name, slug, description, starts_at, ends_at, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.Name, e.Slug, e.Description, e.StartsAt, e.EndsAt, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

const eventColumns = `id, organization_id, name, slug, description, starts_at, ends_at, is_published, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Slug, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID returns an event by ID, or nil if not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// GetBySlug returns an event by slug, or nil if not found.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug))
}

// GetEventOrganization returns the owning organization id.
// Returns pgx.ErrNoRows when the event does not exist.
func (r *Repository) GetEventOrganization(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT organization_id FROM events WHERE id = $1`, eventID).Scan(&orgID)
	return orgID, err
}

// ListByOrganization returns events of an organization, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE organization_id = $1 ORDER BY starts_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Slug, &e.Description, &e.StartsAt, &e.EndsAt,
			&e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListPublished returns published events, soonest first.
func (r *Repository) ListPublished(ctx context.Context) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE is_published ORDER BY starts_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Slug, &e.Description, &e.StartsAt, &e.EndsAt,
			&e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateParams are the mutable event fields; nil means leave untouched.
type UpdateParams struct {
	Name        *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	IsPublished *bool
}

// Update applies a partial update to an event.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	const q = `UPDATE events SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			starts_at = COALESCE($3, starts_at),
			ends_at = COALESCE($4, ends_at),
			is_published = COALESCE($5, is_published),
			updated_at = NOW()
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, q, p.Name, p.Description, p.StartsAt, p.EndsAt, p.IsPublished, id)
	return err
}

// Delete removes an event (timeline, papers and lookups cascade).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

// CreateArea adds a subject area to an event.
func (r *Repository) CreateArea(ctx context.Context, a *models.Area) error {
	const q = `INSERT INTO areas (id, event_id, name) VALUES (gen_random_uuid(), $1, $2) RETURNING id`
	return r.pool.QueryRow(ctx, q, a.EventID, a.Name).Scan(&a.ID)
}

// ListAreas returns an event's subject areas.
func (r *Repository) ListAreas(ctx context.Context, eventID uuid.UUID) ([]models.Area, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, name FROM areas WHERE event_id = $1 ORDER BY name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Area
	for rows.Next() {
		var a models.Area
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// DeleteArea removes a subject area.
func (r *Repository) DeleteArea(ctx context.Context, eventID, areaID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM areas WHERE id = $1 AND event_id = $2`, areaID, eventID)
	return err
}

// CreatePaperType adds a submission category to an event.
func (r *Repository) CreatePaperType(ctx context.Context, t *models.PaperType) error {
	const q = `INSERT INTO paper_types (id, event_id, name) VALUES (gen_random_uuid(), $1, $2) RETURNING id`
	return r.pool.QueryRow(ctx, q, t.EventID, t.Name).Scan(&t.ID)
}

// ListPaperTypes returns an event's submission categories.
func (r *Repository) ListPaperTypes(ctx context.Context, eventID uuid.UUID) ([]models.PaperType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, name FROM paper_types WHERE event_id = $1 ORDER BY name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PaperType
	for rows.Next() {
		var t models.PaperType
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// DeletePaperType removes a submission category.
func (r *Repository) DeletePaperType(ctx context.Context, eventID, typeID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM paper_types WHERE id = $1 AND event_id = $2`, typeID, eventID)
	return err
}
