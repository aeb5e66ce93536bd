package papers

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

// Repository handles paper, author and history persistence. Every mutation
// that touches status also appends its history row in the same transaction,
// so status always matches the newest history entry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a papers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paperColumns = `id, event_id, area_id, paper_type_id, title, abstract, keywords, status, file_key, created_at, updated_at`

func scanPaper(row pgx.Row) (*models.Paper, error) {
	var p models.Paper
	err := row.Scan(&p.ID, &p.EventID, &p.AreaID, &p.PaperTypeID, &p.Title, &p.Abstract, &p.Keywords,
		&p.Status, &p.FileKey, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the paper, its author rows and the initial history entry in one transaction.
func (r *Repository) Create(ctx context.Context, p *models.Paper, authors []models.PaperAuthor, actorID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO papers (id, event_id, area_id, paper_type_id, title, abstract, keywords, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, p.EventID, p.AreaID, p.PaperTypeID, p.Title, p.Abstract, p.Keywords, string(p.Status)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	for _, a := range authors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_authors (paper_id, user_id, author_order, is_main_author, is_presenter)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.ID, a.UserID, a.AuthorOrder, a.IsMainAuthor, a.IsPresenter); err != nil {
			return fmt.Errorf("insert author: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_history (id, paper_id, status, actor_id, comment)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		p.ID, string(p.Status), actorID, "Paper created"); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByID returns a paper with its ordered author list, or nil if not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Paper, error) {
	p, err := scanPaper(r.pool.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = $1`, id))
	if err != nil || p == nil {
		return p, err
	}
	authors, err := r.listAuthors(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Authors = authors
	return p, nil
}

func (r *Repository) listAuthors(ctx context.Context, paperID uuid.UUID) ([]models.PaperAuthor, error) {
	const q = `SELECT a.paper_id, a.user_id, a.author_order, a.is_main_author, a.is_presenter, u.email, u.full_name
		FROM paper_authors a
		INNER JOIN users u ON u.id = a.user_id
		WHERE a.paper_id = $1
		ORDER BY a.author_order ASC`
	rows, err := r.pool.Query(ctx, q, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PaperAuthor
	for rows.Next() {
		var a models.PaperAuthor
		if err := rows.Scan(&a.PaperID, &a.UserID, &a.AuthorOrder, &a.IsMainAuthor, &a.IsPresenter, &a.Email, &a.FullName); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Paper, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Paper
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.ID, &p.EventID, &p.AreaID, &p.PaperTypeID, &p.Title, &p.Abstract, &p.Keywords,
			&p.Status, &p.FileKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListByEvent returns all papers of an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Paper, error) {
	return r.list(ctx, `SELECT `+paperColumns+` FROM papers WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
}

// ListByEventAndAuthor returns the papers of an event the user authored.
func (r *Repository) ListByEventAndAuthor(ctx context.Context, eventID, userID uuid.UUID) ([]models.Paper, error) {
	const q = `SELECT ` + paperColumns + ` FROM papers
		WHERE event_id = $1 AND id IN (SELECT paper_id FROM paper_authors WHERE user_id = $2)
		ORDER BY created_at DESC`
	return r.list(ctx, q, eventID, userID)
}

// GetPaperEvent returns the owning event id.
// Returns pgx.ErrNoRows when the paper does not exist.
func (r *Repository) GetPaperEvent(ctx context.Context, paperID uuid.UUID) (uuid.UUID, error) {
	var eventID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT event_id FROM papers WHERE id = $1`, paperID).Scan(&eventID)
	return eventID, err
}

// IsPaperAuthor reports whether the user is an author of the paper.
func (r *Repository) IsPaperAuthor(ctx context.Context, paperID, userID uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM paper_authors WHERE paper_id = $1 AND user_id = $2`, paperID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EventExists reports whether the event id resolves to an event.
func (r *Repository) EventExists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM events WHERE id = $1`, eventID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateParams are the mutable paper fields; nil means leave untouched.
type UpdateParams struct {
	Title       *string
	Abstract    *string
	Keywords    *string
	AreaID      *uuid.UUID
	PaperTypeID *uuid.UUID
}

// Update applies a partial update to a paper's metadata.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	const q = `UPDATE papers SET
			title = COALESCE($1, title),
			abstract = COALESCE($2, abstract),
			keywords = COALESCE($3, keywords),
			area_id = COALESCE($4, area_id),
			paper_type_id = COALESCE($5, paper_type_id),
			updated_at = NOW()
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, q, p.Title, p.Abstract, p.Keywords, p.AreaID, p.PaperTypeID, id)
	return err
}

// SetFileKey records the S3 object key of the uploaded manuscript.
func (r *Repository) SetFileKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE papers SET file_key = $1, updated_at = NOW() WHERE id = $2`, key, id)
	return err
}

// Transition sets the paper status and appends the history row in one transaction.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE papers SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO paper_history (id, paper_id, status, actor_id, comment, recorded_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`,
		id, string(status), actorID, comment, at); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return tx.Commit(ctx)
}

// BulkTransition moves all papers to status and appends one history row per
// paper, atomically. When any id does not resolve to a paper the transaction
// is rolled back and the missing ids are returned; nothing is applied.
func (r *Repository) BulkTransition(ctx context.Context, ids []uuid.UUID, status models.PaperStatus, actorID uuid.UUID, comment string, at time.Time) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id FROM papers WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock papers: %w", err)
	}
	found := make(map[uuid.UUID]struct{}, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		found[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return missing, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE papers SET status = $1, updated_at = NOW() WHERE id = ANY($2)`,
		string(status), ids); err != nil {
		return nil, fmt.Errorf("bulk update: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_history (id, paper_id, status, actor_id, comment, recorded_at)
			 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`,
			id, string(status), actorID, comment, at); err != nil {
			return nil, fmt.Errorf("insert history: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return nil, nil
}

// ListPaperEvents maps each existing input id to its owning event.
func (r *Repository) ListPaperEvents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id FROM papers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]uuid.UUID, len(ids))
	for rows.Next() {
		var id, eventID uuid.UUID
		if err := rows.Scan(&id, &eventID); err != nil {
			return nil, err
		}
		out[id] = eventID
	}
	return out, rows.Err()
}

// ReplaceAuthors rewrites the ordered author list of a paper in one transaction.
func (r *Repository) ReplaceAuthors(ctx context.Context, paperID uuid.UUID, authors []models.PaperAuthor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM paper_authors WHERE paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("clear authors: %w", err)
	}
	for _, a := range authors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO paper_authors (paper_id, user_id, author_order, is_main_author, is_presenter)
			 VALUES ($1, $2, $3, $4, $5)`,
			paperID, a.UserID, a.AuthorOrder, a.IsMainAuthor, a.IsPresenter); err != nil {
			return fmt.Errorf("insert author: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// History returns a paper's audit trail, newest first.
func (r *Repository) History(ctx context.Context, paperID uuid.UUID) ([]models.PaperHistory, error) {
	const q = `SELECT id, paper_id, status, actor_id, comment, recorded_at
		FROM paper_history WHERE paper_id = $1 ORDER BY recorded_at DESC`
	rows, err := r.pool.Query(ctx, q, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PaperHistory
	for rows.Next() {
		var h models.PaperHistory
		if err := rows.Scan(&h.ID, &h.PaperID, &h.Status, &h.ActorID, &h.Comment, &h.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// AuthorContact is a main author's address for decision notifications.
type AuthorContact struct {
	PaperID uuid.UUID
	EventID uuid.UUID
	Title   string
	Email   string
}

// MainAuthorContacts returns the main author contact for each paper id.
func (r *Repository) MainAuthorContacts(ctx context.Context, ids []uuid.UUID) ([]AuthorContact, error) {
	const q = `SELECT p.id, p.event_id, p.title, u.email
		FROM papers p
		INNER JOIN paper_authors a ON a.paper_id = p.id AND a.is_main_author
		INNER JOIN users u ON u.id = a.user_id
		WHERE p.id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []AuthorContact
	for rows.Next() {
		var c AuthorContact
		if err := rows.Scan(&c.PaperID, &c.EventID, &c.Title, &c.Email); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
