package draft

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenotes/carenotes/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const draftCols = `id, case_id, document_type, payload, created_by_id, created_at, updated_at`

func scanDraft(row pgx.Row) (*Draft, error) {
	var d Draft
	err := row.Scan(&d.ID, &d.CaseID, &d.DocumentType, &d.Payload, &d.CreatedByID, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) Upsert(ctx context.Context, d *Draft) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	// The conflict target is the draft key, so a retried save lands on the
	// row a concurrent save already created instead of inserting a sibling.
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO note_draft (id, case_id, document_type, payload, created_by_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (case_id, document_type) DO UPDATE
			SET payload = EXCLUDED.payload, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		d.ID, d.CaseID, d.DocumentType, d.Payload, d.CreatedByID,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Draft, error) {
	return scanDraft(r.conn(ctx).QueryRow(ctx, `SELECT `+draftCols+` FROM note_draft WHERE id = $1`, id))
}

func (r *repoPG) GetByKey(ctx context.Context, caseID uuid.UUID, documentType string) (*Draft, error) {
	return scanDraft(r.conn(ctx).QueryRow(ctx,
		`SELECT `+draftCols+` FROM note_draft WHERE case_id = $1 AND document_type = $2`,
		caseID, documentType))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM note_draft WHERE id = $1`, id)
	return err
}

func (r *repoPG) DeleteByKey(ctx context.Context, caseID uuid.UUID, documentType string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM note_draft WHERE case_id = $1 AND document_type = $2`,
		caseID, documentType)
	return err
}
