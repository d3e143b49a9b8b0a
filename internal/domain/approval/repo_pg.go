package approval

import (
	"context"
	"errors"

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

const requestCols = `id, note_id, case_id, requester_id, approver_id, status, message, reason,
	requested_at, responded_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.NoteID, &q.CaseID, &q.RequesterID, &q.ApproverID, &q.Status,
		&q.Message, &q.Reason, &q.RequestedAt, &q.RespondedAt, &q.CreatedAt, &q.UpdatedAt)
	return &q, err
}

func (r *repoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO approval_request (id, note_id, case_id, requester_id, approver_id, status, message, requested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		q.ID, q.NoteID, q.CaseID, q.RequesterID, q.ApproverID, q.Status, q.Message, q.RequestedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM approval_request WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, q *Request) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE approval_request SET status=$2, reason=$3, responded_at=$4, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Status, q.Reason, q.RespondedAt)
	return err
}

func (r *repoPG) GetPendingByNote(ctx context.Context, noteID uuid.UUID) (*Request, error) {
	q, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM approval_request WHERE note_id = $1 AND status = 'pending'`, noteID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repoPG) ListPendingForApprover(ctx context.Context, approverID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM approval_request WHERE approver_id = $1 AND status = 'pending'`,
		approverID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+requestCols+` FROM approval_request
		 WHERE approver_id = $1 AND status = 'pending'
		 ORDER BY requested_at ASC LIMIT $2 OFFSET $3`,
		approverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, nil
}
