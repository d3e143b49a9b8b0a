package clinical

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

func (r *repoPG) DiagnosesByClient(ctx context.Context, clientID uuid.UUID) ([]Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, code, description, status, onset_date, recorded_at
		FROM client_diagnosis
		WHERE client_id = $1
		ORDER BY recorded_at DESC NULLS LAST`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Diagnosis
	for rows.Next() {
		var d Diagnosis
		var id uuid.UUID
		if err := rows.Scan(&id, &d.Code, &d.Description, &d.Status, &d.OnsetDate, &d.RecordedAt); err != nil {
			return nil, err
		}
		d.Kind = DiagnosisExisting
		d.DiagnosisID = &id
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) GoalsByCase(ctx context.Context, caseID uuid.UUID) ([]AssignedGoal, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, description, current_progress
		FROM goal_assignment
		WHERE case_id = $1 AND is_active
		ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AssignedGoal
	for rows.Next() {
		var g AssignedGoal
		if err := rows.Scan(&g.ID, &g.Description, &g.CurrentProgress); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *repoPG) BenefitsByCase(ctx context.Context, caseID uuid.UUID) ([]Benefit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, status
		FROM benefit
		WHERE case_id = $1
		ORDER BY name`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Benefit
	for rows.Next() {
		var b Benefit
		if err := rows.Scan(&b.ID, &b.Name, &b.Status); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) RecordGoalProgress(ctx context.Context, goalAssignmentID uuid.UUID, progress int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE goal_assignment SET current_progress = $2, updated_at = NOW()
		WHERE id = $1`, goalAssignmentID, progress)
	return err
}
