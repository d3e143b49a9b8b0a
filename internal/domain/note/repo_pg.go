package note

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenotes/carenotes/internal/domain/clinical"
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

const noteCols = `id, case_id, client_id, author_id, note_type, status, title,
	visit_date, start_time, end_time, location, narrative,
	benefit_ids, cpt_codes, risk_assessment_id,
	staff_signed, staff_signed_at, signature_ref,
	manager_signed, manager_signed_at, approver_id, was_rejected,
	created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.CaseID, &n.ClientID, &n.AuthorID, &n.NoteType, &n.Status, &n.Title,
		&n.VisitDate, &n.StartTime, &n.EndTime, &n.Location, &n.Narrative,
		&n.BenefitIDs, &n.CPTCodes, &n.RiskAssessmentID,
		&n.StaffSigned, &n.StaffSignedAt, &n.SignatureRef,
		&n.ManagerSigned, &n.ManagerSignedAt, &n.ApproverID, &n.WasRejected,
		&n.CreatedAt, &n.UpdatedAt)
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO note (id, case_id, client_id, author_id, note_type, status, title,
			visit_date, start_time, end_time, location, narrative,
			benefit_ids, cpt_codes, risk_assessment_id,
			staff_signed, staff_signed_at, signature_ref,
			manager_signed, manager_signed_at, approver_id, was_rejected)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		n.ID, n.CaseID, n.ClientID, n.AuthorID, n.NoteType, n.Status, n.Title,
		n.VisitDate, n.StartTime, n.EndTime, n.Location, n.Narrative,
		n.BenefitIDs, n.CPTCodes, n.RiskAssessmentID,
		n.StaffSigned, n.StaffSignedAt, n.SignatureRef,
		n.ManagerSigned, n.ManagerSignedAt, n.ApproverID, n.WasRejected)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM note WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE note SET status=$2, title=$3, visit_date=$4, start_time=$5, end_time=$6,
			location=$7, narrative=$8, benefit_ids=$9, cpt_codes=$10, risk_assessment_id=$11,
			staff_signed=$12, staff_signed_at=$13, signature_ref=$14,
			manager_signed=$15, manager_signed_at=$16, approver_id=$17, was_rejected=$18,
			updated_at=NOW()
		WHERE id = $1`,
		n.ID, n.Status, n.Title, n.VisitDate, n.StartTime, n.EndTime,
		n.Location, n.Narrative, n.BenefitIDs, n.CPTCodes, n.RiskAssessmentID,
		n.StaffSigned, n.StaffSignedAt, n.SignatureRef,
		n.ManagerSigned, n.ManagerSignedAt, n.ApproverID, n.WasRejected)
	return err
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM note WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM note WHERE case_id = $1 ORDER BY visit_date DESC LIMIT $2 OFFSET $3`,
		caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, nil
}

func (r *repoPG) ReplaceDiagnoses(ctx context.Context, noteID uuid.UUID, diags []clinical.Diagnosis) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM note_diagnosis WHERE note_id = $1`, noteID); err != nil {
		return err
	}
	for _, d := range diags {
		if _, err := conn.Exec(ctx, `
			INSERT INTO note_diagnosis (id, note_id, kind, diagnosis_id, code, description,
				status, onset_date, recorded_at, is_primary, note)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			uuid.New(), noteID, d.Kind, d.DiagnosisID, d.Code, d.Description,
			d.Status, d.OnsetDate, d.RecordedAt, d.IsPrimary, d.Note); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetDiagnoses(ctx context.Context, noteID uuid.UUID) ([]clinical.Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT kind, diagnosis_id, code, description, status, onset_date, recorded_at, is_primary, note
		FROM note_diagnosis WHERE note_id = $1 ORDER BY is_primary DESC, code`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []clinical.Diagnosis
	for rows.Next() {
		var d clinical.Diagnosis
		if err := rows.Scan(&d.Kind, &d.DiagnosisID, &d.Code, &d.Description,
			&d.Status, &d.OnsetDate, &d.RecordedAt, &d.IsPrimary, &d.Note); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) ReplaceGoalWork(ctx context.Context, noteID uuid.UUID, items []clinical.GoalWorkItem) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM goal_work_item WHERE note_id = $1`, noteID); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := conn.Exec(ctx, `
			INSERT INTO goal_work_item (id, note_id, goal_assignment_id, narrative,
				progress_before, progress_after, time_spent_minutes)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.New(), noteID, it.GoalAssignmentID, it.Narrative,
			it.ProgressBefore, it.ProgressAfter, it.TimeSpentMinutes); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetGoalWork(ctx context.Context, noteID uuid.UUID) ([]clinical.GoalWorkItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT goal_assignment_id, narrative, progress_before, progress_after, time_spent_minutes
		FROM goal_work_item WHERE note_id = $1 ORDER BY goal_assignment_id`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []clinical.GoalWorkItem
	for rows.Next() {
		var it clinical.GoalWorkItem
		if err := rows.Scan(&it.GoalAssignmentID, &it.Narrative,
			&it.ProgressBefore, &it.ProgressAfter, &it.TimeSpentMinutes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repoPG) SetPendingApproval(ctx context.Context, noteID, approverID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE note SET status=$2, approver_id=$3, updated_at=NOW() WHERE id = $1`,
		noteID, StatusPendingApproval, approverID)
	return err
}

func (r *repoPG) SetApproved(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE note SET status=$2, approver_id=$3, manager_signed=TRUE, manager_signed_at=$4,
			was_rejected=FALSE, updated_at=NOW()
		WHERE id = $1`,
		noteID, StatusCompleted, approverID, at)
	return err
}

func (r *repoPG) SetRejected(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	// The author signature comes off so the note must be re-signed; the
	// approver stays so resubmission routes back to the same person.
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE note SET status=$2, approver_id=$3, was_rejected=TRUE,
			staff_signed=FALSE, staff_signed_at=NULL, signature_ref=NULL, updated_at=NOW()
		WHERE id = $1`,
		noteID, StatusRejected, approverID)
	return err
}
