package note

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carenotes/carenotes/internal/domain/clinical"
)

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Note, int, error)

	// ReplaceDiagnoses rewrites the note's diagnosis selection.
	ReplaceDiagnoses(ctx context.Context, noteID uuid.UUID, diags []clinical.Diagnosis) error
	GetDiagnoses(ctx context.Context, noteID uuid.UUID) ([]clinical.Diagnosis, error)

	// ReplaceGoalWork rewrites the note's goal work rows.
	ReplaceGoalWork(ctx context.Context, noteID uuid.UUID, items []clinical.GoalWorkItem) error
	GetGoalWork(ctx context.Context, noteID uuid.UUID) ([]clinical.GoalWorkItem, error)

	// Approval lifecycle transitions, driven by the approval workflow.
	SetPendingApproval(ctx context.Context, noteID, approverID uuid.UUID) error
	SetApproved(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error
	SetRejected(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error
}
