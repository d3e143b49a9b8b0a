package clinical

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// DiagnosesByClient loads the client's diagnosis history, most recent
	// first. Entries come back tagged DiagnosisExisting.
	DiagnosesByClient(ctx context.Context, clientID uuid.UUID) ([]Diagnosis, error)
	// GoalsByCase loads the active treatment goals assigned to a case.
	GoalsByCase(ctx context.Context, caseID uuid.UUID) ([]AssignedGoal, error)
	// BenefitsByCase loads the benefit programs linked to a case.
	BenefitsByCase(ctx context.Context, caseID uuid.UUID) ([]Benefit, error)
	// RecordGoalProgress rolls a goal's current progress forward after a
	// note records work on it.
	RecordGoalProgress(ctx context.Context, goalAssignmentID uuid.UUID, progress int) error
}

// Benefit is a benefit program a note can reference as discussed during the
// encounter.
type Benefit struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Name   string    `db:"name" json:"name"`
	Status string    `db:"status" json:"status"`
}
