package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Baseline is everything a note session needs from the clinical record at
// open: the client's diagnosis history, the case's goals with seeded work
// state, and linked benefits.
type Baseline struct {
	Diagnoses []Diagnosis
	Goals     []AssignedGoal
	GoalWork  map[uuid.UUID]WorkState
	Benefits  []Benefit
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Baseline aggregates the clinical data for a session. The diagnosis history
// is collapsed to one entry per code before it reaches the session.
func (s *Service) Baseline(ctx context.Context, clientID, caseID uuid.UUID) (*Baseline, error) {
	diags, err := s.repo.DiagnosesByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load diagnoses: %w", err)
	}
	goals, err := s.repo.GoalsByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	benefits, err := s.repo.BenefitsByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load benefits: %w", err)
	}

	return &Baseline{
		Diagnoses: DedupeByCode(diags),
		Goals:     goals,
		GoalWork:  SeedWorkState(goals),
		Benefits:  benefits,
	}, nil
}

// ApplyGoalProgress rolls each worked goal's current progress forward to the
// progress recorded on the note.
func (s *Service) ApplyGoalProgress(ctx context.Context, items []GoalWorkItem) error {
	for _, it := range items {
		if err := s.repo.RecordGoalProgress(ctx, it.GoalAssignmentID, it.ProgressAfter); err != nil {
			return fmt.Errorf("record progress for goal %s: %w", it.GoalAssignmentID, err)
		}
	}
	return nil
}
