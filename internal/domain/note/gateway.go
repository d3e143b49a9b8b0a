package note

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carenotes/carenotes/internal/domain/approval"
)

// ApprovalGateway exposes note lifecycle transitions to the approval
// workflow without the approval package importing this one.
type ApprovalGateway struct {
	notes Repository
}

func NewApprovalGateway(notes Repository) *ApprovalGateway {
	return &ApprovalGateway{notes: notes}
}

func (g *ApprovalGateway) State(ctx context.Context, noteID uuid.UUID) (*approval.NoteState, error) {
	n, err := g.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return &approval.NoteState{
		NoteID:       n.ID,
		CaseID:       n.CaseID,
		AuthorID:     n.AuthorID,
		AuthorSigned: n.StaffSigned,
		Completed:    n.Status == StatusCompleted,
		WasRejected:  n.WasRejected,
		ApproverID:   n.ApproverID,
	}, nil
}

func (g *ApprovalGateway) SetPendingApproval(ctx context.Context, noteID, approverID uuid.UUID) error {
	return g.notes.SetPendingApproval(ctx, noteID, approverID)
}

func (g *ApprovalGateway) SetApproved(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	return g.notes.SetApproved(ctx, noteID, approverID, at)
}

func (g *ApprovalGateway) SetRejected(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	return g.notes.SetRejected(ctx, noteID, approverID, at)
}
