package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	// GetPendingByNote returns the note's open request, or nil when none.
	GetPendingByNote(ctx context.Context, noteID uuid.UUID) (*Request, error)
	ListPendingForApprover(ctx context.Context, approverID uuid.UUID, limit, offset int) ([]*Request, int, error)
}

// NoteGateway is the approval workflow's view of notes. The note package
// provides the implementation; keeping it an interface here avoids a
// dependency cycle between the two packages.
type NoteGateway interface {
	State(ctx context.Context, noteID uuid.UUID) (*NoteState, error)
	SetPendingApproval(ctx context.Context, noteID, approverID uuid.UUID) error
	SetApproved(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error
	// SetRejected reopens the note for editing: the author signature is
	// cleared and the approver stays recorded for the next round.
	SetRejected(ctx context.Context, noteID, approverID uuid.UUID, at time.Time) error
}
