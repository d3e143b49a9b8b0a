package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotSigned rejects an approval request for a note the author has
	// not signed yet.
	ErrNotSigned = errors.New("note has not been signed by its author")
	// ErrAlreadyCompleted rejects an approval request for a note that has
	// already been approved.
	ErrAlreadyCompleted = errors.New("note is already approved")
	// ErrNotPending is returned when responding to a request that has
	// already been decided.
	ErrNotPending = errors.New("approval request is not pending")
	// ErrWrongApprover is returned when someone other than the assigned
	// approver tries to respond.
	ErrWrongApprover = errors.New("request is assigned to a different approver")
)

type Service struct {
	requests Repository
	notes    NoteGateway
}

func NewService(requests Repository, notes NoteGateway) *Service {
	return &Service{requests: requests, notes: notes}
}

// Request opens an approval round for a signed note. For a note that was
// previously rejected, the approver recorded on the note wins over any
// approver supplied here: a re-submitted note goes back to the person who
// rejected it.
func (s *Service) Request(ctx context.Context, noteID, requesterID, approverID uuid.UUID, message *string) (*Request, error) {
	st, err := s.notes.State(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note state: %w", err)
	}
	if st.Completed {
		return nil, ErrAlreadyCompleted
	}
	if !st.AuthorSigned {
		return nil, ErrNotSigned
	}

	effective := approverID
	if st.WasRejected && st.ApproverID != nil {
		effective = *st.ApproverID
	}
	if effective == uuid.Nil {
		return nil, fmt.Errorf("approver_id is required")
	}

	if existing, err := s.requests.GetPendingByNote(ctx, noteID); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.ApproverID == effective {
			return existing, nil
		}
		existing.Status = StatusCancelled
		if err := s.requests.Update(ctx, existing); err != nil {
			return nil, err
		}
	}

	r := &Request{
		NoteID:      noteID,
		CaseID:      st.CaseID,
		RequesterID: requesterID,
		ApproverID:  effective,
		Status:      StatusPending,
		Message:     message,
		RequestedAt: time.Now(),
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, err
	}
	if err := s.notes.SetPendingApproval(ctx, noteID, effective); err != nil {
		return nil, err
	}
	return r, nil
}

// Approve completes the note: manager signature recorded, lifecycle closed.
func (s *Service) Approve(ctx context.Context, requestID, approverID uuid.UUID) (*Request, error) {
	r, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	if r.ApproverID != approverID {
		return nil, ErrWrongApprover
	}

	now := time.Now()
	r.Status = StatusApproved
	r.RespondedAt = &now
	if err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := s.notes.SetApproved(ctx, r.NoteID, approverID, now); err != nil {
		return nil, err
	}
	return r, nil
}

// Reject sends the note back to its author. The author signature is cleared
// so the note must be re-signed, and the approver stays recorded on the note
// so the next round returns to the same person.
func (s *Service) Reject(ctx context.Context, requestID, approverID uuid.UUID, reason *string) (*Request, error) {
	r, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	if r.ApproverID != approverID {
		return nil, ErrWrongApprover
	}

	now := time.Now()
	r.Status = StatusRejected
	r.Reason = reason
	r.RespondedAt = &now
	if err := s.requests.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := s.notes.SetRejected(ctx, r.NoteID, approverID, now); err != nil {
		return nil, err
	}
	return r, nil
}

// ListPendingForApprover returns the approver's open worklist.
func (s *Service) ListPendingForApprover(ctx context.Context, approverID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.requests.ListPendingForApprover(ctx, approverID, limit, offset)
}
