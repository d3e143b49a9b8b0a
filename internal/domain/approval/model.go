package approval

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Request asks a signing authority to co-sign a note. One pending request
// exists per note at a time.
type Request struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	NoteID      uuid.UUID  `db:"note_id" json:"note_id"`
	CaseID      uuid.UUID  `db:"case_id" json:"case_id"`
	RequesterID uuid.UUID  `db:"requester_id" json:"requester_id"`
	ApproverID  uuid.UUID  `db:"approver_id" json:"approver_id"`
	Status      string     `db:"status" json:"status"`
	Message     *string    `db:"message" json:"message,omitempty"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// NoteState is the slice of a note's lifecycle the approval workflow needs.
type NoteState struct {
	NoteID       uuid.UUID
	CaseID       uuid.UUID
	AuthorID     uuid.UUID
	AuthorSigned bool
	Completed    bool
	WasRejected  bool
	// ApproverID is the approver recorded on the note from a prior
	// approval round, if any.
	ApproverID *uuid.UUID
}
