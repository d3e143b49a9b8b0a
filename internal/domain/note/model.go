package note

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lifecycle statuses for a note.
const (
	StatusDraft           = "draft"
	StatusAuthorSigned    = "author-signed"
	StatusPendingApproval = "pending-approval"
	StatusCompleted       = "completed"
	StatusRejected        = "rejected"
)

// Note types. CPT codes are only valid on peer notes.
const (
	TypeClinical       = "clinical"
	TypePeer           = "peer"
	TypeCaseManagement = "case-management"
)

var ValidTypes = map[string]bool{
	TypeClinical: true, TypePeer: true, TypeCaseManagement: true,
}

// RecordType tags a Reference with what kind of record it points at. Callers
// check the tag; nothing is ever inferred from the shape of the id itself.
type RecordType string

const (
	RecordTypeInteraction    RecordType = "interaction"
	RecordTypeRiskAssessment RecordType = "risk-assessment"
	RecordTypeCase           RecordType = "case"
)

// Reference is a typed pointer to another record.
type Reference struct {
	Type RecordType `json:"type"`
	ID   uuid.UUID  `json:"id"`
}

// Note is a persisted encounter note.
type Note struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	CaseID           uuid.UUID   `db:"case_id" json:"case_id"`
	ClientID         uuid.UUID   `db:"client_id" json:"client_id"`
	AuthorID         uuid.UUID   `db:"author_id" json:"author_id"`
	NoteType         string      `db:"note_type" json:"note_type"`
	Status           string      `db:"status" json:"status"`
	Title            string      `db:"title" json:"title"`
	VisitDate        time.Time   `db:"visit_date" json:"visit_date"`
	StartTime        *time.Time  `db:"start_time" json:"start_time,omitempty"`
	EndTime          *time.Time  `db:"end_time" json:"end_time,omitempty"`
	Location         *string     `db:"location" json:"location,omitempty"`
	Narrative        *string     `db:"narrative" json:"narrative,omitempty"`
	BenefitIDs       []uuid.UUID `db:"benefit_ids" json:"benefit_ids,omitempty"`
	CPTCodes         []string    `db:"cpt_codes" json:"cpt_codes,omitempty"`
	RiskAssessmentID *uuid.UUID  `db:"risk_assessment_id" json:"risk_assessment_id,omitempty"`
	StaffSigned      bool        `db:"staff_signed" json:"staff_signed"`
	StaffSignedAt    *time.Time  `db:"staff_signed_at" json:"staff_signed_at,omitempty"`
	SignatureRef     *string     `db:"signature_ref" json:"signature_ref,omitempty"`
	ManagerSigned    bool        `db:"manager_signed" json:"manager_signed"`
	ManagerSignedAt  *time.Time  `db:"manager_signed_at" json:"manager_signed_at,omitempty"`
	ApproverID       *uuid.UUID  `db:"approver_id" json:"approver_id,omitempty"`
	WasRejected      bool        `db:"was_rejected" json:"was_rejected"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Title derives the display title from the visit facts, e.g.
// "Interaction - 2026-03-02 09:00-09:45".
func Title(visitDate time.Time, start, end *time.Time) string {
	date := visitDate.Format("2006-01-02")
	if start == nil || end == nil {
		return "Interaction - " + date
	}
	return fmt.Sprintf("Interaction - %s %s-%s", date, start.Format("15:04"), end.Format("15:04"))
}
