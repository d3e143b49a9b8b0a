package note

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carenotes/carenotes/internal/domain/clinical"
)

// Session is the in-progress state of a note being written. It is a value
// type: Apply never mutates the receiver, it returns the next state. A
// session snapshot marshals to JSON and round-trips through the draft store.
type Session struct {
	NoteID   *uuid.UUID `json:"note_id,omitempty"`
	CaseID   uuid.UUID  `json:"case_id"`
	ClientID uuid.UUID  `json:"client_id"`
	AuthorID uuid.UUID  `json:"author_id"`
	NoteType string     `json:"note_type"`

	VisitDate time.Time  `json:"visit_date"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Narrative string     `json:"narrative,omitempty"`

	Diagnoses      []clinical.Diagnosis             `json:"diagnoses,omitempty"`
	PendingPrimary *clinical.PendingPrimaryChange   `json:"pending_primary,omitempty"`
	Goals          []clinical.AssignedGoal          `json:"goals,omitempty"`
	GoalWork       map[uuid.UUID]clinical.WorkState `json:"goal_work,omitempty"`
	BenefitIDs     []uuid.UUID                      `json:"benefit_ids,omitempty"`
	CPTCodes       []string                         `json:"cpt_codes,omitempty"`

	RiskAssessmentID *uuid.UUID `json:"risk_assessment_id,omitempty"`

	SignatureRef    *string    `json:"signature_ref,omitempty"`
	RequestApproval bool       `json:"request_approval,omitempty"`
	ApproverID      *uuid.UUID `json:"approver_id,omitempty"`

	ActiveSection string `json:"active_section,omitempty"`

	// Carried from the persisted note so lifecycle guards work on the
	// session alone.
	StaffSigned bool `json:"staff_signed,omitempty"`
	WasRejected bool `json:"was_rejected,omitempty"`
}

// Action is one user edit applied to a session.
type Action interface{ isAction() }

type SetTimes struct {
	VisitDate time.Time
	Start     *time.Time
	End       *time.Time
}

type SetNarrative struct{ Text string }

type SetLocation struct{ Location string }

// SelectDiagnoses replaces the diagnosis selection wholesale, preserving
// user-entered detail on anything re-selected.
type SelectDiagnoses struct{ Diagnoses []clinical.Diagnosis }

// MarkPrimary asks for the diagnosis with Code to become primary. If another
// diagnosis holds the primary slot the session records a pending change
// instead of swapping.
type MarkPrimary struct{ Code string }

// ConfirmPrimarySwap applies the pending primary change.
type ConfirmPrimarySwap struct{}

// CancelPrimarySwap drops the pending primary change, keeping the current
// primary.
type CancelPrimarySwap struct{}

type SetGoalWork struct {
	GoalAssignmentID uuid.UUID
	State            clinical.WorkState
}

type SetBenefits struct{ BenefitIDs []uuid.UUID }

type SetCPTCodes struct{ Codes []string }

// AttachRiskAssessment links a completed risk assessment to the session. If
// the session has no note identity yet and the assessment carries a parent
// reference tagged as an interaction, the session adopts that identity.
type AttachRiskAssessment struct {
	AssessmentID uuid.UUID
	Parent       *Reference
}

type CaptureSignature struct{ Ref string }

type RequestCoSign struct{ ApproverID uuid.UUID }

type SetActiveSection struct{ Section string }

func (SetTimes) isAction()             {}
func (SetNarrative) isAction()         {}
func (SetLocation) isAction()          {}
func (SelectDiagnoses) isAction()      {}
func (MarkPrimary) isAction()          {}
func (ConfirmPrimarySwap) isAction()   {}
func (CancelPrimarySwap) isAction()    {}
func (SetGoalWork) isAction()          {}
func (SetBenefits) isAction()          {}
func (SetCPTCodes) isAction()          {}
func (AttachRiskAssessment) isAction() {}
func (CaptureSignature) isAction()     {}
func (RequestCoSign) isAction()        {}
func (SetActiveSection) isAction()     {}

// Apply reduces an action into the next session state.
func (s Session) Apply(a Action) (Session, error) {
	switch act := a.(type) {
	case SetTimes:
		s.VisitDate = act.VisitDate
		s.StartTime = act.Start
		s.EndTime = act.End
		return s, nil

	case SetNarrative:
		s.Narrative = act.Text
		return s, nil

	case SetLocation:
		loc := act.Location
		s.Location = &loc
		return s, nil

	case SelectDiagnoses:
		s.Diagnoses = clinical.MergeExistingAndNew(s.Diagnoses, act.Diagnoses)
		s.PendingPrimary = nil
		return s, nil

	case MarkPrimary:
		diags, pending, err := clinical.SetPrimary(s.Diagnoses, act.Code)
		if err != nil {
			return s, err
		}
		s.Diagnoses = diags
		s.PendingPrimary = pending
		return s, nil

	case ConfirmPrimarySwap:
		if s.PendingPrimary == nil {
			return s, fmt.Errorf("no primary change to confirm")
		}
		diags, err := clinical.ConfirmPrimarySwap(s.Diagnoses, *s.PendingPrimary)
		if err != nil {
			return s, err
		}
		s.Diagnoses = diags
		s.PendingPrimary = nil
		return s, nil

	case CancelPrimarySwap:
		s.PendingPrimary = nil
		return s, nil

	case SetGoalWork:
		work := make(map[uuid.UUID]clinical.WorkState, len(s.GoalWork)+1)
		for k, v := range s.GoalWork {
			work[k] = v
		}
		work[act.GoalAssignmentID] = act.State
		s.GoalWork = work
		return s, nil

	case SetBenefits:
		s.BenefitIDs = act.BenefitIDs
		return s, nil

	case SetCPTCodes:
		if s.NoteType != TypePeer {
			return s, fmt.Errorf("cpt codes are only recorded on peer notes")
		}
		s.CPTCodes = act.Codes
		return s, nil

	case AttachRiskAssessment:
		id := act.AssessmentID
		s.RiskAssessmentID = &id
		if s.NoteID == nil && act.Parent != nil && act.Parent.Type == RecordTypeInteraction {
			parent := act.Parent.ID
			s.NoteID = &parent
		}
		return s, nil

	case CaptureSignature:
		ref := act.Ref
		s.SignatureRef = &ref
		return s, nil

	case RequestCoSign:
		approver := act.ApproverID
		s.RequestApproval = true
		s.ApproverID = &approver
		return s, nil

	case SetActiveSection:
		s.ActiveSection = act.Section
		return s, nil

	default:
		return s, fmt.Errorf("unknown action %T", a)
	}
}

// Validate checks the session is ready to persist.
func (s Session) Validate() error {
	if s.CaseID == uuid.Nil {
		return fmt.Errorf("case id is required")
	}
	if !ValidTypes[s.NoteType] {
		return fmt.Errorf("invalid note type: %s", s.NoteType)
	}
	if s.StartTime == nil || s.EndTime == nil {
		return ErrMissingTimeRange
	}
	if !s.EndTime.After(*s.StartTime) {
		return ErrInvalidTimeRange
	}
	if s.PendingPrimary != nil {
		return ErrPendingPrimaryChange
	}
	if len(s.CPTCodes) > 0 && s.NoteType != TypePeer {
		return fmt.Errorf("cpt codes are only recorded on peer notes")
	}
	// Unsigned work lives in the draft store; a Note row only exists once
	// the author has signed.
	if s.SignatureRef == nil && !s.StaffSigned {
		return ErrSignatureRequired
	}
	return nil
}
