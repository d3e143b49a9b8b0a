package note

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carenotes/carenotes/internal/domain/approval"
	"github.com/carenotes/carenotes/internal/domain/clinical"
	"github.com/carenotes/carenotes/internal/domain/draft"
	"github.com/carenotes/carenotes/internal/platform/docgen"
	"github.com/carenotes/carenotes/internal/platform/hipaa"
)

// DraftStore is the slice of the draft service the session controller uses.
type DraftStore interface {
	LoadByKey(ctx context.Context, caseID uuid.UUID, documentType string) (*draft.Draft, bool, error)
	DiscardByKey(ctx context.Context, caseID uuid.UUID, documentType string) error
}

// ClinicalSource aggregates the clinical record for a session.
type ClinicalSource interface {
	Baseline(ctx context.Context, clientID, caseID uuid.UUID) (*clinical.Baseline, error)
	ApplyGoalProgress(ctx context.Context, items []clinical.GoalWorkItem) error
}

// ApprovalRequester opens an approval round for a signed note.
type ApprovalRequester interface {
	Request(ctx context.Context, noteID, requesterID, approverID uuid.UUID, message *string) (*approval.Request, error)
}

// Submitter schedules fire-and-forget side effects.
type Submitter interface {
	Submit(name string, fn func(ctx context.Context) error) error
	SubmitOnce(key, name string, fn func(ctx context.Context) error) error
}

// AccessLogger writes PHI access rows.
type AccessLogger interface {
	LogAccess(ctx context.Context, e *hipaa.AccessEvent) error
}

// DocumentGenerator renders the printable document for a saved note.
type DocumentGenerator interface {
	Generate(ctx context.Context, req docgen.Request) (string, error)
}

// TxRunner runs a unit of work in one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	notes     Repository
	drafts    DraftStore
	clin      ClinicalSource
	approvals ApprovalRequester
	effects   Submitter
	access    AccessLogger
	docs      DocumentGenerator
	tx        TxRunner
	log       zerolog.Logger
}

func NewService(
	notes Repository,
	drafts DraftStore,
	clin ClinicalSource,
	approvals ApprovalRequester,
	effects Submitter,
	access AccessLogger,
	docs DocumentGenerator,
	tx TxRunner,
	log zerolog.Logger,
) *Service {
	return &Service{
		notes:     notes,
		drafts:    drafts,
		clin:      clin,
		approvals: approvals,
		effects:   effects,
		access:    access,
		docs:      docs,
		tx:        tx,
		log:       log,
	}
}

// OpenParams identifies what to open: a fresh session for a case, an
// existing note, or either with a saved draft folded in.
type OpenParams struct {
	CaseID   uuid.UUID
	ClientID uuid.UUID
	NoteType string
	AuthorID uuid.UUID
	NoteID   *uuid.UUID
}

// Open builds the session a user edits: clinical baseline, the persisted
// note when reopening one, and any saved draft merged on top. Opening a
// record also logs PHI access, once per record per process.
func (s *Service) Open(ctx context.Context, p OpenParams) (*Session, error) {
	if !ValidTypes[p.NoteType] {
		return nil, fmt.Errorf("invalid note type: %s", p.NoteType)
	}

	sess := Session{
		CaseID:    p.CaseID,
		ClientID:  p.ClientID,
		AuthorID:  p.AuthorID,
		NoteType:  p.NoteType,
		VisitDate: time.Now(),
	}

	if p.NoteID != nil {
		n, err := s.notes.GetByID(ctx, *p.NoteID)
		if err != nil {
			return nil, fmt.Errorf("load note: %w", err)
		}
		if n.Status == StatusCompleted || n.Status == StatusPendingApproval {
			return nil, ErrNotEditable
		}
		if err := s.hydrateFromNote(ctx, &sess, n); err != nil {
			return nil, err
		}
	}

	baseline, err := s.clin.Baseline(ctx, sess.ClientID, sess.CaseID)
	if err != nil {
		return nil, err
	}
	sess.Goals = baseline.Goals
	if sess.GoalWork == nil {
		sess.GoalWork = baseline.GoalWork
	}
	if len(sess.Diagnoses) == 0 {
		sess.Diagnoses = baseline.Diagnoses
	}

	d, found, err := s.drafts.LoadByKey(ctx, sess.CaseID, sess.NoteType)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if found {
		merged, err := mergeDraft(sess, d.Payload)
		if err != nil {
			return nil, fmt.Errorf("merge draft: %w", err)
		}
		sess = merged
	}

	s.logAccessOnce(sess, "view")

	return &sess, nil
}

func (s *Service) hydrateFromNote(ctx context.Context, sess *Session, n *Note) error {
	id := n.ID
	sess.NoteID = &id
	sess.CaseID = n.CaseID
	sess.ClientID = n.ClientID
	sess.AuthorID = n.AuthorID
	sess.NoteType = n.NoteType
	sess.VisitDate = n.VisitDate
	sess.StartTime = n.StartTime
	sess.EndTime = n.EndTime
	sess.Location = n.Location
	if n.Narrative != nil {
		sess.Narrative = *n.Narrative
	}
	sess.BenefitIDs = n.BenefitIDs
	sess.CPTCodes = n.CPTCodes
	sess.RiskAssessmentID = n.RiskAssessmentID
	sess.SignatureRef = n.SignatureRef
	sess.ApproverID = n.ApproverID
	sess.StaffSigned = n.StaffSigned
	sess.WasRejected = n.WasRejected

	diags, err := s.notes.GetDiagnoses(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("load note diagnoses: %w", err)
	}
	sess.Diagnoses = diags

	work, err := s.notes.GetGoalWork(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("load goal work: %w", err)
	}
	if len(work) > 0 {
		sess.GoalWork = make(map[uuid.UUID]clinical.WorkState, len(work))
		for _, it := range work {
			sess.GoalWork[it.GoalAssignmentID] = clinical.WorkState{
				WorkedOn:         true,
				Narrative:        it.Narrative,
				ProgressBefore:   it.ProgressBefore,
				ProgressAfter:    it.ProgressAfter,
				TimeSpentMinutes: it.TimeSpentMinutes,
			}
		}
	}
	return nil
}

// mergeDraft folds a draft snapshot into the freshly opened session. Scalar
// fields win field-by-field when the draft carries a value; collections
// replace the session's wholesale, except diagnoses, which merge so
// user-entered detail survives.
func mergeDraft(sess Session, payload json.RawMessage) (Session, error) {
	var snap Session
	if err := json.Unmarshal(payload, &snap); err != nil {
		return sess, err
	}

	if !snap.VisitDate.IsZero() {
		sess.VisitDate = snap.VisitDate
	}
	if snap.StartTime != nil {
		sess.StartTime = snap.StartTime
	}
	if snap.EndTime != nil {
		sess.EndTime = snap.EndTime
	}
	if snap.Location != nil {
		sess.Location = snap.Location
	}
	if snap.Narrative != "" {
		sess.Narrative = snap.Narrative
	}
	if snap.Diagnoses != nil {
		sess.Diagnoses = clinical.MergeExistingAndNew(sess.Diagnoses, snap.Diagnoses)
	}
	if snap.GoalWork != nil {
		work := make(map[uuid.UUID]clinical.WorkState, len(sess.GoalWork))
		for k, v := range sess.GoalWork {
			work[k] = v
		}
		for k, v := range snap.GoalWork {
			work[k] = v
		}
		sess.GoalWork = work
	}
	if snap.BenefitIDs != nil {
		sess.BenefitIDs = snap.BenefitIDs
	}
	if snap.CPTCodes != nil {
		sess.CPTCodes = snap.CPTCodes
	}
	if snap.RiskAssessmentID != nil {
		sess.RiskAssessmentID = snap.RiskAssessmentID
	}
	if snap.ActiveSection != "" {
		sess.ActiveSection = snap.ActiveSection
	}
	return sess, nil
}

// SaveResult reports a committed save plus anything that happened around it.
// Side effects that could not run appear as warnings: the note is saved
// either way.
type SaveResult struct {
	Note     *Note             `json:"note"`
	Approval *approval.Request `json:"approval,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Save validates and persists the session in one transaction, then runs the
// post-commit side effects: approval request, draft cleanup, document
// generation, PHI audit.
func (s *Service) Save(ctx context.Context, sess Session) (*SaveResult, error) {
	var existing *Note
	if sess.NoteID != nil {
		n, err := s.notes.GetByID(ctx, *sess.NoteID)
		if err != nil {
			return nil, fmt.Errorf("load note: %w", err)
		}
		if n.Status == StatusCompleted || n.Status == StatusPendingApproval {
			return nil, ErrNotEditable
		}
		// A signed note is a finished document. Any further save, with or
		// without a fresh signature, must go through a new approval round.
		if n.StaffSigned && !n.WasRejected {
			return nil, ErrReapprovalRequired
		}
		existing = n
	}

	// The carried signature flag is only ever trusted from the persisted
	// note, never from the request body.
	sess.StaffSigned = existing != nil && existing.StaffSigned

	if err := sess.Validate(); err != nil {
		return nil, err
	}

	diags, err := clinical.NormalizeDiagnoses(sess.Diagnoses)
	if err != nil {
		return nil, err
	}
	goalItems, err := clinical.CollectGoalWork(sess.GoalWork)
	if err != nil {
		return nil, err
	}

	n := s.buildNote(sess, existing)

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if existing == nil {
			if err := s.notes.Create(ctx, n); err != nil {
				return fmt.Errorf("create note: %w", err)
			}
		} else {
			if err := s.notes.Update(ctx, n); err != nil {
				return fmt.Errorf("update note: %w", err)
			}
		}
		if err := s.notes.ReplaceDiagnoses(ctx, n.ID, diags); err != nil {
			return fmt.Errorf("save diagnoses: %w", err)
		}
		if err := s.notes.ReplaceGoalWork(ctx, n.ID, goalItems); err != nil {
			return fmt.Errorf("save goal work: %w", err)
		}
		if err := s.clin.ApplyGoalProgress(ctx, goalItems); err != nil {
			return fmt.Errorf("roll goal progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Note: n}

	if sess.RequestApproval {
		approverID := uuid.Nil
		if sess.ApproverID != nil {
			approverID = *sess.ApproverID
		}
		req, err := s.approvals.Request(ctx, n.ID, sess.AuthorID, approverID, nil)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("approval request could not be sent: %v", err))
			s.log.Warn().Err(err).Str("note_id", n.ID.String()).Msg("approval request failed after save")
		} else {
			result.Approval = req
			n.Status = StatusPendingApproval
			n.ApproverID = &req.ApproverID
		}
	}

	if err := s.drafts.DiscardByKey(ctx, sess.CaseID, sess.NoteType); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("draft cleanup failed: %v", err))
	}

	s.scheduleSideEffects(n, result)

	return result, nil
}

func (s *Service) buildNote(sess Session, existing *Note) *Note {
	n := &Note{
		CaseID:           sess.CaseID,
		ClientID:         sess.ClientID,
		AuthorID:         sess.AuthorID,
		NoteType:         sess.NoteType,
		Title:            Title(sess.VisitDate, sess.StartTime, sess.EndTime),
		VisitDate:        sess.VisitDate,
		StartTime:        sess.StartTime,
		EndTime:          sess.EndTime,
		Location:         sess.Location,
		BenefitIDs:       sess.BenefitIDs,
		CPTCodes:         sess.CPTCodes,
		RiskAssessmentID: sess.RiskAssessmentID,
	}
	if sess.Narrative != "" {
		narrative := sess.Narrative
		n.Narrative = &narrative
	}
	if existing != nil {
		n.ID = existing.ID
		n.CreatedAt = existing.CreatedAt
		n.WasRejected = existing.WasRejected
		n.ApproverID = existing.ApproverID
		n.StaffSigned = existing.StaffSigned
		n.StaffSignedAt = existing.StaffSignedAt
		n.SignatureRef = existing.SignatureRef
	}

	if sess.SignatureRef != nil {
		now := time.Now()
		n.StaffSigned = true
		n.StaffSignedAt = &now
		n.SignatureRef = sess.SignatureRef
	}
	if n.StaffSigned {
		n.Status = StatusAuthorSigned
	} else {
		n.Status = StatusDraft
	}
	return n
}

func (s *Service) scheduleSideEffects(n *Note, result *SaveResult) {
	noteID := n.ID
	clientID := n.ClientID
	authorID := n.AuthorID
	title := n.Title
	caseID := n.CaseID
	docType := n.NoteType

	if err := s.effects.Submit("phi-access-log", func(ctx context.Context) error {
		return s.access.LogAccess(ctx, &hipaa.AccessEvent{
			ClientID:     clientID,
			AccessedByID: authorID,
			ResourceType: "note",
			ResourceID:   noteID,
			Action:       "save",
			Source:       "notes-server",
			PIIFields:    []string{"narrative", "diagnoses", "goal_work"},
		})
	}); err != nil {
		result.Warnings = append(result.Warnings, "access log could not be scheduled")
	}

	if err := s.effects.Submit("document-generation", func(ctx context.Context) error {
		_, err := s.docs.Generate(ctx, docgen.Request{
			NoteID:       noteID,
			CaseID:       caseID,
			DocumentType: docType,
			Title:        title,
		})
		return err
	}); err != nil {
		result.Warnings = append(result.Warnings,
			"document generation could not be scheduled; it will be retried later")
	}
}

func (s *Service) logAccessOnce(sess Session, action string) {
	record := sess.CaseID.String()
	if sess.NoteID != nil {
		record = sess.NoteID.String()
	}
	noteID := uuid.Nil
	if sess.NoteID != nil {
		noteID = *sess.NoteID
	}
	clientID := sess.ClientID
	userID := sess.AuthorID

	key := fmt.Sprintf("%s:%s:%s", record, userID, action)
	if err := s.effects.SubmitOnce(key, "phi-access-log", func(ctx context.Context) error {
		return s.access.LogAccess(ctx, &hipaa.AccessEvent{
			ClientID:     clientID,
			AccessedByID: userID,
			ResourceType: "note",
			ResourceID:   noteID,
			Action:       action,
			Source:       "notes-server",
		})
	}); err != nil {
		s.log.Warn().Err(err).Msg("access log could not be scheduled")
	}
}

// Get returns a persisted note.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	return s.notes.GetByID(ctx, id)
}

// ListByCase returns the case's notes, newest visit first.
func (s *Service) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	return s.notes.ListByCase(ctx, caseID, limit, offset)
}

// BindSignature attaches a captured signature to a note and marks it
// author-signed. Only the author can sign, and a note already through
// approval cannot be re-signed.
func (s *Service) BindSignature(ctx context.Context, noteID uuid.UUID, staffID uuid.UUID, ref string) (*Note, error) {
	n, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if n.Status == StatusCompleted || n.Status == StatusPendingApproval {
		return nil, ErrNotEditable
	}
	if n.AuthorID != staffID {
		return nil, fmt.Errorf("only the note author can sign it")
	}
	if n.StaffSigned && !n.WasRejected {
		return nil, ErrReapprovalRequired
	}

	now := time.Now()
	n.StaffSigned = true
	n.StaffSignedAt = &now
	n.SignatureRef = &ref
	n.Status = StatusAuthorSigned
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("save signature: %w", err)
	}

	clientID := n.ClientID
	id := n.ID
	if err := s.effects.Submit("phi-access-log", func(ctx context.Context) error {
		return s.access.LogAccess(ctx, &hipaa.AccessEvent{
			ClientID:     clientID,
			AccessedByID: staffID,
			ResourceType: "note",
			ResourceID:   id,
			Action:       "sign",
			Source:       "notes-server",
		})
	}); err != nil {
		s.log.Warn().Err(err).Msg("access log could not be scheduled")
	}

	return n, nil
}
