package note

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carenotes/carenotes/internal/domain/approval"
	"github.com/carenotes/carenotes/internal/domain/clinical"
	"github.com/carenotes/carenotes/internal/domain/draft"
	"github.com/carenotes/carenotes/internal/platform/docgen"
	"github.com/carenotes/carenotes/internal/platform/hipaa"
)

type mockNoteRepo struct {
	notes map[uuid.UUID]*Note
	diags map[uuid.UUID][]clinical.Diagnosis
	work  map[uuid.UUID][]clinical.GoalWorkItem
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{
		notes: make(map[uuid.UUID]*Note),
		diags: make(map[uuid.UUID][]clinical.Diagnosis),
		work:  make(map[uuid.UUID][]clinical.GoalWorkItem),
	}
}

func (m *mockNoteRepo) Create(_ context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *mockNoteRepo) GetByID(_ context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, errors.New("note not found")
	}
	cp := *n
	return &cp, nil
}

func (m *mockNoteRepo) Update(_ context.Context, n *Note) error {
	if _, ok := m.notes[n.ID]; !ok {
		return errors.New("note not found")
	}
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *mockNoteRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	var items []*Note
	for _, n := range m.notes {
		if n.CaseID == caseID {
			cp := *n
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockNoteRepo) ReplaceDiagnoses(_ context.Context, noteID uuid.UUID, diags []clinical.Diagnosis) error {
	m.diags[noteID] = diags
	return nil
}

func (m *mockNoteRepo) GetDiagnoses(_ context.Context, noteID uuid.UUID) ([]clinical.Diagnosis, error) {
	return m.diags[noteID], nil
}

func (m *mockNoteRepo) ReplaceGoalWork(_ context.Context, noteID uuid.UUID, items []clinical.GoalWorkItem) error {
	m.work[noteID] = items
	return nil
}

func (m *mockNoteRepo) GetGoalWork(_ context.Context, noteID uuid.UUID) ([]clinical.GoalWorkItem, error) {
	return m.work[noteID], nil
}

func (m *mockNoteRepo) SetPendingApproval(_ context.Context, noteID, approverID uuid.UUID) error {
	n := m.notes[noteID]
	n.Status = StatusPendingApproval
	n.ApproverID = &approverID
	return nil
}

func (m *mockNoteRepo) SetApproved(_ context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	n := m.notes[noteID]
	n.Status = StatusCompleted
	n.ManagerSigned = true
	n.ManagerSignedAt = &at
	n.ApproverID = &approverID
	return nil
}

func (m *mockNoteRepo) SetRejected(_ context.Context, noteID, approverID uuid.UUID, at time.Time) error {
	n := m.notes[noteID]
	n.Status = StatusRejected
	n.WasRejected = true
	n.StaffSigned = false
	n.SignatureRef = nil
	n.ApproverID = &approverID
	return nil
}

type mockDraftStore struct {
	byKey     map[string]*draft.Draft
	discarded []string
}

func newMockDraftStore() *mockDraftStore {
	return &mockDraftStore{byKey: make(map[string]*draft.Draft)}
}

func draftKey(caseID uuid.UUID, docType string) string {
	return caseID.String() + "/" + docType
}

func (m *mockDraftStore) LoadByKey(_ context.Context, caseID uuid.UUID, documentType string) (*draft.Draft, bool, error) {
	d, ok := m.byKey[draftKey(caseID, documentType)]
	return d, ok, nil
}

func (m *mockDraftStore) DiscardByKey(_ context.Context, caseID uuid.UUID, documentType string) error {
	key := draftKey(caseID, documentType)
	delete(m.byKey, key)
	m.discarded = append(m.discarded, key)
	return nil
}

type mockClinical struct {
	baseline *clinical.Baseline
	progress map[uuid.UUID]int
}

func newMockClinical() *mockClinical {
	return &mockClinical{
		baseline: &clinical.Baseline{GoalWork: map[uuid.UUID]clinical.WorkState{}},
		progress: make(map[uuid.UUID]int),
	}
}

func (m *mockClinical) Baseline(_ context.Context, clientID, caseID uuid.UUID) (*clinical.Baseline, error) {
	return m.baseline, nil
}

func (m *mockClinical) ApplyGoalProgress(_ context.Context, items []clinical.GoalWorkItem) error {
	for _, it := range items {
		m.progress[it.GoalAssignmentID] = it.ProgressAfter
	}
	return nil
}

type mockApprovals struct {
	err      error
	requests []uuid.UUID
}

func (m *mockApprovals) Request(_ context.Context, noteID, requesterID, approverID uuid.UUID, _ *string) (*approval.Request, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.requests = append(m.requests, noteID)
	return &approval.Request{ID: uuid.New(), NoteID: noteID, RequesterID: requesterID,
		ApproverID: approverID, Status: approval.StatusPending}, nil
}

// syncSubmitter runs side effects inline so tests can assert on outcomes
// without sleeping.
type syncSubmitter struct {
	mu     sync.Mutex
	seen   map[string]bool
	ran    []string
	refuse bool
}

func newSyncSubmitter() *syncSubmitter {
	return &syncSubmitter{seen: make(map[string]bool)}
}

func (s *syncSubmitter) Submit(name string, fn func(ctx context.Context) error) error {
	if s.refuse {
		return errors.New("dispatcher closed")
	}
	s.mu.Lock()
	s.ran = append(s.ran, name)
	s.mu.Unlock()
	_ = fn(context.Background())
	return nil
}

func (s *syncSubmitter) SubmitOnce(key, name string, fn func(ctx context.Context) error) error {
	if s.refuse {
		return errors.New("dispatcher closed")
	}
	s.mu.Lock()
	if s.seen[key] {
		s.mu.Unlock()
		return nil
	}
	s.seen[key] = true
	s.ran = append(s.ran, name)
	s.mu.Unlock()
	_ = fn(context.Background())
	return nil
}

type mockAccess struct {
	mu     sync.Mutex
	events []*hipaa.AccessEvent
	err    error
}

func (m *mockAccess) LogAccess(_ context.Context, e *hipaa.AccessEvent) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

type mockDocs struct {
	mu       sync.Mutex
	requests []docgen.Request
	err      error
}

func (m *mockDocs) Generate(_ context.Context, req docgen.Request) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return "documents/" + req.NoteID.String() + ".pdf", nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc       *Service
	notes     *mockNoteRepo
	drafts    *mockDraftStore
	clin      *mockClinical
	approvals *mockApprovals
	effects   *syncSubmitter
	access    *mockAccess
	docs      *mockDocs
}

func newFixture() *fixture {
	f := &fixture{
		notes:     newMockNoteRepo(),
		drafts:    newMockDraftStore(),
		clin:      newMockClinical(),
		approvals: &mockApprovals{},
		effects:   newSyncSubmitter(),
		access:    &mockAccess{},
		docs:      &mockDocs{},
	}
	f.svc = NewService(f.notes, f.drafts, f.clin, f.approvals, f.effects, f.access, f.docs,
		passTx{}, zerolog.Nop())
	return f
}

func validSession() Session {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := day.Add(10 * time.Hour)
	ref := "signatures/author.png"
	return Session{
		CaseID:       uuid.New(),
		ClientID:     uuid.New(),
		AuthorID:     uuid.New(),
		NoteType:     TypeClinical,
		VisitDate:    day,
		StartTime:    &start,
		EndTime:      &end,
		Narrative:    "met with client, reviewed coping strategies",
		SignatureRef: &ref,
	}
}

func TestSave_PersistsAndDerivesTitle(t *testing.T) {
	f := newFixture()
	sess := validSession()

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	n := result.Note
	if n.Status != StatusAuthorSigned {
		t.Errorf("expected author-signed status, got %s", n.Status)
	}
	if !n.StaffSigned || n.SignatureRef == nil {
		t.Error("expected the signature recorded on the note")
	}
	if n.Title != "Interaction - 2026-03-02 09:00-10:00" {
		t.Errorf("unexpected title %q", n.Title)
	}
	if _, ok := f.notes.notes[n.ID]; !ok {
		t.Error("note not persisted")
	}
}

func TestSave_UnsignedSessionRejected(t *testing.T) {
	f := newFixture()
	sess := validSession()
	sess.SignatureRef = nil

	_, err := f.svc.Save(context.Background(), sess)
	if !errors.Is(err, ErrSignatureRequired) {
		t.Fatalf("expected ErrSignatureRequired, got %v", err)
	}

	// A request body claiming staff-signed without a persisted note behind
	// it must not satisfy the gate either.
	sess.StaffSigned = true
	if _, err := f.svc.Save(context.Background(), sess); !errors.Is(err, ErrSignatureRequired) {
		t.Fatalf("expected ErrSignatureRequired for a claimed signature, got %v", err)
	}
	if len(f.notes.notes) != 0 {
		t.Errorf("no note row may exist for an unsigned save, found %d", len(f.notes.notes))
	}
}

func TestSave_SignedNoteLockedWithoutNewApprovalRound(t *testing.T) {
	f := newFixture()
	sess := validSession()

	first, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	// No new signature captured: the carried one must not let the content
	// of a signed note change.
	sess2 := validSession()
	sess2.CaseID = sess.CaseID
	sess2.ClientID = sess.ClientID
	sess2.AuthorID = sess.AuthorID
	sess2.NoteID = &first.Note.ID
	sess2.SignatureRef = nil
	sess2.StaffSigned = true
	sess2.Narrative = "altered after signing"

	if _, err := f.svc.Save(context.Background(), sess2); !errors.Is(err, ErrReapprovalRequired) {
		t.Fatalf("expected ErrReapprovalRequired, got %v", err)
	}
	stored := f.notes.notes[first.Note.ID]
	if stored.Narrative == nil || *stored.Narrative == "altered after signing" {
		t.Error("signed note content must not change outside an approval round")
	}
}

func TestSave_GoalWorkFilteredAndProgressRolled(t *testing.T) {
	f := newFixture()
	sess := validSession()

	worked := uuid.New()
	skipped := uuid.New()
	sess.GoalWork = map[uuid.UUID]clinical.WorkState{
		worked:  {WorkedOn: true, ProgressBefore: 30, ProgressAfter: 60, Narrative: "role played a phone call"},
		skipped: {WorkedOn: false, ProgressAfter: 99},
	}

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	items := f.notes.work[result.Note.ID]
	if len(items) != 1 {
		t.Fatalf("expected 1 goal work row, got %d", len(items))
	}
	if items[0].GoalAssignmentID != worked {
		t.Error("wrong goal persisted")
	}
	if f.clin.progress[worked] != 60 {
		t.Errorf("expected goal progress rolled to 60, got %d", f.clin.progress[worked])
	}
	if _, ok := f.clin.progress[skipped]; ok {
		t.Error("unworked goal must not have progress rolled")
	}
}

func TestSave_DeletesDraftAndFiresSideEffects(t *testing.T) {
	f := newFixture()
	sess := validSession()
	f.drafts.byKey[draftKey(sess.CaseID, sess.NoteType)] = &draft.Draft{
		ID: uuid.New(), CaseID: sess.CaseID, DocumentType: sess.NoteType,
	}

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(f.drafts.byKey) != 0 {
		t.Error("expected draft removed after save")
	}
	if len(f.docs.requests) != 1 {
		t.Fatalf("expected 1 docgen request, got %d", len(f.docs.requests))
	}
	if f.docs.requests[0].NoteID != result.Note.ID {
		t.Error("docgen request carries the wrong note")
	}
	if len(f.access.events) != 1 {
		t.Fatalf("expected 1 access event, got %d", len(f.access.events))
	}
	if f.access.events[0].Action != "save" {
		t.Errorf("expected save access event, got %s", f.access.events[0].Action)
	}
}

func TestSave_SideEffectFailureDoesNotFailSave(t *testing.T) {
	f := newFixture()
	f.docs.err = errors.New("render service down")
	f.access.err = errors.New("audit store down")

	result, err := f.svc.Save(context.Background(), validSession())
	if err != nil {
		t.Fatalf("save must succeed despite side-effect failures: %v", err)
	}
	if result.Note == nil {
		t.Fatal("expected saved note")
	}
}

func TestSave_SchedulingFailureBecomesWarning(t *testing.T) {
	f := newFixture()
	f.effects.refuse = true

	result, err := f.svc.Save(context.Background(), validSession())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected warnings when side effects cannot be scheduled")
	}
}

func TestSave_ApprovalRequested(t *testing.T) {
	f := newFixture()
	sess := validSession()
	ref := "signatures/a.png"
	approver := uuid.New()
	sess.SignatureRef = &ref
	sess.RequestApproval = true
	sess.ApproverID = &approver

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Approval == nil {
		t.Fatal("expected approval request")
	}
	if result.Note.Status != StatusPendingApproval {
		t.Errorf("expected pending-approval, got %s", result.Note.Status)
	}
}

func TestSave_ApprovalFailureIsWarningNotError(t *testing.T) {
	f := newFixture()
	f.approvals.err = errors.New("inbox unavailable")

	sess := validSession()
	ref := "signatures/a.png"
	approver := uuid.New()
	sess.SignatureRef = &ref
	sess.RequestApproval = true
	sess.ApproverID = &approver

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save must not fail when the approval request does: %v", err)
	}
	if result.Approval != nil {
		t.Error("no approval should be reported")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about the failed approval request")
	}
	if result.Note.Status != StatusAuthorSigned {
		t.Errorf("note stays author-signed, got %s", result.Note.Status)
	}
}

func TestSave_ResignOfSignedNoteRequiresReapproval(t *testing.T) {
	f := newFixture()
	sess := validSession()
	ref := "signatures/a.png"
	sess.SignatureRef = &ref

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Reopen and try to sign again without a rejection in between.
	id := result.Note.ID
	sess2 := validSession()
	sess2.NoteID = &id
	sess2.CaseID = sess.CaseID
	ref2 := "signatures/b.png"
	sess2.SignatureRef = &ref2

	if _, err := f.svc.Save(context.Background(), sess2); !errors.Is(err, ErrReapprovalRequired) {
		t.Fatalf("expected ErrReapprovalRequired, got %v", err)
	}
}

func TestSave_RejectedNoteCanBeResigned(t *testing.T) {
	f := newFixture()
	sess := validSession()
	ref := "signatures/a.png"
	sess.SignatureRef = &ref

	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	id := result.Note.ID
	approver := uuid.New()
	if err := f.notes.SetRejected(context.Background(), id, approver, time.Now()); err != nil {
		t.Fatalf("reject: %v", err)
	}

	sess2 := validSession()
	sess2.NoteID = &id
	sess2.CaseID = sess.CaseID
	ref2 := "signatures/b.png"
	sess2.SignatureRef = &ref2

	result2, err := f.svc.Save(context.Background(), sess2)
	if err != nil {
		t.Fatalf("re-sign after rejection must be allowed: %v", err)
	}
	n := result2.Note
	if !n.StaffSigned || n.Status != StatusAuthorSigned {
		t.Error("expected note re-signed")
	}
	if !n.WasRejected {
		t.Error("rejection history must survive a re-sign")
	}
	if n.ApproverID == nil || *n.ApproverID != approver {
		t.Error("recorded approver must survive a re-sign")
	}
}

func TestSave_CompletedNoteNotEditable(t *testing.T) {
	f := newFixture()
	sess := validSession()
	result, err := f.svc.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	id := result.Note.ID
	if err := f.notes.SetApproved(context.Background(), id, uuid.New(), time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	sess2 := validSession()
	sess2.NoteID = &id
	if _, err := f.svc.Save(context.Background(), sess2); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestOpen_MergesDraft(t *testing.T) {
	f := newFixture()
	caseID := uuid.New()
	clientID := uuid.New()

	dxID := uuid.New()
	f.clin.baseline = &clinical.Baseline{
		Diagnoses: []clinical.Diagnosis{
			{Kind: clinical.DiagnosisExisting, DiagnosisID: &dxID, Code: "F32.9", Status: "active"},
		},
		GoalWork: map[uuid.UUID]clinical.WorkState{},
	}

	snap := Session{
		Narrative: "picked up where we left off",
		Diagnoses: []clinical.Diagnosis{
			{Kind: clinical.DiagnosisExisting, DiagnosisID: &dxID, Code: "F32.9", IsPrimary: true},
		},
		ActiveSection: "goals",
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	f.drafts.byKey[draftKey(caseID, TypeClinical)] = &draft.Draft{
		ID: uuid.New(), CaseID: caseID, DocumentType: TypeClinical, Payload: payload,
	}

	sess, err := f.svc.Open(context.Background(), OpenParams{
		CaseID: caseID, ClientID: clientID, NoteType: TypeClinical, AuthorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.Narrative != "picked up where we left off" {
		t.Error("draft narrative must win")
	}
	if sess.ActiveSection != "goals" {
		t.Error("active section must be restored")
	}
	if len(sess.Diagnoses) != 1 || !sess.Diagnoses[0].IsPrimary {
		t.Fatal("draft diagnosis selection must be applied")
	}
	if sess.Diagnoses[0].Status != "active" {
		t.Error("baseline status must survive the merge")
	}
}

func TestOpen_LogsAccessOncePerRecord(t *testing.T) {
	f := newFixture()
	p := OpenParams{CaseID: uuid.New(), ClientID: uuid.New(), NoteType: TypeClinical, AuthorID: uuid.New()}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Open(context.Background(), p); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if len(f.access.events) != 1 {
		t.Errorf("expected a single access event for repeated opens, got %d", len(f.access.events))
	}
}

func TestOpen_CompletedNoteNotEditable(t *testing.T) {
	f := newFixture()
	n := &Note{ID: uuid.New(), CaseID: uuid.New(), ClientID: uuid.New(), AuthorID: uuid.New(),
		NoteType: TypeClinical, Status: StatusCompleted, VisitDate: time.Now()}
	f.notes.notes[n.ID] = n

	_, err := f.svc.Open(context.Background(), OpenParams{
		CaseID: n.CaseID, ClientID: n.ClientID, NoteType: n.NoteType, AuthorID: n.AuthorID, NoteID: &n.ID,
	})
	if !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestBindSignature(t *testing.T) {
	f := newFixture()
	author := uuid.New()
	n := &Note{ID: uuid.New(), CaseID: uuid.New(), ClientID: uuid.New(), AuthorID: author,
		NoteType: TypeClinical, Status: StatusRejected, WasRejected: true, VisitDate: time.Now()}
	f.notes.notes[n.ID] = n

	signed, err := f.svc.BindSignature(context.Background(), n.ID, author, "signatures/s.png")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if !signed.StaffSigned || signed.Status != StatusAuthorSigned {
		t.Error("expected note author-signed")
	}
	if signed.SignatureRef == nil || *signed.SignatureRef != "signatures/s.png" {
		t.Error("expected signature reference stored")
	}

	// A different user cannot sign.
	n2 := &Note{ID: uuid.New(), CaseID: uuid.New(), ClientID: uuid.New(), AuthorID: author,
		NoteType: TypeClinical, Status: StatusRejected, WasRejected: true, VisitDate: time.Now()}
	f.notes.notes[n2.ID] = n2
	if _, err := f.svc.BindSignature(context.Background(), n2.ID, uuid.New(), "signatures/x.png"); err == nil {
		t.Error("expected error for non-author signature")
	}
}
