package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRequestRepo struct {
	byID map[uuid.UUID]*Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{byID: make(map[uuid.UUID]*Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) Update(_ context.Context, r *Request) error {
	if _, ok := m.byID[r.ID]; !ok {
		return errors.New("not found")
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetPendingByNote(_ context.Context, noteID uuid.UUID) (*Request, error) {
	for _, r := range m.byID {
		if r.NoteID == noteID && r.Status == StatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) ListPendingForApprover(_ context.Context, approverID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var items []*Request
	for _, r := range m.byID {
		if r.ApproverID == approverID && r.Status == StatusPending {
			cp := *r
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

// mockNoteGateway tracks lifecycle transitions the way the note package's
// repository would.
type mockNoteGateway struct {
	states map[uuid.UUID]*NoteState
}

func newMockNoteGateway() *mockNoteGateway {
	return &mockNoteGateway{states: make(map[uuid.UUID]*NoteState)}
}

func (m *mockNoteGateway) State(_ context.Context, noteID uuid.UUID) (*NoteState, error) {
	st, ok := m.states[noteID]
	if !ok {
		return nil, errors.New("note not found")
	}
	cp := *st
	return &cp, nil
}

func (m *mockNoteGateway) SetPendingApproval(_ context.Context, noteID, approverID uuid.UUID) error {
	st := m.states[noteID]
	st.ApproverID = &approverID
	return nil
}

func (m *mockNoteGateway) SetApproved(_ context.Context, noteID, approverID uuid.UUID, _ time.Time) error {
	st := m.states[noteID]
	st.Completed = true
	st.ApproverID = &approverID
	return nil
}

func (m *mockNoteGateway) SetRejected(_ context.Context, noteID, approverID uuid.UUID, _ time.Time) error {
	st := m.states[noteID]
	st.AuthorSigned = false
	st.WasRejected = true
	st.ApproverID = &approverID
	return nil
}

func signedNote(gw *mockNoteGateway) uuid.UUID {
	noteID := uuid.New()
	gw.states[noteID] = &NoteState{
		NoteID:       noteID,
		CaseID:       uuid.New(),
		AuthorID:     uuid.New(),
		AuthorSigned: true,
	}
	return noteID
}

func TestRequest_RequiresAuthorSignature(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)

	noteID := signedNote(gw)
	gw.states[noteID].AuthorSigned = false

	_, err := svc.Request(context.Background(), noteID, uuid.New(), uuid.New(), nil)
	if !errors.Is(err, ErrNotSigned) {
		t.Fatalf("expected ErrNotSigned, got %v", err)
	}
}

func TestRequest_CompletedNoteRejected(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)

	noteID := signedNote(gw)
	gw.states[noteID].Completed = true

	_, err := svc.Request(context.Background(), noteID, uuid.New(), uuid.New(), nil)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestRequest_DuplicateReturnsExisting(t *testing.T) {
	gw := newMockNoteGateway()
	repo := newMockRequestRepo()
	svc := NewService(repo, gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	approver := uuid.New()

	first, err := svc.Request(ctx, noteID, uuid.New(), approver, nil)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := svc.Request(ctx, noteID, uuid.New(), approver, nil)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected the pending request to be reused")
	}
	if len(repo.byID) != 1 {
		t.Errorf("expected 1 request row, got %d", len(repo.byID))
	}
}

func TestApprove_CompletesNote(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	approver := uuid.New()

	r, err := svc.Request(ctx, noteID, uuid.New(), approver, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	decided, err := svc.Approve(ctx, r.ID, approver)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != StatusApproved {
		t.Errorf("expected approved, got %s", decided.Status)
	}
	if decided.RespondedAt == nil {
		t.Error("expected responded_at set")
	}
	if !gw.states[noteID].Completed {
		t.Error("expected note marked completed")
	}
}

func TestApprove_WrongApprover(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	r, err := svc.Request(ctx, noteID, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Approve(ctx, r.ID, uuid.New()); !errors.Is(err, ErrWrongApprover) {
		t.Fatalf("expected ErrWrongApprover, got %v", err)
	}
}

func TestReject_ReopensNoteAndClearsSignature(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	approver := uuid.New()
	reason := "missing goal narrative"

	r, err := svc.Request(ctx, noteID, uuid.New(), approver, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	decided, err := svc.Reject(ctx, r.ID, approver, &reason)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if decided.Status != StatusRejected {
		t.Errorf("expected rejected, got %s", decided.Status)
	}
	st := gw.states[noteID]
	if st.AuthorSigned {
		t.Error("expected author signature cleared")
	}
	if !st.WasRejected {
		t.Error("expected note marked rejected")
	}
	if st.ApproverID == nil || *st.ApproverID != approver {
		t.Error("expected rejecting approver kept on the note")
	}
}

func TestRequest_RejectedNotePinsOriginalApprover(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	author := uuid.New()
	m1 := uuid.New()
	m2 := uuid.New()

	r, err := svc.Request(ctx, noteID, author, m1, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Reject(ctx, r.ID, m1, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// Author re-signs and resubmits, this time picking a different manager.
	gw.states[noteID].AuthorSigned = true

	resubmitted, err := svc.Request(ctx, noteID, author, m2, nil)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.ApproverID != m1 {
		t.Errorf("expected request routed back to the rejecting approver, got %s", resubmitted.ApproverID)
	}
}

func TestDecide_NotPendingTwice(t *testing.T) {
	gw := newMockNoteGateway()
	svc := NewService(newMockRequestRepo(), gw)
	ctx := context.Background()

	noteID := signedNote(gw)
	approver := uuid.New()
	r, err := svc.Request(ctx, noteID, uuid.New(), approver, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Approve(ctx, r.ID, approver); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Approve(ctx, r.ID, approver); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}
