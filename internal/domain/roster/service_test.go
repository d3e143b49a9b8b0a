package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockStaffRepo struct {
	staff       map[uuid.UUID]*Staff
	authorities []*Staff
}

func (m *mockStaffRepo) GetByID(_ context.Context, id uuid.UUID) (*Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return nil, errors.New("staff not found")
	}
	return s, nil
}

func (m *mockStaffRepo) ListSigningAuthorities(_ context.Context) ([]*Staff, error) {
	return m.authorities, nil
}

func TestSigningAuthorities_ManagerFirst(t *testing.T) {
	manager := &Staff{ID: uuid.New(), FirstName: "Dana", LastName: "Ibarra", IsSigningAuthority: true, IsActive: true}
	other := &Staff{ID: uuid.New(), FirstName: "Alex", LastName: "Chen", IsSigningAuthority: true, IsActive: true}
	author := &Staff{ID: uuid.New(), FirstName: "Sam", LastName: "Reed", ManagerID: &manager.ID, IsActive: true}

	repo := &mockStaffRepo{
		staff:       map[uuid.UUID]*Staff{author.ID: author, manager.ID: manager},
		authorities: []*Staff{other, manager},
	}
	svc := NewService(repo, zerolog.Nop())

	list, hasManager, err := svc.SigningAuthorities(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("signing authorities: %v", err)
	}
	if !hasManager {
		t.Error("expected manager flagged present")
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 authorities, got %d", len(list))
	}
	if list[0].ID != manager.ID {
		t.Error("expected the author's manager first")
	}
	if list[0].Label != "Dana Ibarra" {
		t.Errorf("unexpected label %q", list[0].Label)
	}
}

func TestSigningAuthorities_NoManager(t *testing.T) {
	a := &Staff{ID: uuid.New(), FirstName: "Alex", LastName: "Chen", IsSigningAuthority: true, IsActive: true}
	author := &Staff{ID: uuid.New(), FirstName: "Sam", LastName: "Reed", IsActive: true}

	repo := &mockStaffRepo{
		staff:       map[uuid.UUID]*Staff{author.ID: author},
		authorities: []*Staff{a},
	}
	svc := NewService(repo, zerolog.Nop())

	list, hasManager, err := svc.SigningAuthorities(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("signing authorities: %v", err)
	}
	if hasManager {
		t.Error("author has no manager")
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 authority, got %d", len(list))
	}
}

func TestSigningAuthorities_UnknownStaffStillLists(t *testing.T) {
	a := &Staff{ID: uuid.New(), FirstName: "Alex", LastName: "Chen", IsSigningAuthority: true, IsActive: true}
	repo := &mockStaffRepo{staff: map[uuid.UUID]*Staff{}, authorities: []*Staff{a}}
	svc := NewService(repo, zerolog.Nop())

	list, hasManager, err := svc.SigningAuthorities(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("signing authorities: %v", err)
	}
	if hasManager || len(list) != 1 {
		t.Errorf("expected plain list, got hasManager=%v len=%d", hasManager, len(list))
	}
}
