package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	drafts Repository
}

func NewService(drafts Repository) *Service {
	return &Service{drafts: drafts}
}

// Save validates and upserts a draft. Saving twice for the same case and
// document type always leaves exactly one row.
func (s *Service) Save(ctx context.Context, d *Draft) error {
	if d.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if d.DocumentType == "" {
		return fmt.Errorf("document_type is required")
	}
	if len(d.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return s.drafts.Upsert(ctx, d)
}

// Load fetches a draft by id. A missing draft is not an error: starting a
// session without one is the normal path.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (*Draft, bool, error) {
	d, err := s.drafts.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// LoadByKey fetches the draft for a case and document type, if any.
func (s *Service) LoadByKey(ctx context.Context, caseID uuid.UUID, documentType string) (*Draft, bool, error) {
	d, err := s.drafts.GetByKey(ctx, caseID, documentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// Discard removes a draft. Deleting a draft that is already gone succeeds.
func (s *Service) Discard(ctx context.Context, id uuid.UUID) error {
	return s.drafts.Delete(ctx, id)
}

// DiscardByKey removes the draft for a case and document type, if present.
func (s *Service) DiscardByKey(ctx context.Context, caseID uuid.UUID, documentType string) error {
	return s.drafts.DeleteByKey(ctx, caseID, documentType)
}
