package draft

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert writes the draft, keyed by (case_id, document_type). A second
	// save for the same key updates the existing row; d.ID is set to the
	// surviving row's id.
	Upsert(ctx context.Context, d *Draft) error
	GetByID(ctx context.Context, id uuid.UUID) (*Draft, error)
	GetByKey(ctx context.Context, caseID uuid.UUID, documentType string) (*Draft, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByKey(ctx context.Context, caseID uuid.UUID, documentType string) error
}
