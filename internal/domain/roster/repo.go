package roster

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	ListSigningAuthorities(ctx context.Context) ([]*Staff, error)
}
