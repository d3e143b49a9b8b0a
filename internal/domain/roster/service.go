package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SigningAuthorities returns the approver picker for the given staff member.
// The list holds every active signing authority; when the staff member has a
// manager on that list, the manager is moved to the front so the picker can
// default to them.
func (s *Service) SigningAuthorities(ctx context.Context, staffID uuid.UUID) ([]SigningAuthority, bool, error) {
	authorities, err := s.repo.ListSigningAuthorities(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list signing authorities: %w", err)
	}

	var managerID *uuid.UUID
	if staffID != uuid.Nil {
		staff, err := s.repo.GetByID(ctx, staffID)
		if err != nil {
			// Picker still works without the default; just don't pin anyone.
			s.log.Warn().Err(err).Str("staff_id", staffID.String()).Msg("could not resolve staff for approver default")
		} else {
			managerID = staff.ManagerID
		}
	}

	out := make([]SigningAuthority, 0, len(authorities))
	hasManager := false
	for _, a := range authorities {
		entry := SigningAuthority{ID: a.ID, Label: a.DisplayName()}
		if managerID != nil && a.ID == *managerID {
			out = append([]SigningAuthority{entry}, out...)
			hasManager = true
			continue
		}
		out = append(out, entry)
	}
	return out, hasManager, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}
