package roster

import (
	"time"

	"github.com/google/uuid"
)

// Staff is a program team member who can author or approve notes.
type Staff struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	Role               string     `db:"role" json:"role"`
	ManagerID          *uuid.UUID `db:"manager_id" json:"manager_id,omitempty"`
	IsSigningAuthority bool       `db:"is_signing_authority" json:"is_signing_authority"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// SigningAuthority is a picker entry for the co-signature flow.
type SigningAuthority struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

func (s *Staff) DisplayName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	return s.FirstName + " " + s.LastName
}
