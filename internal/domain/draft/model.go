package draft

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Draft is a resumable snapshot of an in-progress note session. One draft
// exists per (case, document type); saving again overwrites it. The payload
// is opaque to this package: the session controller owns its shape.
type Draft struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	CaseID       uuid.UUID       `db:"case_id" json:"case_id"`
	DocumentType string          `db:"document_type" json:"document_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	CreatedByID  uuid.UUID       `db:"created_by_id" json:"created_by_id"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
