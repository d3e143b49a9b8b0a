package hipaa

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenotes/carenotes/internal/platform/db"
)

// AccessEvent records one touch of protected health information: who read or
// wrote which record, from where, and which PII fields were involved.
type AccessEvent struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	AccessedByID uuid.UUID `json:"accessed_by_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   uuid.UUID `json:"resource_id"`
	Action       string    `json:"action"` // view / save / sign
	Source       string    `json:"source"`
	PIIFields    []string  `json:"pii_fields,omitempty"`
	AccessedAt   time.Time `json:"accessed_at"`
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AccessLogger writes and reads PHI access rows. Writes are always invoked
// through the side-effect dispatcher: a failed write is the dispatcher's
// problem, never the caller's.
type AccessLogger struct {
	pool querier
}

func NewAccessLogger(pool *pgxpool.Pool) *AccessLogger {
	return &AccessLogger{pool: pool}
}

func (a *AccessLogger) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return a.pool
}

func (a *AccessLogger) LogAccess(ctx context.Context, e *AccessEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.AccessedAt.IsZero() {
		e.AccessedAt = time.Now().UTC()
	}

	_, err := a.conn(ctx).Exec(ctx, `
		INSERT INTO phi_access_log (id, client_id, accessed_by_id, resource_type, resource_id,
			action, source, pii_fields, accessed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.ClientID, e.AccessedByID, e.ResourceType, e.ResourceID,
		e.Action, e.Source, e.PIIFields, e.AccessedAt)
	return err
}

// ListByClient returns the client's access trail, newest first.
func (a *AccessLogger) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*AccessEvent, int, error) {
	conn := a.conn(ctx)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM phi_access_log WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, client_id, accessed_by_id, resource_type, resource_id,
			action, source, pii_fields, accessed_at
		FROM phi_access_log WHERE client_id = $1
		ORDER BY accessed_at DESC LIMIT $2 OFFSET $3`,
		clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AccessEvent
	for rows.Next() {
		var e AccessEvent
		if err := rows.Scan(&e.ID, &e.ClientID, &e.AccessedByID, &e.ResourceType, &e.ResourceID,
			&e.Action, &e.Source, &e.PIIFields, &e.AccessedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
