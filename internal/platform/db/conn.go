package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	// DBConnKey carries a pinned pool connection, when a caller needs all
	// statements on one session.
	DBConnKey contextKey = "db_conn"
)

// ConnFromContext retrieves a pinned database connection from context, if one
// was attached with WithConn.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// WithConn attaches a pinned connection to the context. Repositories route
// their statements through it instead of the pool.
func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, DBConnKey, conn)
}
