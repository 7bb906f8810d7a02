package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS workspace_operation_errors (
  id           BIGSERIAL PRIMARY KEY,
  session_id   VARCHAR(64)  NOT NULL,
  controller   VARCHAR(32)  NOT NULL,
  operation    VARCHAR(64)  NOT NULL,
  kind         VARCHAR(32)  NOT NULL,
  status       INTEGER      NOT NULL DEFAULT 0,
  message      TEXT         NOT NULL,
  details_json JSONB        NOT NULL DEFAULT '{}',
  created_at   TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workspace_operation_errors_session
  ON workspace_operation_errors (session_id, created_at DESC);`

// EnsureSchema creates the journal table when missing
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "create journal table")
}
