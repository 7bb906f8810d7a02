package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	domain "github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
)

type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository { return &JournalRepository{db: db} }

func (r *JournalRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO workspace_operation_errors
  (session_id, controller, operation, kind, status, message, details_json, created_at)
VALUES (?,?,?,?,?,?,?,?)
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.SessionID),
		stringOrDash(e.Controller),
		stringOrDash(e.Operation),
		stringOrDash(e.Kind),
		e.Status,
		stringOrDash(e.Message),
		jsonOrWrapped(e.DetailsJSON),
		created.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert journal entry")
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *JournalRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, session_id, controller, operation, kind, status, message, details_json, created_at
FROM workspace_operation_errors
WHERE session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query journal")
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Controller, &e.Operation, &e.Kind, &e.Status, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
