// Package repo implements the ingest service storage: the SQLite request
// queue and the Postgres candidate-record collaborator
package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	perr "openshelf/internal/platform/errors"
	dom "openshelf/internal/services/ingest/domain"
)

// QueueSchema creates the request queue table
const QueueSchema = `
CREATE TABLE IF NOT EXISTS ingest_requests (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	format     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	stage      TEXT NOT NULL DEFAULT 'start',
	reason     TEXT NOT NULL DEFAULT '',
	record_id  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_requests_status ON ingest_requests (status, created_at);
`

// Queue is the durable request queue backed by SQLite
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueue wraps an opened database. The caller applies QueueSchema
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// Submit implements domain.QueuePort
func (q *Queue) Submit(ctx context.Context, source, identifier, format string) (dom.Request, error) {
	now := q.now().UTC()
	req := dom.Request{
		ID:         uuid.NewString(),
		Source:     source,
		Identifier: identifier,
		Format:     format,
		Status:     dom.StatusPending,
		Stage:      dom.StageStart,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ingest_requests (id, source, identifier, format, status, stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Source, req.Identifier, req.Format, req.Status, req.Stage, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return dom.Request{}, perr.DBf("queue submit: %v", err)
	}
	return req, nil
}

// Get implements domain.QueuePort
func (q *Queue) Get(ctx context.Context, id string) (dom.Request, bool, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, source, identifier, format, status, stage, reason, record_id, created_at, updated_at
		FROM ingest_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return dom.Request{}, false, nil
	}
	if err != nil {
		return dom.Request{}, false, perr.DBf("queue get: %v", err)
	}
	return req, true, nil
}

// Claim implements domain.QueuePort. The oldest pending request flips to
// running in one statement so concurrent workers never claim the same entry
func (q *Queue) Claim(ctx context.Context) (dom.Request, bool, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE ingest_requests
		SET status = 'running', updated_at = ?
		WHERE id = (
			SELECT id FROM ingest_requests WHERE status = 'pending' ORDER BY created_at LIMIT 1
		)
		RETURNING id, source, identifier, format, status, stage, reason, record_id, created_at, updated_at`,
		q.now().UTC())
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return dom.Request{}, false, nil
	}
	if err != nil {
		return dom.Request{}, false, perr.DBf("queue claim: %v", err)
	}
	return req, true, nil
}

// MarkDone implements domain.QueuePort
func (q *Queue) MarkDone(ctx context.Context, id, recordID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE ingest_requests
		SET status = 'done', stage = 'done', record_id = ?, updated_at = ?
		WHERE id = ?`, recordID, q.now().UTC(), id)
	if err != nil {
		return perr.DBf("queue mark done: %v", err)
	}
	return nil
}

// MarkFailed implements domain.QueuePort
func (q *Queue) MarkFailed(ctx context.Context, id string, stage dom.Stage, reason string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE ingest_requests
		SET status = 'failed', stage = ?, reason = ?, updated_at = ?
		WHERE id = ?`, stage, reason, q.now().UTC(), id)
	if err != nil {
		return perr.DBf("queue mark failed: %v", err)
	}
	return nil
}

// Purge implements domain.QueuePort. Only finished requests are removed
func (q *Queue) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM ingest_requests
		WHERE status IN ('done', 'failed') AND updated_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, perr.DBf("queue purge: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, perr.DBf("queue purge count: %v", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (dom.Request, error) {
	var req dom.Request
	err := row.Scan(
		&req.ID, &req.Source, &req.Identifier, &req.Format,
		&req.Status, &req.Stage, &req.Reason, &req.RecordID,
		&req.CreatedAt, &req.UpdatedAt,
	)
	return req, err
}
