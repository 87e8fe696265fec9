package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	perr "openshelf/internal/platform/errors"
	dom "openshelf/internal/services/ingest/domain"
)

// RecordsSchema creates the candidate records table. The collaborator owns
// uniqueness on (source, source_id)
const RecordsSchema = `
CREATE TABLE IF NOT EXISTS candidate_records (
	id               UUID PRIMARY KEY,
	source           TEXT NOT NULL,
	source_id        TEXT NOT NULL,
	source_url       TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL,
	author           TEXT NOT NULL DEFAULT '',
	license_type     TEXT NOT NULL DEFAULT 'unknown',
	verified         BOOLEAN NOT NULL DEFAULT FALSE,
	needs_review     BOOLEAN NOT NULL DEFAULT FALSE,
	publication_year INT NOT NULL DEFAULT 0,
	text_path        TEXT NOT NULL DEFAULT '',
	html_path        TEXT NOT NULL DEFAULT '',
	markdown_path    TEXT NOT NULL DEFAULT '',
	package_path     TEXT NOT NULL DEFAULT '',
	word_count       INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_id)
);
`

// Records is the Postgres candidate-record collaborator adapter
type Records struct {
	pool *pgxpool.Pool
}

// NewRecords wraps an opened pool
func NewRecords(pool *pgxpool.Pool) *Records {
	return &Records{pool: pool}
}

// Exists implements domain.RecordsPort
func (r *Records) Exists(ctx context.Context, source, sourceID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM candidate_records WHERE source = $1 AND source_id = $2)`,
		source, sourceID).Scan(&exists)
	if err != nil {
		return false, perr.WithOp(perr.FromPg(err), "records.exists")
	}
	return exists, nil
}

// Insert implements domain.RecordsPort. Concurrent first-time races
// converge on one row; the surviving row's id comes back either way
func (r *Records) Insert(ctx context.Context, rec dom.CandidateRecord) (string, error) {
	id := uuid.NewString()
	var got string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO candidate_records (
			id, source, source_id, source_url, title, author,
			license_type, verified, needs_review, publication_year,
			text_path, html_path, markdown_path, package_path, word_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (source, source_id) DO NOTHING
		RETURNING id`,
		id, rec.Source, rec.SourceID, rec.SourceURL, rec.Title, rec.Author,
		rec.LicenseType, rec.Verified, rec.NeedsReview, rec.PublicationYear,
		rec.TextPath, rec.HTMLPath, rec.MarkdownPath, rec.PackagePath, rec.WordCount,
	).Scan(&got)
	if err == nil {
		return got, nil
	}
	if err != pgx.ErrNoRows {
		return "", perr.WithOp(perr.FromPg(err), "records.insert")
	}

	// conflict path: the row already existed, fetch its id
	err = r.pool.QueryRow(ctx,
		`SELECT id FROM candidate_records WHERE source = $1 AND source_id = $2`,
		rec.Source, rec.SourceID).Scan(&got)
	if err != nil {
		return "", perr.WithOp(perr.FromPg(err), "records.insert")
	}
	return got, nil
}
