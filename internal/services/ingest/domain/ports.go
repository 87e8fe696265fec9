package domain

import (
	"context"
	"time"
)

// QueuePort is the durable ingest request queue
type QueuePort interface {
	Submit(ctx context.Context, source, identifier, format string) (Request, error)
	Get(ctx context.Context, id string) (Request, bool, error)

	// Claim atomically moves the oldest pending request to running
	Claim(ctx context.Context) (Request, bool, error)

	MarkDone(ctx context.Context, id, recordID string) error
	MarkFailed(ctx context.Context, id string, stage Stage, reason string) error

	// Purge deletes finished requests older than the cutoff and returns
	// how many were removed
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// RecordsPort is the candidate-record persistence collaborator
type RecordsPort interface {
	// Exists reports whether the work already has a candidate record
	Exists(ctx context.Context, source, sourceID string) (bool, error)

	// Insert stores the record and returns its id. Inserting a work that
	// raced in concurrently returns the surviving row's id
	Insert(ctx context.Context, rec CandidateRecord) (string, error)
}

// RunnerPort executes ingestion requests
type RunnerPort interface {
	Run(ctx context.Context, req Request) Outcome
}
