// Package domain defines the types and interfaces for the ingest service
package domain

import "time"

// Stage is a step of the ingestion state machine
type Stage string

// Ingestion stages in execution order
const (
	StageStart        Stage = "start"
	StageDedupCheck   Stage = "dedup_check"
	StageFetchDetails Stage = "fetch_details"
	StageDownload     Stage = "download"
	StageVerify       Stage = "verify"
	StageNormalize    Stage = "normalize"
	StageDone         Stage = "done"
)

// Status is a queue entry's lifecycle state
type Status string

// Queue statuses
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ReasonDuplicate marks a request rejected because the work already has a
// candidate record
const ReasonDuplicate = "duplicate"

// Request is one queued ingestion request
type Request struct {
	ID         string
	Source     string
	Identifier string
	Format     string
	Status     Status
	Stage      Stage
	Reason     string
	RecordID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CandidateRecord is the finished work handed to the records collaborator
type CandidateRecord struct {
	Source          string
	SourceID        string
	SourceURL       string
	Title           string
	Author          string
	LicenseType     string
	Verified        bool
	NeedsReview     bool
	PublicationYear int
	TextPath        string
	HTMLPath        string
	MarkdownPath    string
	PackagePath     string
	WordCount       int
}

// Outcome reports how far one ingestion run got
type Outcome struct {
	RequestID string
	Status    Status
	Stage     Stage
	Reason    string
	RecordID  string
	Record    *CandidateRecord
}
