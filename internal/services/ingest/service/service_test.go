package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"openshelf/internal/adapters/sources"
	"openshelf/internal/core/license"
	dom "openshelf/internal/services/ingest/domain"
	verifyrepo "openshelf/internal/services/verify/repo"
	verifysvc "openshelf/internal/services/verify/service"
)

type fakeQueue struct {
	mu     sync.Mutex
	done   map[string]string
	failed map[string]struct {
		stage  dom.Stage
		reason string
	}
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		done: map[string]string{},
		failed: map[string]struct {
			stage  dom.Stage
			reason string
		}{},
	}
}

func (q *fakeQueue) Submit(context.Context, string, string, string) (dom.Request, error) {
	return dom.Request{}, nil
}
func (q *fakeQueue) Get(context.Context, string) (dom.Request, bool, error) {
	return dom.Request{}, false, nil
}
func (q *fakeQueue) Claim(context.Context) (dom.Request, bool, error) {
	return dom.Request{}, false, nil
}
func (q *fakeQueue) MarkDone(_ context.Context, id, recordID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done[id] = recordID
	return nil
}
func (q *fakeQueue) MarkFailed(_ context.Context, id string, stage dom.Stage, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = struct {
		stage  dom.Stage
		reason string
	}{stage, reason}
	return nil
}
func (q *fakeQueue) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeRecords struct {
	mu       sync.Mutex
	inserted []dom.CandidateRecord
	ids      map[string]string
}

func newFakeRecords() *fakeRecords { return &fakeRecords{ids: map[string]string{}} }

func (r *fakeRecords) Exists(_ context.Context, source, sourceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[source+":"+sourceID]
	return ok, nil
}

func (r *fakeRecords) Insert(_ context.Context, rec dom.CandidateRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.Source + ":" + rec.SourceID
	if id, ok := r.ids[key]; ok {
		return id, nil
	}
	id := "rec-" + key
	r.ids[key] = id
	r.inserted = append(r.inserted, rec)
	return id, nil
}

// fakeConnector serves one fixed work and writes body as the downloaded
// artifact
type fakeConnector struct {
	source string
	rec    sources.Record
	body   string
}

func (c *fakeConnector) Source() string { return c.source }
func (c *fakeConnector) Search(context.Context, string) ([]sources.Record, error) {
	return nil, nil
}
func (c *fakeConnector) Details(context.Context, string) (sources.Record, error) {
	return c.rec, nil
}
func (c *fakeConnector) Download(_ context.Context, rec sources.Record, _, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, rec.ID+".txt")
	return dest, os.WriteFile(dest, []byte(c.body), 0o644)
}

func newTestService(t *testing.T, queue dom.QueuePort, records dom.RecordsPort, conn sources.Connector) *Service {
	t.Helper()
	store, err := verifyrepo.NewJSON(filepath.Join(t.TempDir(), "verifications.json"))
	if err != nil {
		t.Fatalf("NewJSON: %v", err)
	}
	verifier := verifysvc.New(store, license.MustLoad())
	return New(queue, records, verifier, []sources.Connector{conn}, Config{BooksDir: t.TempDir()})
}

const brandedBody = `The Project Gutenberg eBook of Pride and Prejudice

*** START OF THE PROJECT GUTENBERG EBOOK PRIDE AND PREJUDICE ***

It is a truth universally acknowledged, that a single man in
possession of a good fortune, must be in want of a wife.

*** END OF THE PROJECT GUTENBERG EBOOK PRIDE AND PREJUDICE ***`

func TestRunHappyPath(t *testing.T) {
	queue := newFakeQueue()
	records := newFakeRecords()
	conn := &fakeConnector{
		source: sources.SourceGutenberg,
		rec: sources.Record{
			Source: sources.SourceGutenberg,
			ID:     "1342",
			Title:  "Pride and Prejudice",
			Author: "Jane Austen",
			Date:   "June 1, 1998",
			URL:    "https://www.gutenberg.org/ebooks/1342",
		},
		body: brandedBody,
	}
	s := newTestService(t, queue, records, conn)

	out := s.Run(context.Background(), dom.Request{ID: "req-1", Source: sources.SourceGutenberg, Identifier: "1342"})
	if out.Status != dom.StatusDone || out.Stage != dom.StageDone {
		t.Fatalf("outcome = %+v", out)
	}
	if queue.done["req-1"] != out.RecordID {
		t.Fatalf("queue not marked done: %+v", queue.done)
	}
	if len(records.inserted) != 1 {
		t.Fatalf("inserted = %+v", records.inserted)
	}

	rec := records.inserted[0]
	if !rec.Verified || rec.NeedsReview {
		t.Fatalf("branding stripped text should verify: %+v", rec)
	}
	if rec.LicenseType != "US PD" {
		t.Fatalf("license type = %q", rec.LicenseType)
	}
	if rec.WordCount == 0 || rec.TextPath == "" || rec.HTMLPath == "" || rec.MarkdownPath == "" {
		t.Fatalf("renditions missing: %+v", rec)
	}

	text, err := os.ReadFile(rec.TextPath)
	if err != nil {
		t.Fatalf("read text rendition: %v", err)
	}
	if strings.Contains(string(text), "Gutenberg") {
		t.Fatalf("branding survived into the text rendition: %q", text)
	}
	if !strings.HasPrefix(string(text), "It is a truth") {
		t.Fatalf("text rendition = %q", text)
	}
}

func TestRunDuplicate(t *testing.T) {
	queue := newFakeQueue()
	records := newFakeRecords()
	conn := &fakeConnector{
		source: sources.SourceGutenberg,
		rec:    sources.Record{Source: sources.SourceGutenberg, ID: "1342", Title: "Pride and Prejudice"},
		body:   brandedBody,
	}
	s := newTestService(t, queue, records, conn)
	ctx := context.Background()

	first := s.Run(ctx, dom.Request{ID: "req-1", Source: sources.SourceGutenberg, Identifier: "1342"})
	if first.Status != dom.StatusDone {
		t.Fatalf("first run = %+v", first)
	}

	second := s.Run(ctx, dom.Request{ID: "req-2", Source: sources.SourceGutenberg, Identifier: "1342"})
	if second.Status != dom.StatusFailed || second.Stage != dom.StageDedupCheck {
		t.Fatalf("second run = %+v", second)
	}
	if !strings.Contains(second.Reason, dom.ReasonDuplicate) ||
		!strings.Contains(second.Reason, "project_gutenberg:1342") {
		t.Fatalf("reason = %q", second.Reason)
	}
	got := queue.failed["req-2"]
	if got.stage != dom.StageDedupCheck {
		t.Fatalf("queue failure = %+v", got)
	}
}

func TestRunDuplicateCanonicalID(t *testing.T) {
	queue := newFakeQueue()
	records := newFakeRecords()
	// wikisource-style connector: stored ids carry underscores while
	// search results and submissions use the spaced title
	conn := &fakeConnector{
		source: sources.SourceWikisource,
		rec: sources.Record{
			Source:      sources.SourceWikisource,
			ID:          "The_Time_Machine",
			Title:       "The Time Machine",
			LicenseHint: "US PD",
		},
		body: "The Time Traveller was expounding a recondite matter to us.",
	}
	s := newTestService(t, queue, records, conn)
	ctx := context.Background()

	first := s.Run(ctx, dom.Request{ID: "req-1", Source: sources.SourceWikisource, Identifier: "The Time Machine"})
	if first.Status != dom.StatusDone {
		t.Fatalf("first run = %+v", first)
	}
	if records.inserted[0].SourceID != "The_Time_Machine" {
		t.Fatalf("record stored under %q", records.inserted[0].SourceID)
	}

	second := s.Run(ctx, dom.Request{ID: "req-2", Source: sources.SourceWikisource, Identifier: "The Time Machine"})
	if second.Status != dom.StatusFailed || second.Stage != dom.StageDedupCheck {
		t.Fatalf("second run = %+v", second)
	}
	if !strings.Contains(second.Reason, dom.ReasonDuplicate) ||
		!strings.Contains(second.Reason, "wikisource:The_Time_Machine") {
		t.Fatalf("reason = %q", second.Reason)
	}
	if len(records.inserted) != 1 {
		t.Fatalf("duplicate run inserted a second record: %+v", records.inserted)
	}
}

func TestRunUnknownSource(t *testing.T) {
	queue := newFakeQueue()
	s := newTestService(t, queue, newFakeRecords(), &fakeConnector{source: sources.SourceGutenberg})

	out := s.Run(context.Background(), dom.Request{ID: "req-x", Source: "bookface", Identifier: "1"})
	if out.Status != dom.StatusFailed || out.Stage != dom.StageStart {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunUnverifiedProceedsFlagged(t *testing.T) {
	records := newFakeRecords()
	conn := &fakeConnector{
		source: sources.SourceWikisource,
		rec: sources.Record{
			Source:      sources.SourceWikisource,
			ID:          "Modern_Work",
			Title:       "Modern Work",
			LicenseHint: "All rights reserved",
		},
		body: "A perfectly ordinary modern text.",
	}
	s := newTestService(t, newFakeQueue(), records, conn)

	out := s.Run(context.Background(), dom.Request{ID: "req-1", Source: sources.SourceWikisource, Identifier: "Modern_Work"})
	if out.Status != dom.StatusDone {
		t.Fatalf("unverified work must still complete: %+v", out)
	}
	rec := records.inserted[0]
	if rec.Verified || !rec.NeedsReview {
		t.Fatalf("record = %+v", rec)
	}
	if rec.LicenseType != "unknown" {
		t.Fatalf("license type = %q", rec.LicenseType)
	}
}
