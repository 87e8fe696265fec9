package repo

import (
	"context"
	"testing"
	"time"

	"openshelf/internal/platform/store"
	"openshelf/internal/platform/testkit"
	dom "openshelf/internal/services/ingest/domain"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := store.OpenSQLiteMemory(QueueSchema)
	testkit.MustNoErr(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQueue(db)
}

func TestQueueSubmitAndGet(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	req, err := q.Submit(ctx, "project_gutenberg", "1342", "plain text")
	testkit.MustNoErr(t, err)
	if req.ID == "" || req.Status != dom.StatusPending || req.Stage != dom.StageStart {
		t.Fatalf("request = %+v", req)
	}

	got, ok, err := q.Get(ctx, req.ID)
	if err != nil || !ok {
		t.Fatalf("Get: %v, %v", ok, err)
	}
	if got.Source != "project_gutenberg" || got.Identifier != "1342" || got.Format != "plain text" {
		t.Fatalf("stored request = %+v", got)
	}

	if _, ok, err := q.Get(ctx, "no-such-id"); err != nil || ok {
		t.Fatalf("missing id should read absent: %v, %v", ok, err)
	}
}

func TestQueueClaimOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := q.Submit(ctx, "wikisource", "The_Raven", "")
	testkit.MustNoErr(t, err)
	second, err := q.Submit(ctx, "wikisource", "Dracula", "")
	testkit.MustNoErr(t, err)

	claimed, ok, err := q.Claim(ctx)
	if err != nil || !ok {
		t.Fatalf("Claim: %v, %v", ok, err)
	}
	if claimed.ID != first.ID || claimed.Status != dom.StatusRunning {
		t.Fatalf("claimed = %+v, want oldest pending %s", claimed, first.ID)
	}

	claimed, ok, err = q.Claim(ctx)
	if err != nil || !ok {
		t.Fatalf("second Claim: %v, %v", ok, err)
	}
	if claimed.ID != second.ID {
		t.Fatalf("claimed = %+v", claimed)
	}

	if _, ok, err := q.Claim(ctx); err != nil || ok {
		t.Fatalf("empty queue should not claim: %v, %v", ok, err)
	}
}

func TestQueueMarkAndPurge(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return clock }

	done, _ := q.Submit(ctx, "internet_archive", "mobydick", "epub")
	failed, _ := q.Submit(ctx, "internet_archive", "lost", "epub")
	pending, _ := q.Submit(ctx, "internet_archive", "later", "epub")

	if err := q.MarkDone(ctx, done.ID, "rec-1"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := q.MarkFailed(ctx, failed.ID, dom.StageDownload, "status 404"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, _, _ := q.Get(ctx, done.ID)
	if got.Status != dom.StatusDone || got.RecordID != "rec-1" {
		t.Fatalf("done entry = %+v", got)
	}
	got, _, _ = q.Get(ctx, failed.ID)
	if got.Status != dom.StatusFailed || got.Stage != dom.StageDownload || got.Reason != "status 404" {
		t.Fatalf("failed entry = %+v", got)
	}

	n, err := q.Purge(ctx, clock.Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if _, ok, _ := q.Get(ctx, pending.ID); !ok {
		t.Fatalf("pending entry must survive purge")
	}
}
