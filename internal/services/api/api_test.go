package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"openshelf/internal/core/license"
	"openshelf/internal/platform/testkit"
	ingestdom "openshelf/internal/services/ingest/domain"
	verifydom "openshelf/internal/services/verify/domain"
)

type stubQueue struct {
	submitted []ingestdom.Request
	byID      map[string]ingestdom.Request
}

func (q *stubQueue) Submit(_ context.Context, source, identifier, format string) (ingestdom.Request, error) {
	req := ingestdom.Request{
		ID: "req-1", Source: source, Identifier: identifier, Format: format,
		Status: ingestdom.StatusPending, Stage: ingestdom.StageStart,
	}
	q.submitted = append(q.submitted, req)
	return req, nil
}
func (q *stubQueue) Get(_ context.Context, id string) (ingestdom.Request, bool, error) {
	req, ok := q.byID[id]
	return req, ok, nil
}
func (q *stubQueue) Claim(context.Context) (ingestdom.Request, bool, error) {
	return ingestdom.Request{}, false, nil
}
func (q *stubQueue) MarkDone(context.Context, string, string) error { return nil }
func (q *stubQueue) MarkFailed(context.Context, string, ingestdom.Stage, string) error {
	return nil
}
func (q *stubQueue) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

type stubVerifier struct {
	byKey map[string]verifydom.Verification
}

func (v *stubVerifier) Classify(context.Context, verifydom.ClassifyInput) license.Result {
	return license.Result{}
}
func (v *stubVerifier) Record(context.Context, string, string, license.Result, string) (verifydom.Verification, error) {
	return verifydom.Verification{}, nil
}
func (v *stubVerifier) Get(_ context.Context, source, itemID string) (verifydom.Verification, bool, error) {
	ver, ok := v.byKey[verifydom.Key(source, itemID)]
	return ver, ok, nil
}
func (v *stubVerifier) IsVerifiedRemixable(context.Context, string, string) (bool, error) {
	return false, nil
}

func newTestRouter(queue *stubQueue, verifier *stubVerifier) http.Handler {
	r := chi.NewRouter()
	Mount(r, Options{Queue: queue, Verifier: verifier})
	return r
}

func TestSubmit(t *testing.T) {
	queue := &stubQueue{byID: map[string]ingestdom.Request{}}
	router := newTestRouter(queue, &stubVerifier{})

	body := `{"source":"project_gutenberg","identifier":"1342","format":"plain text"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(queue.submitted) != 1 || queue.submitted[0].Identifier != "1342" {
		t.Fatalf("submitted = %+v", queue.submitted)
	}
	var envelope struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != "req-1" || envelope.Data.Status != "pending" {
		t.Fatalf("response = %+v", envelope.Data)
	}
}

func TestSubmitRejectsUnknownSource(t *testing.T) {
	queue := &stubQueue{byID: map[string]ingestdom.Request{}}
	router := newTestRouter(queue, &stubVerifier{})

	body := `{"source":"bookface","identifier":"1"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(queue.submitted) != 0 {
		t.Fatalf("invalid submission must not reach the queue")
	}
}

func TestStatus(t *testing.T) {
	queue := &stubQueue{byID: map[string]ingestdom.Request{
		"req-9": {ID: "req-9", Source: "wikisource", Identifier: "The_Raven", Status: ingestdom.StatusDone, Stage: ingestdom.StageDone},
	}}
	router := newTestRouter(queue, &stubVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ingest/req-9", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ingest/absent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing request status = %d", rec.Code)
	}
}

func TestVerificationLookup(t *testing.T) {
	verifier := &stubVerifier{byKey: map[string]verifydom.Verification{
		"wikisource:The_Raven": {
			Source: "wikisource",
			ItemID: "The_Raven",
			Result: license.Result{Verified: true, Type: license.TypeUSPD, Confidence: license.ConfidenceHigh},
		},
	}}
	router := newTestRouter(&stubQueue{byID: map[string]ingestdom.Request{}}, verifier)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verifications/wikisource/The_Raven", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	testkit.MustContain(t, rec.Body.String(), `"license_type":"US PD"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verifications/wikisource/Missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing verification status = %d", rec.Code)
	}
}
