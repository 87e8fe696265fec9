// Package api mounts the HTTP surface: ingestion submission and status plus
// verification lookups
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	perr "openshelf/internal/platform/errors"
	"openshelf/internal/platform/web"
	ingestdom "openshelf/internal/services/ingest/domain"
	verifydom "openshelf/internal/services/verify/domain"
)

// Options wires the api routes
type Options struct {
	Queue    ingestdom.QueuePort
	Verifier verifydom.VerifierPort
}

// submission is the POST /ingest payload
type submission struct {
	Source     string `json:"source" validate:"required,oneof=internet_archive project_gutenberg standard_ebooks wikisource"`
	Identifier string `json:"identifier" validate:"required,min=1,max=512"`
	Format     string `json:"format" validate:"omitempty,max=32"`
}

// Mount registers all routes on the router
func Mount(r chi.Router, opts Options) {
	h := &handlers{opts: opts, validate: validator.New()}
	r.Post("/ingest", h.submit)
	r.Get("/ingest/{id}", h.status)
	r.Get("/verifications/{source}/{id}", h.verification)
}

type handlers struct {
	opts     Options
	validate *validator.Validate
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var in submission
	if err := web.DecodeJSON(r, &in, 1<<20); err != nil {
		web.RespondError(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		web.RespondError(w, r, perr.Wrap(err, perr.ErrorCodeValidation, "invalid submission"))
		return
	}
	req, err := h.opts.Queue.Submit(r.Context(), in.Source, in.Identifier, in.Format)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	web.RespondAccepted(w, r, newRequestView(req))
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok, err := h.opts.Queue.Get(r.Context(), id)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	if !ok {
		web.RespondError(w, r, perr.NotFoundf("ingest request %s not found", id))
		return
	}
	web.RespondOK(w, r, newRequestView(req))
}

func (h *handlers) verification(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	id := chi.URLParam(r, "id")
	v, ok, err := h.opts.Verifier.Get(r.Context(), source, id)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	if !ok {
		web.RespondError(w, r, perr.NotFoundf("no verification for %s", verifydom.Key(source, id)))
		return
	}
	web.RespondOK(w, r, v)
}

// requestView is the wire shape of a queue entry
type requestView struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Format     string `json:"format,omitempty"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason,omitempty"`
	RecordID   string `json:"record_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func newRequestView(req ingestdom.Request) requestView {
	return requestView{
		ID:         req.ID,
		Source:     req.Source,
		Identifier: req.Identifier,
		Format:     req.Format,
		Status:     string(req.Status),
		Stage:      string(req.Stage),
		Reason:     req.Reason,
		RecordID:   req.RecordID,
		CreatedAt:  req.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  req.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
