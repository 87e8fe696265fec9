// Package service runs the ingestion state machine: dedup check, details
// fetch, artifact download, license verification, and normalization, ending
// in a candidate record or a failed queue entry
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"openshelf/internal/adapters/sources"
	"openshelf/internal/core/license"
	"openshelf/internal/core/textnorm"
	perr "openshelf/internal/platform/errors"
	"openshelf/internal/platform/logger"
	dom "openshelf/internal/services/ingest/domain"
	verifydom "openshelf/internal/services/verify/domain"
)

// Config for the ingest service
type Config struct {
	// BooksDir is the root under which downloaded and normalized artifacts
	// are written, one subtree per source
	BooksDir string

	// RequestTimeout bounds one full ingestion run, default 10m
	RequestTimeout time.Duration
}

// Service implements domain.RunnerPort
type Service struct {
	queue      dom.QueuePort
	records    dom.RecordsPort
	verifier   verifydom.VerifierPort
	connectors map[string]sources.Connector
	cfg        Config
	log        logger.Logger
}

// New constructs the ingest service
func New(
	queue dom.QueuePort,
	records dom.RecordsPort,
	verifier verifydom.VerifierPort,
	connectors []sources.Connector,
	cfg Config,
) *Service {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Minute
	}
	byName := make(map[string]sources.Connector, len(connectors))
	for _, c := range connectors {
		byName[c.Source()] = c
	}
	return &Service{
		queue:      queue,
		records:    records,
		verifier:   verifier,
		connectors: byName,
		cfg:        cfg,
		log:        *logger.Named("ingest"),
	}
}

// defaultFormats per source when the request names none
var defaultFormats = map[string]string{
	sources.SourceArchive:        "text",
	sources.SourceGutenberg:      "plain text",
	sources.SourceStandardEbooks: "epub",
	sources.SourceWikisource:     "txt",
}

// Run executes one ingestion request end to end and records the outcome on
// the queue entry. The run is bounded by the configured request timeout
func (s *Service) Run(ctx context.Context, req dom.Request) dom.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	out := s.run(ctx, req)
	switch out.Status {
	case dom.StatusDone:
		if err := s.queue.MarkDone(ctx, req.ID, out.RecordID); err != nil {
			s.log.Error().Err(err).Str("request_id", req.ID).Msg("mark done failed")
		}
	default:
		if err := s.queue.MarkFailed(ctx, req.ID, out.Stage, out.Reason); err != nil {
			s.log.Error().Err(err).Str("request_id", req.ID).Msg("mark failed failed")
		}
	}
	s.log.Info().
		Str("request_id", req.ID).
		Str("source", req.Source).
		Str("identifier", req.Identifier).
		Str("status", string(out.Status)).
		Str("stage", string(out.Stage)).
		Str("reason", out.Reason).
		Msg("ingestion finished")
	return out
}

func (s *Service) run(ctx context.Context, req dom.Request) dom.Outcome {
	fail := func(stage dom.Stage, err error) dom.Outcome {
		return dom.Outcome{RequestID: req.ID, Status: dom.StatusFailed, Stage: stage, Reason: err.Error()}
	}

	conn, ok := s.connectors[req.Source]
	if !ok {
		return fail(dom.StageStart, perr.InvalidArgf("unknown source %q", req.Source))
	}

	duplicate := func(id string) dom.Outcome {
		return dom.Outcome{
			RequestID: req.ID,
			Status:    dom.StatusFailed,
			Stage:     dom.StageDedupCheck,
			Reason:    fmt.Sprintf("%s of %s", dom.ReasonDuplicate, verifydom.Key(req.Source, id)),
		}
	}

	// dedup check
	exists, err := s.records.Exists(ctx, req.Source, req.Identifier)
	if err != nil {
		return fail(dom.StageDedupCheck, err)
	}
	if exists {
		return duplicate(req.Identifier)
	}

	// fetch details
	rec, err := conn.Details(ctx, req.Identifier)
	if err != nil {
		return fail(dom.StageFetchDetails, err)
	}

	// connectors may canonicalize the identifier (wikisource underscores
	// titles, standardebooks prefixes the path), and records are stored
	// under the canonical id, so dedup has to be checked again against it
	if rec.ID != req.Identifier {
		exists, err := s.records.Exists(ctx, req.Source, rec.ID)
		if err != nil {
			return fail(dom.StageDedupCheck, err)
		}
		if exists {
			return duplicate(rec.ID)
		}
	}

	// download
	format := req.Format
	if format == "" {
		format = defaultFormats[req.Source]
	}
	artifact, err := conn.Download(ctx, rec, format, filepath.Join(s.cfg.BooksDir, req.Source))
	if err != nil {
		return fail(dom.StageDownload, err)
	}

	// verify
	text, err := s.extractText(artifact, &rec)
	if err != nil {
		return fail(dom.StageVerify, err)
	}
	if rec.Source == sources.SourceGutenberg {
		text = textnorm.StripBoilerplate(text)
	}
	res := s.verifier.Classify(ctx, verifydom.ClassifyInput{
		Source:      rec.Source,
		LicenseHint: rec.LicenseHint,
		LicenseURL:  rec.LicenseURL,
		Date:        rec.Date,
		Description: rec.Description,
		Collections: rec.Collections,
		Text:        text,
	})
	if _, err := s.verifier.Record(ctx, rec.Source, rec.ID, res, ""); err != nil {
		return fail(dom.StageVerify, err)
	}
	needsReview := !license.Remixable(res)
	if needsReview {
		s.log.Warn().
			Str("source", rec.Source).
			Str("identifier", rec.ID).
			Str("license_type", string(res.Type)).
			Msg("license unverified, proceeding flagged for review")
	}

	// normalize
	candidate, err := s.normalize(rec, artifact, text, res, needsReview)
	if err != nil {
		return fail(dom.StageNormalize, err)
	}

	recordID, err := s.records.Insert(ctx, candidate)
	if err != nil {
		return fail(dom.StageDone, err)
	}
	return dom.Outcome{
		RequestID: req.ID,
		Status:    dom.StatusDone,
		Stage:     dom.StageDone,
		RecordID:  recordID,
		Record:    &candidate,
	}
}

// extractText turns the downloaded artifact into raw text. The epub path
// also backfills title and author when the page scrape left them empty
func (s *Service) extractText(artifact string, rec *sources.Record) (string, error) {
	switch strings.ToLower(filepath.Ext(artifact)) {
	case ".epub":
		text, meta, err := textnorm.ExtractEPUB(artifact)
		if err != nil {
			return "", err
		}
		if rec.Title == "" {
			rec.Title = meta.Title
		}
		if rec.Author == "" {
			rec.Author = meta.Author
		}
		return text, nil
	case ".html", ".htm", ".xhtml":
		raw, err := os.ReadFile(artifact)
		if err != nil {
			return "", err
		}
		if _, text, err := textnorm.ExtractArticle(string(raw), rec.URL); err == nil && text != "" {
			return text, nil
		}
		return textnorm.HTMLToText(string(raw)), nil
	default:
		raw, err := os.ReadFile(artifact)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// normalize writes the cleaned text, HTML, and markdown renditions next to
// the artifact and assembles the candidate record
func (s *Service) normalize(
	rec sources.Record,
	artifact, text string,
	res license.Result,
	needsReview bool,
) (dom.CandidateRecord, error) {
	clean := textnorm.Clean(text)
	if clean == "" {
		return dom.CandidateRecord{}, perr.Parsef("normalize %s: artifact yielded no text", rec.ID)
	}

	dir := filepath.Join(filepath.Dir(artifact), "normalized")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dom.CandidateRecord{}, err
	}
	base := strings.TrimSuffix(filepath.Base(artifact), filepath.Ext(artifact))

	textPath := filepath.Join(dir, base+".txt")
	if err := os.WriteFile(textPath, []byte(clean), 0o644); err != nil {
		return dom.CandidateRecord{}, err
	}
	markup := textnorm.ToHTML(clean, rec.Title, rec.Author)
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(markup), 0o644); err != nil {
		return dom.CandidateRecord{}, err
	}
	md, err := textnorm.ToMarkdown(markup)
	if err != nil {
		return dom.CandidateRecord{}, err
	}
	mdPath := filepath.Join(dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return dom.CandidateRecord{}, err
	}

	packagePath := ""
	if strings.EqualFold(filepath.Ext(artifact), ".epub") {
		packagePath = artifact
	}
	return dom.CandidateRecord{
		Source:          rec.Source,
		SourceID:        rec.ID,
		SourceURL:       rec.URL,
		Title:           rec.Title,
		Author:          rec.Author,
		LicenseType:     string(res.Type),
		Verified:        res.Verified,
		NeedsReview:     needsReview,
		PublicationYear: license.YearFromDate(rec.Date),
		TextPath:        textPath,
		HTMLPath:        htmlPath,
		MarkdownPath:    mdPath,
		PackagePath:     packagePath,
		WordCount:       textnorm.WordCount(clean),
	}, nil
}
