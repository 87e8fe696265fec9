package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openshelf/internal/adapters/fetch"
	"openshelf/internal/adapters/sources"
	"openshelf/internal/adapters/sources/archive"
	"openshelf/internal/adapters/sources/gutenberg"
	"openshelf/internal/adapters/sources/standardebooks"
	"openshelf/internal/adapters/sources/wikisource"
	"openshelf/internal/core/license"
	"openshelf/internal/platform/config"
	"openshelf/internal/platform/logger"
	"openshelf/internal/platform/store"
	ingestdom "openshelf/internal/services/ingest/domain"
	ingestrepo "openshelf/internal/services/ingest/repo"
	ingestsvc "openshelf/internal/services/ingest/service"
	verifyrepo "openshelf/internal/services/verify/repo"
	verifysvc "openshelf/internal/services/verify/service"
)

func main() {
	var (
		oneSource = flag.String("source", "", "run one ingestion for this source instead of draining the queue")
		oneID     = flag.String("id", "", "identifier for the one-shot ingestion")
		oneFormat = flag.String("format", "", "format for the one-shot ingestion")
		idle      = flag.Duration("idle", 5*time.Second, "sleep between queue polls when empty")
		drainOnce = flag.Bool("once", false, "drain the current queue and exit instead of polling")
	)
	flag.Parse()

	root := config.New()
	dataCfg := root.Prefix("OPENSHELF_DATA_")
	fetchCfg := root.Prefix("OPENSHELF_FETCH_")
	pgCfg := root.Prefix("OPENSHELF_PGSQL_")

	l := logger.Named("openshelf-ingest")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := dataCfg.MayString("DIR", "./data")

	db, err := store.OpenSQLite(store.SQLiteConfig{
		Path:    dataCfg.MayString("QUEUE_PATH", dataDir+"/queue.db"),
		Schemas: []string{ingestrepo.QueueSchema},
	})
	if err != nil {
		l.Panic().Err(err).Msg("open queue database failed")
	}
	defer func() { _ = db.Close() }()
	queue := ingestrepo.NewQueue(db)

	pool, err := store.OpenPG(ctx, store.PGConfig{
		URL:      pgCfg.MustString("DBURL"),
		MaxConns: int32(pgCfg.MayInt("MAX_CONNS", 4)),
	})
	if err != nil {
		l.Panic().Err(err).Msg("open records database failed")
	}
	defer pool.Close()
	records := ingestrepo.NewRecords(pool)

	verifications, err := verifyrepo.NewJSON(dataCfg.MayString("VERIFICATIONS_PATH", dataDir+"/metadata/license_verifications.json"))
	if err != nil {
		l.Panic().Err(err).Msg("open verification store failed")
	}
	verifier := verifysvc.New(verifications, license.MustLoad())

	client := fetch.New(fetch.Options{
		UserAgent: fetchCfg.MayString("UA", "openshelf-ingest"),
		Timeout:   fetchCfg.MayDuration("TIMEOUT", 30*time.Second),
		CacheDir:  fetchCfg.MayString("CACHE_DIR", dataDir+"/cache"),
		Interval:  fetchCfg.MayDuration("INTERVAL", time.Second),
	})

	runner := ingestsvc.New(queue, records, verifier, []sources.Connector{
		archive.New(client),
		gutenberg.New(client),
		standardebooks.New(client),
		wikisource.New(client),
	}, ingestsvc.Config{
		BooksDir:       dataCfg.MayString("BOOKS_DIR", dataDir+"/books"),
		RequestTimeout: fetchCfg.MayDuration("REQUEST_TIMEOUT", 10*time.Minute),
	})

	if *oneSource != "" || *oneID != "" {
		if *oneSource == "" || *oneID == "" {
			l.Fatal().Msg("one-shot mode needs both -source and -id")
		}
		req, err := queue.Submit(ctx, *oneSource, *oneID, *oneFormat)
		if err != nil {
			l.Fatal().Err(err).Msg("submit failed")
		}
		out := runner.Run(ctx, req)
		if out.Status != ingestdom.StatusDone {
			os.Exit(1)
		}
		return
	}

	drain(ctx, l, queue, runner, *idle, *drainOnce)
}

// drain claims and runs queue entries until the context ends. With once set
// it stops at the first empty poll
func drain(
	ctx context.Context,
	l *logger.Logger,
	queue ingestdom.QueuePort,
	runner ingestdom.RunnerPort,
	idle time.Duration,
	once bool,
) {
	for {
		if ctx.Err() != nil {
			return
		}
		req, ok, err := queue.Claim(ctx)
		if err != nil {
			l.Error().Err(err).Msg("claim failed")
		}
		if !ok {
			if once {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}
		runner.Run(logger.WithRequest(ctx, req.ID, req.Source), req)
	}
}
