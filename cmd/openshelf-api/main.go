package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openshelf/internal/core/license"
	"openshelf/internal/platform/config"
	"openshelf/internal/platform/logger"
	"openshelf/internal/platform/store"
	"openshelf/internal/platform/web"
	"openshelf/internal/services/api"
	ingestrepo "openshelf/internal/services/ingest/repo"
	verifyrepo "openshelf/internal/services/verify/repo"
	verifysvc "openshelf/internal/services/verify/service"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("OPENSHELF_API_")
	dataCfg := root.Prefix("OPENSHELF_DATA_")

	l := logger.Get()

	dataDir := dataCfg.MayString("DIR", "./data")

	db, err := store.OpenSQLite(store.SQLiteConfig{
		Path:    dataCfg.MayString("QUEUE_PATH", dataDir+"/queue.db"),
		Schemas: []string{ingestrepo.QueueSchema},
	})
	if err != nil {
		l.Panic().Err(err).Msg("open queue database failed")
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close queue database")
		}
	}()
	queue := ingestrepo.NewQueue(db)

	verifications, err := verifyrepo.NewJSON(dataCfg.MayString("VERIFICATIONS_PATH", dataDir+"/metadata/license_verifications.json"))
	if err != nil {
		l.Panic().Err(err).Msg("open verification store failed")
	}
	verifier := verifysvc.New(verifications, license.MustLoad())

	srv := web.NewServer(apiCfg)
	api.Mount(srv.Mux(), api.Options{
		Queue:    queue,
		Verifier: verifier,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("shutdown failed")
		}
	}()

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
