package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/adapters/monobank"
	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/app"
	"hotel_booking/internal/shared"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

// reconciler registers every pending payment that still has no payment link
// with the gateway, then exits. Meant for cron jobs and manual recovery.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.MonobankBase).
		Int("workers", cfg.RetryWorkers).
		Int("batch", cfg.RetryBatch).
		Int("max_attempts", cfg.RetryMaxAttempts).
		Msg("reconciler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	gw, err := monobank.New(monobank.Config{
		BaseURL:     cfg.MonobankBase,
		Token:       cfg.MonobankToken,
		RedirectURL: cfg.RedirectURL,
		WebhookURL:  cfg.WebhookURL,
		RPS:         cfg.MonobankRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Monobank client")
	}
	registrar := app.NewInvoiceRegistrar(gw, repo, cfg.GatewayTimeout).WithMaxAttempts(cfg.RetryMaxAttempts)
	retrier := app.NewInvoiceRetrier(repo, registrar, cfg.RetryWorkers, cfg.RetryBatch)

	// keep taking batches until nothing is due; failed payments are
	// rescheduled into the future, so this terminates
	var total app.SweepStats
	for {
		st, err := retrier.Sweep(ctx)
		total.Claimed += st.Claimed
		total.Registered += st.Registered
		total.Failed += st.Failed
		if err != nil {
			log.Fatal().Err(err).Int("registered", total.Registered).Msg("reconcile failed")
		}
		if st.Claimed == 0 {
			break
		}
	}
	log.Info().
		Int("claimed", total.Claimed).
		Int("registered", total.Registered).
		Int("failed", total.Failed).
		Msg("reconcile completed")
}
