package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/oklog/run"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	server "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/adapters/monobank"
	"hotel_booking/internal/adapters/observability"
	redisad "hotel_booking/internal/adapters/redis"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	defer db.Close()
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rc.Ping(pctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		defer rc.Close()
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis connection ok")
		cache = rc
	}

	var invoices *app.InvoiceRegistrar
	if cfg.MonobankToken != "" {
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
		invoices = app.NewInvoiceRegistrar(gw, repo, cfg.GatewayTimeout).WithMaxAttempts(cfg.RetryMaxAttempts)
	}

	handlers := &server.Handlers{
		Availability:  app.NewAvailabilityService(repo, cache, cfg.CacheTTL),
		Bookings:      app.NewBookingService(repo, invoices, cache),
		Payments:      app.NewPaymentService(repo),
		Catalog:       app.NewCatalogService(repo, cache),
		JWTSecret:     []byte(cfg.JWTSecret),
		WebhookSecret: []byte(cfg.WebhookSecret),
	}

	// http
	reg := observability.InitRegistry()
	srv := server.New(cfg.ReqTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)
	httpSrv := srv.HTTPServer(cfg.HTTPAddr)

	var g run.Group
	g.Add(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdown(httpSrv)
	})

	if cfg.MetricsAddr != "" {
		metricsSrv := observability.NewServer(cfg.MetricsAddr, reg)
		g.Add(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdown(metricsSrv)
		})
	}

	if invoices != nil {
		retrier := app.NewInvoiceRetrier(repo, invoices, cfg.RetryWorkers, cfg.RetryBatch)
		ctx, cancel := context.WithCancel(context.Background())
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc(cfg.RetrySchedule, func() {
			st, err := retrier.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("invoice retry sweep failed")
				return
			}
			if st.Claimed > 0 {
				log.Info().
					Int("claimed", st.Claimed).
					Int("registered", st.Registered).
					Int("failed", st.Failed).
					Msg("invoice retry sweep done")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.RetrySchedule).Msg("invalid RETRY_SCHEDULE")
		}
		g.Add(func() error {
			c.Start()
			<-ctx.Done()
			return nil
		}, func(error) {
			cancel()
			<-c.Stop().Done()
		})
	}

	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
			return
		}
		log.Fatal().Err(err).Msg("api exited")
	}
}

func shutdown(s *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Str("addr", s.Addr).Msg("server shutdown")
	}
}
