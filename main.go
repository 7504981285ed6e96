package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-ledger/api"
	"github.com/billbatista/acasinha-ledger/config"
	"github.com/billbatista/acasinha-ledger/database"
	"github.com/billbatista/acasinha-ledger/eventlogger"
	"github.com/billbatista/acasinha-ledger/ledger"
	"github.com/billbatista/acasinha-ledger/session"
	"github.com/billbatista/acasinha-ledger/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		printErrorAndExit("server stopped", err)
	}
}

// run wires every component and serves until a signal arrives. Returning,
// rather than exiting, lets the deferred cleanup flush queued events and close
// the broker and database.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Backend(cfg.DataBackend), cfg.DSN())
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer db.Close()

	evtlogger := eventlogger.NewSqlEventLogger(db)
	var sink eventlogger.Sink = evtlogger
	if cfg.AMQPURL != "" {
		publisher, err := eventlogger.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer publisher.Close()
		sink = eventlogger.NewFanout(evtlogger, publisher)
		slog.Info("publishing events", "exchange", cfg.AMQPExchange)
	}

	worker := eventlogger.NewWorker(sink, cfg.EventBufferSize)
	worker.Start()
	defer worker.Shutdown()

	registry := ledger.NewRegistry(
		ledger.WithStore(ledger.NewRepository(db)),
		ledger.WithEventLog(worker),
		ledger.WithIDGenerator(uuid.NewString),
		ledger.WithLogger(slog.Default()),
	)
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading periods: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Registry:    registry,
		Users:       user.NewRepository(db),
		Sessions:    session.NewRepository(db, []byte(cfg.JWTSecret), cfg.SessionTTL),
		Events:      evtlogger,
		EventLog:    worker,
		AmountScale: cfg.AmountScale,
	}, chimiddleware.Logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "backend", cfg.DataBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	return runErr
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
