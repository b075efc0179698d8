package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/dailybanking/transaction-service/internal/core/handler"
	"github.com/dailybanking/transaction-service/internal/core/idempotency"
	"github.com/dailybanking/transaction-service/internal/core/logger"
	middlWre "github.com/dailybanking/transaction-service/internal/core/middleware"
	"github.com/dailybanking/transaction-service/internal/core/notifier"
	"github.com/dailybanking/transaction-service/internal/core/repository/postgres"
	"github.com/dailybanking/transaction-service/internal/core/usecase"
	"github.com/dailybanking/transaction-service/pkg/config"
	"github.com/dailybanking/transaction-service/pkg/postgresdb"
)

type Server struct {
	router     *mux.Router
	log        logger.Logger
	httpServer *http.Server
	db         *postgresdb.Database
	events     notifier.Notifier
	addr       string

	transactionHandler *handler.TransactionHandler
}

func NewServer(log logger.Logger) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := postgresdb.NewPostgresDB(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(cfg.Server.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	events, err := newNotifier(cfg.AMQP, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	balances := postgres.NewBalanceStore(log)
	ledger := postgres.NewLedger(log)
	guard := idempotency.NewGuard(ledger)
	transactionUsecase := usecase.NewTransactionUsecase(db, balances, ledger, guard, events, log)
	transactionHandler := handler.NewTransactionHandler(transactionUsecase, log)

	server := &Server{
		log:                log,
		router:             mux.NewRouter(),
		db:                 db,
		events:             events,
		addr:               cfg.Server.Addr,
		transactionHandler: transactionHandler,
	}

	server.router.Use(middlWre.RequestLogging(log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func newNotifier(cfg config.AMQPConfig, log logger.Logger) (notifier.Notifier, error) {
	if cfg.URL == "" {
		log.Warn("AMQP_URL not set, transaction events will only be logged")
		return notifier.NewLogNotifier(log), nil
	}
	return notifier.NewAMQPNotifier(cfg, log)
}

func (s *Server) RegisterRoutes() {
	s.router.Use(middlWre.Recovery(s.log))
	s.transactionHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if closer, ok := s.events.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				s.log.Error("failed to close event notifier", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("event notifier shutdown error: %w", err)
			}
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
