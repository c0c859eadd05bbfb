package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"

	"github.com/neomorfeo/mycouch/internal/adapter/fsm"
	handler "github.com/neomorfeo/mycouch/internal/adapter/http"
	"github.com/neomorfeo/mycouch/internal/adapter/metrics"
	"github.com/neomorfeo/mycouch/internal/adapter/otel"
	"github.com/neomorfeo/mycouch/internal/adapter/redis"
	riveradapter "github.com/neomorfeo/mycouch/internal/adapter/river"
	"github.com/neomorfeo/mycouch/internal/adapter/sqlite"
	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/config"
	"github.com/neomorfeo/mycouch/internal/domain"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, nil)
		},
	}
}

// run wires every adapter and serves until ctx is done. ready, when set,
// receives the bound address once the listener is open.
func run(ctx context.Context, cfg *config.Config, ready func(addr string)) error {
	// --- Telemetry ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv(otel.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       otel.Exporter(cfg.Telemetry.Exporter),
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	m := metrics.New()

	var publisher domain.EventPublisher
	if cfg.Queue.Enabled {
		client, err := riveradapter.Setup(ctx, db, cfg.Queue.MaxWorkers, m.Processed)
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		// Stop drains jobs on shutdown; a cancelled start context would abort them.
		if err := client.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("queue start: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := client.Stop(stopCtx); err != nil {
				slog.Error("queue stop", "error", err)
			}
		}()
		publisher = riveradapter.NewPublisher(client)
	} else {
		slog.Info("job queue disabled, processing transition events inline")
		publisher = riveradapter.NewInlinePublisher(m.Processed)
	}
	publisher = m.Publisher(otel.NewTracingPublisher(publisher))

	opts := []app.Option{app.WithLogger(slog.Default())}
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()

		locker := redis.NewLocker(rdb, cfg.Redis.Prefix)
		if err := locker.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, app.WithLocker(locker, cfg.Redis.LockTTL))
	}

	// --- Application ---
	repo := otel.NewTracingRepository(store)
	validator := m.Validator(otel.NewTracingValidator(fsm.New()))
	services := handler.Services{
		Users:       app.NewUserService(repo, repo),
		Connections: app.NewConnectionService(repo, repo, validator, publisher, opts...),
		Messages:    app.NewMessageService(repo, repo, validator, publisher, opts...),
		Activities:  app.NewActivityService(repo, repo, repo),
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(cfg.Telemetry.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(requestLogger)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, m.Handler())
	}

	api := humachi.New(router, huma.DefaultConfig("mycouch", version))
	handler.Register(api, services)

	// --- Server ---
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mycouch listening", "addr", ln.Addr().String(), "docs", "/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.DebugContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
