package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/simcbot/internal/bot"
	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/queue"
	"github.com/seantiz/simcbot/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Worker is the read side of the job queue.
type Worker interface {
	Snapshot() queue.Snapshot
	Lookup(id string) (*model.Job, int, bool)
	Subscribe(jobID string) (<-chan queue.Event, func())
}

// Server is the HTTP surface the chat gateway talks to.
type Server struct {
	router *chi.Mux
	bot    *bot.Bot
	worker Worker
	store  store.Store
	logger *slog.Logger
	addr   string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, b *bot.Bot, w Worker, s store.Store, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		bot:    b,
		worker: w,
		store:  s,
		logger: logger,
		addr:   addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Request-Id",
			headerUserID, headerUserName, headerChannelID, headerGuild, headerAdmin,
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/simulations", s.handleSubmit)
		r.Get("/queue", s.handleQueue)

		r.Get("/settings", s.handleListSettings)
		r.Get("/settings/{name}", s.handleGetSetting)
		r.Put("/settings/{name}", s.handlePutSetting)

		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/events", s.handleStreamEvents)
		r.Get("/jobs/{id}/output", s.handleGetOutput)

		r.Get("/history", s.handleListHistory)
		r.Get("/stats", s.handleGetStats)
		r.Get("/addon", s.handleAddon)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
