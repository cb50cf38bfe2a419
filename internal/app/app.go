package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/courierly/dispatch-service/internal/config"
	custommw "github.com/courierly/dispatch-service/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Handler registers its routes on the application router.
type Handler interface {
	Init(r chi.Router)
}

// Starter runs a background component until the context is cancelled.
type Starter interface {
	Start(ctx context.Context) error
}

type application struct {
	logger   *slog.Logger
	router   chi.Router
	server   *http.Server
	starters []Starter
	closers  []io.Closer
}

func New(logger *slog.Logger, conf *config.Config) *application {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(custommw.NewLogger(logger))
	router.Use(custommw.NewMetrics())
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: conf.Cors.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	router.Handle("/metrics", promhttp.Handler())

	return &application{
		logger: logger.With(slog.String("component", "app")),
		router: router,
		server: &http.Server{
			Addr:    conf.Http.Addr(),
			Handler: router,
		},
	}
}

func (a *application) SetHTTPHandlers(handlers ...Handler) {
	for _, h := range handlers {
		h.Init(a.router)
	}
}

func (a *application) SetStarters(starters ...Starter) {
	a.starters = append(a.starters, starters...)
}

func (a *application) SetClosers(closers ...io.Closer) {
	a.closers = append(a.closers, closers...)
}

func (a *application) Start(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range a.starters {
		s := s
		eg.Go(func() error {
			return s.Start(ctx)
		})
	}
	go func() {
		if err := eg.Wait(); err != nil {
			a.logger.Error("background component failed", slog.String("error", err.Error()))
		}
	}()

	go a.startServer()
}

func (a *application) startServer() {
	a.logger.Info("http server started", slog.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("http server failed", slog.String("error", err.Error()))
	}
}

func (a *application) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown http server", slog.String("error", err.Error()))
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("failed to close component", slog.String("error", err.Error()))
		}
	}
	a.logger.Info("application stopped")
}
