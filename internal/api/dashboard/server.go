// Package dashboard отдаёт веб-панели последнюю детекцию и размеченные снимки.
// Пакет только читает журнал и директорию снимков, ничего не изменяет.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

//go:embed web
var webFS embed.FS

const (
	DefaultAddr      = ":5000"
	DefaultRateLimit = 120 // запросов в минуту с одного IP
	shutdownTimeout  = 10 * time.Second
)

// LatestSource источник последней записи журнала
type LatestSource interface {
	// LatestRaw возвращает последнюю запись как JSON-объект
	LatestRaw(ctx context.Context) ([]byte, bool)
}

// Options параметры сервера
type Options struct {
	Addr        string
	ImageDir    string   // директория размеченных снимков
	CORSOrigins []string // пусто: CORS не включается
	RateLimit   int      // запросов в минуту с IP для /api и /images
}

// Server HTTP-сервер панели
type Server struct {
	opts   Options
	latest LatestSource
	srv    *http.Server
}

// NewServer создаёт сервер. Слушать порт начинает только Run.
func NewServer(opts Options, latest LatestSource) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	s := &Server{opts: opts, latest: latest}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler собирает маршруты панели.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		r.Get("/api/latest-detection", s.handleLatest)
		r.Get("/images/{filename}", s.handleImage)
	})

	page, err := fs.Sub(webFS, "web")
	if err != nil {
		// встроенная директория есть всегда
		panic(err)
	}
	r.Handle("/", http.FileServer(http.FS(page)))

	return r
}

// Run слушает порт до отмены ctx, затем плавно останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Str("images", s.opts.ImageDir).Msg("Dashboard is running")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dashboard: %w", err)
	}
	return nil
}
