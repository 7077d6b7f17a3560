// Package server exposes template management and rendering over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/m-aliabbas/birthday-wisher/internal/config"
	ffmpegWrap "github.com/m-aliabbas/birthday-wisher/internal/ffmpeg"
	"github.com/m-aliabbas/birthday-wisher/internal/processor"
	"github.com/m-aliabbas/birthday-wisher/internal/template"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Renderer produces a greeting video.
type Renderer interface {
	Render(req processor.RenderRequest) (string, error)
}

type Deps struct {
	Settings *config.Settings
	Store    template.Store
	Renderer Renderer
	// Health defaults to ffmpeg.CheckAvailability with Settings.FFmpegPath.
	Health func() (*ffmpegWrap.Capabilities, error)
	Logger zerolog.Logger
	Now    func() time.Time
}

// Server handles HTTP requests. Renders run one at a time.
type Server struct {
	settings *config.Settings
	store    template.Store
	renderer Renderer
	health   func() (*ffmpegWrap.Capabilities, error)
	logger   zerolog.Logger
	now      func() time.Time

	renderMu sync.Mutex
}

func New(d Deps) *Server {
	s := &Server{
		settings: d.Settings,
		store:    d.Store,
		renderer: d.Renderer,
		health:   d.Health,
		logger:   d.Logger.With().Str("component", "server").Logger(),
		now:      d.Now,
	}
	if s.settings == nil {
		s.settings = config.Default()
	}
	if s.store == nil {
		s.store = template.NewFSRegistry(s.settings.TemplatesDir)
	}
	if s.renderer == nil {
		s.renderer = processor.NewRenderer(s.settings, nil, nil, d.Logger, processor.WithObserver(StageMetrics{}))
	}
	if s.health == nil {
		path := s.settings.FFmpegPath
		s.health = func() (*ffmpegWrap.Capabilities, error) {
			return ffmpegWrap.CheckAvailability(path)
		}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/health", s.Health)
	r.Get("/metrics", MetricsHandler().ServeHTTP)

	r.Get("/templates", s.ListTemplates)
	r.Get("/templates/{templateId}", s.GetTemplate)
	r.Put("/templates/{templateId}", s.PutTemplate)

	r.Post("/renders", s.PostRender)
	r.Get("/renders/{file}", s.GetRender)

	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.WithStack(srv.Shutdown(shutdownCtx))
	}
}

type ctxKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
