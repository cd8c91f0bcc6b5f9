// Package server wires the HTTP surface: routing, rate limits, security
// headers and request logging around the auth, source and video handlers.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
	"github.com/reelfeed/reelfeed/internal/source"
	"github.com/reelfeed/reelfeed/internal/validate"
	"github.com/reelfeed/reelfeed/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          video.ObjectStorage
	Geo              *geoip.Locator
	JWTSecret        string
	BaseURL          string
	ScraperURL       string
	S3PublicEndpoint string
}

type Server struct {
	router        chi.Router
	pinger        Pinger
	authHandler   *auth.Handler
	sourceHandler *source.Handler
	videoHandler  *video.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		s.authHandler = auth.NewHandler(cfg.DB, cfg.JWTSecret, secureCookies)
		s.sourceHandler = source.NewHandler(cfg.DB, cfg.ScraperURL)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, cfg.Geo)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background workers owned by the handlers.
func (s *Server) Close() {
	if s.videoHandler != nil {
		s.videoHandler.Close()
	}
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.authHandler != nil {
		authLimiter := ratelimit.NewLimiter(0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
		})
	}

	if s.sourceHandler != nil {
		sourceLimiter := ratelimit.NewLimiter(2, 10)
		s.router.Route("/api/sources", func(r chi.Router) {
			r.Use(sourceLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Post("/", s.sourceHandler.Create)
			r.Get("/", s.sourceHandler.List)
			r.Get("/{id}", s.sourceHandler.Get)
			r.Patch("/{id}", s.sourceHandler.Update)
			r.Post("/{id}/toggle", s.sourceHandler.ToggleActive)
			r.Delete("/{id}", s.sourceHandler.Delete)
		})
	}

	if s.videoHandler != nil {
		videoLimiter := ratelimit.NewLimiter(2, 10)
		s.router.Route("/api/videos", func(r chi.Router) {
			r.Use(videoLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Post("/", s.videoHandler.Create)
			r.Get("/", s.videoHandler.List)
			r.Get("/{id}", s.videoHandler.Get)
			r.Patch("/{id}", s.videoHandler.Update)
			r.Post("/{id}/publish", s.videoHandler.TogglePublish)
			r.Delete("/{id}", s.videoHandler.Delete)
			r.Get("/{id}/analytics", s.videoHandler.Analytics)
		})

		feedLimiter := ratelimit.NewLimiter(10, 30)
		s.router.Group(func(r chi.Router) {
			r.Use(feedLimiter.Middleware)
			r.Get("/api/feed", s.videoHandler.Feed)
			r.Post("/api/feed/{id}/view", s.videoHandler.RecordView)
			r.Post("/api/feed/session", s.videoHandler.CreateFeedSession)
			r.Post("/api/feed/session/{id}/events", s.videoHandler.SessionEvents)
			r.Get("/api/feed/session/{id}", s.videoHandler.SessionState)
			r.Delete("/api/feed/session/{id}", s.videoHandler.DeleteSession)
			r.Get("/feed", s.videoHandler.FeedPage)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"limits": validate.FieldLimits()})
}
