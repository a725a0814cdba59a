package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/puzzle-engine/internal/config"
	"github.com/terra-clan/puzzle-engine/internal/health"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/puzzle"
	"github.com/terra-clan/puzzle-engine/internal/rewards"
)

// RewardService is the points ledger used by the API
type RewardService interface {
	Award(ctx context.Context, req models.CreateRewardRequest) (*models.Reward, error)
	AwardSolve(ctx context.Context, userID string, puzzleID, points int64) (*models.Reward, error)
	Points(ctx context.Context, userID string) (models.PointsSummary, error)
	History(ctx context.Context, userID string, limit int) ([]*models.Reward, error)
	Reset(ctx context.Context, userID string) (models.PointsSummary, error)
}

var _ RewardService = (*rewards.Service)(nil)

// Server represents the HTTP API server
type Server struct {
	cors     config.CORSConfig
	router   *chi.Mux
	puzzles  puzzle.Manager
	rewards  RewardService
	registry *health.Registry
	topics   []string

	// statusInterval is the first delay between websocket status checks
	statusInterval time.Duration
}

// NewServer creates a new API server
func NewServer(
	corsCfg config.CORSConfig,
	puzzles puzzle.Manager,
	rewardService RewardService,
	registry *health.Registry,
) *Server {
	if registry == nil {
		registry = health.NewRegistry()
	}
	s := &Server{
		cors:           corsCfg,
		puzzles:        puzzles,
		rewards:        rewardService,
		registry:       registry,
		topics:         models.Topics,
		statusInterval: 500 * time.Millisecond,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.cors.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	maxAge := s.cors.MaxAge
	if maxAge <= 0 {
		maxAge = 300
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         maxAge,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		// Long-lived; must stay outside the request timeout
		r.Get("/puzzle-status/{id}/ws", s.handleStatusWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/generate-puzzle", s.handleGeneratePuzzle)
			r.Get("/puzzle-status/{id}", s.handlePuzzleStatus)
			r.Get("/topics", s.handleListTopics)

			r.Route("/puzzles", func(r chi.Router) {
				r.Get("/", s.handleListPuzzles)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPuzzle)
					r.Patch("/", s.handleUpdatePuzzle)
					r.Delete("/", s.handleDeletePuzzle)
					r.Post("/check", s.handleCheckAnswer)
				})
			})

			r.Post("/rewards", s.handleCreateReward)
			r.Route("/users/{userId}", func(r chi.Router) {
				r.Get("/points", s.handleGetPoints)
				r.Post("/points/reset", s.handleResetPoints)
				r.Get("/rewards", s.handleListRewards)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
