package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/claude/trainctx/internal/contextsvc"
	"github.com/claude/trainctx/internal/ingest"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/claude/trainctx/internal/models"
	"github.com/claude/trainctx/internal/ratelimit"
	"github.com/claude/trainctx/internal/training"
	"github.com/go-chi/chi/v5"
)

// ContextBuilder builds training contexts and summaries.
type ContextBuilder interface {
	Build(ctx context.Context, userID string) (*training.TrainingContext, error)
	Summary(ctx context.Context, userID string) (*contextsvc.Summary, error)
}

// Store is the document store the write endpoints and the reset signal use.
type Store interface {
	InsertWorkout(ctx context.Context, userID string, doc models.WorkoutDoc) (bool, error)
	GetProfile(ctx context.Context, userID string) (*models.ProfileDoc, error)
}

// Importer ingests an export for a user.
type Importer interface {
	Ingest(ctx context.Context, r io.Reader, userID string) (*ingest.Result, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	contexts ContextBuilder
	store    Store
	gates    *ratelimit.Limiter
	alpha    Importer
	metrics  *metrics.Manager
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured. m may be nil.
func New(contexts ContextBuilder, store Store, gates *ratelimit.Limiter, alphaImporter Importer, m *metrics.Manager, apiKey string, log *slog.Logger) *Server {
	if m == nil {
		m = metrics.Discard()
	}
	s := &Server{
		contexts: contexts,
		store:    store,
		gates:    gates,
		alpha:    alphaImporter,
		metrics:  m,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log, s.metrics))
	s.router.Use(CORS)

	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Get("/training-context", s.handleTrainingContext)
		r.Get("/summary", s.handleSummary)
		r.Get("/rate-gate", s.handleRateGate)
		r.Post("/rate-gate/increment", s.handleRateGateIncrement)
		r.Post("/workouts", s.handleCreateWorkout)
		r.Post("/import/alpha", s.handleAlphaImport)
	})
}
