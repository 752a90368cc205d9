// Package api provides the HTTP surface for the resume pipeline: session
// creation/listing, gate resolution, revision status, trace inspection, and
// the SSE event stream.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/resumeforge/pipeline/pkg/capacity"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/database"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/metrics"
	"github.com/resumeforge/pipeline/pkg/pipeline"
	"github.com/resumeforge/pipeline/pkg/revision"
	"github.com/resumeforge/pipeline/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	dbClient   *database.Client

	sessionService      *services.SessionService
	stageService        *services.StageService
	interactionService  *services.InteractionService
	timelineService     *services.TimelineService
	admitter            *capacity.Admitter
	submissionLimiter   *capacity.SubmissionLimiter
	gateCoordinator     *gate.Coordinator
	revisionController  *revision.Controller
	pipelineCoordinator *pipeline.Coordinator
	connManager         *events.ConnectionManager
	metrics             *metrics.Metrics
	artifactStore       *pipeline.ArtifactStore

	dashboardDir string // path to dashboard build dir (empty = no static serving)
}

// NewServer creates a new API server with Echo v5, wired against the
// capacity/pipeline/gate/revision machinery that actually drives sessions.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	sessionService *services.SessionService,
	admitter *capacity.Admitter,
	gateCoordinator *gate.Coordinator,
	revisionController *revision.Controller,
	pipelineCoordinator *pipeline.Coordinator,
	connManager *events.ConnectionManager,
) *Server {
	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler

	s := &Server{
		echo:                e,
		cfg:                 cfg,
		dbClient:            dbClient,
		sessionService:      sessionService,
		admitter:            admitter,
		submissionLimiter:   capacity.NewSubmissionLimiter(cfg.Capacity),
		gateCoordinator:     gateCoordinator,
		revisionController:  revisionController,
		pipelineCoordinator: pipelineCoordinator,
		connManager:         connManager,
		metrics:             metrics.New(),
	}

	s.setupRoutes()
	return s
}

// SetStageService sets the stage service for trace endpoints.
func (s *Server) SetStageService(svc *services.StageService) {
	s.stageService = svc
}

// SetInteractionService sets the interaction service for trace endpoints.
func (s *Server) SetInteractionService(svc *services.InteractionService) {
	s.interactionService = svc
}

// SetTimelineService sets the timeline service for the timeline endpoint.
func (s *Server) SetTimelineService(svc *services.TimelineService) {
	s.timelineService = svc
}

// SetArtifactStore sets the artifact store backing the resume and workflow
// summary endpoints.
func (s *Server) SetArtifactStore(store *pipeline.ArtifactStore) {
	s.artifactStore = store
}

// Metrics returns the server's Prometheus registry wrapper, so callers
// outside this package (the Pipeline Coordinator) can report token usage
// into the same counters /metrics serves.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// SetDashboardDir sets the path to the dashboard build directory and
// registers static file serving routes. When set and the directory
// contains an index.html, assets are served from /assets/* and a SPA
// fallback is registered for all non-API routes.
//
// Must be called after NewServer (which registers API routes first)
// so that API routes take priority over the wildcard SPA fallback.
func (s *Server) SetDashboardDir(dir string) {
	s.dashboardDir = dir
	s.setupDashboardRoutes()
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	// Server-wide body size limit: intake payloads (resume text + job
	// posting text) are plain text, well under this.
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(metricsMiddleware(s.metrics))

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ready", s.readyHandler)
	s.echo.GET("/metrics", s.metricsHandler)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.GET("/sessions/:id/summary", s.sessionSummaryHandler)
	v1.GET("/sessions/:id/resume", s.resumeHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
	v1.GET("/sessions/:id/stream", s.streamSessionHandler)

	v1.POST("/sessions/:id/gates/resolve", s.resolveGateHandler)
	v1.GET("/sessions/:id/revisions", s.revisionStatusHandler)

	v1.GET("/sessions/:id/timeline", s.getTimelineHandler)
	v1.GET("/sessions/:id/trace/llm/:interaction_id", s.getLLMInteractionHandler)
	v1.GET("/sessions/:id/trace/tool/:interaction_id", s.getToolInteractionHandler)

	v1.GET("/workflow/:id", s.workflowSummaryHandler)
	v1.POST("/workflow/:id/benchmark/assumptions", s.benchmarkAssumptionsHandler)
	v1.POST("/workflow/:id/restart", s.restartWorkflowHandler)
}

// setupDashboardRoutes registers static file serving for the dashboard
// build directory. Vite-built assets are served from /assets/* with
// immutable caching; all other non-API paths fall back to index.html for
// client-side routing.
func (s *Server) setupDashboardRoutes() {
	if s.dashboardDir == "" {
		return
	}

	indexPath := filepath.Join(s.dashboardDir, "index.html")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		slog.Warn("dashboard directory set but index.html not found, skipping static serving", "dir", s.dashboardDir)
		return
	}

	dashFS := os.DirFS(s.dashboardDir)

	s.echo.GET("/assets/*", func(c *echo.Context) error {
		c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		return c.FileFS(c.Param("*"), dashFS)
	})

	s.echo.GET("/*", func(c *echo.Context) error {
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/health" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		c.Response().Header().Set("Cache-Control", "no-cache")
		return c.FileFS("index.html", dashFS)
	})
}

// Start starts the HTTP server on the given address (non-blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
