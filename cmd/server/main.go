// Command server runs the resume pipeline orchestrator: HTTP/SSE API plus
// the capacity admitter, gate coordinator, revision controller, and
// pipeline coordinator worker pool that drive sessions end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/agent/controller"
	"github.com/resumeforge/pipeline/pkg/api"
	"github.com/resumeforge/pipeline/pkg/capacity"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/database"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/llm"
	"github.com/resumeforge/pipeline/pkg/masking"
	"github.com/resumeforge/pipeline/pkg/pipeline"
	"github.com/resumeforge/pipeline/pkg/revision"
	"github.com/resumeforge/pipeline/pkg/services"
	"github.com/resumeforge/pipeline/pkg/tools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// podID identifies this replica to the capacity admitter's session-lock
// bookkeeping. POD_ID is set explicitly in orchestrated environments
// (StatefulSet pod name, ECS task ID); os.Hostname() is a reasonable
// fallback for bare processes and local development.
func podID() string {
	if v := os.Getenv("POD_ID"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil {
		return "pod-unknown"
	}
	return host
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pod := podID()
	slog.Info("starting resume pipeline orchestrator", "pod_id", pod, "config_dir", *configDir)

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("configuration loaded", "agents", stats.Agents, "model_profiles", stats.ModelProfiles)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database", "host", dbConfig.Host, "database", dbConfig.Database)

	// Services
	sessionService := services.NewSessionService(dbClient.Client)
	stageService := services.NewStageService(dbClient.Client)
	messageService := services.NewMessageService(dbClient.Client)
	timelineService := services.NewTimelineService(dbClient.Client)
	interactionService := services.NewInteractionService(dbClient.Client, messageService)
	eventService := services.NewEventService(dbClient.Client)

	masker := masking.NewMaskingService(cfg.Masking)
	sessionService.SetMasker(masker)

	// Events: publisher writes through the DB's pg_notify trigger, the
	// connection manager fans out to SSE subscribers, the notify listener
	// bridges the two across replicas.
	publisher := events.NewEventPublisher(dbClient.DB())
	catchup := events.NewEventServiceAdapter(eventService)
	connManager := events.NewConnectionManager(catchup)
	notifyListener := events.NewNotifyListener(buildDSN(dbConfig), connManager)
	if err := notifyListener.Start(ctx); err != nil {
		slog.Error("failed to start notify listener", "error", err)
		os.Exit(1)
	}
	defer notifyListener.Stop(context.Background())

	// Capacity: global/per-user admission plus orphan-lock recovery.
	admitter := capacity.NewAdmitter(dbClient.DB(), pod, cfg.Capacity)
	go admitter.RunOrphanDetection(ctx, dbClient.Client)

	gateCoordinator := gate.New(dbClient.Client, publisher)
	revisionController := revision.New(publisher)
	artifactStore := pipeline.NewArtifactStore(dbClient.DB())

	// Tools: coordinator-wide registry, bound per execution by namespace.
	toolRegistry := tools.NewRegistry()
	tools.RegisterBuiltins(toolRegistry)

	llmClient := llm.NewClient()
	agentFactory := agent.NewAgentFactory(controller.NewFactory())

	svcBundle := &agent.ServiceBundle{
		Timeline:    timelineService,
		Message:     messageService,
		Interaction: interactionService,
		Stage:       stageService,
		Masker:      masker,
	}

	stageExecutor := pipeline.NewRealStageExecutor(
		cfg,
		dbClient.Client,
		llmClient,
		toolRegistry,
		gateCoordinator,
		publisher,
		agentFactory,
		stageService,
		svcBundle,
	)

	pipelineCoordinator := pipeline.New(
		pod,
		cfg.Capacity,
		dbClient.Client,
		admitter,
		sessionService,
		stageService,
		gateCoordinator,
		revisionController,
		artifactStore,
		publisher,
		stageExecutor,
	)
	server := api.NewServer(cfg, dbClient, sessionService, admitter, gateCoordinator, revisionController, pipelineCoordinator, connManager)
	server.SetStageService(stageService)
	server.SetInteractionService(interactionService)
	server.SetTimelineService(timelineService)
	server.SetArtifactStore(artifactStore)
	pipelineCoordinator.SetMetricsRecorder(server.Metrics())

	pipelineCoordinator.Start(ctx)
	slog.Info("pipeline coordinator started", "worker_count", cfg.Capacity.WorkerCount)
	if dashboardDir := getEnv("DASHBOARD_DIR", ""); dashboardDir != "" {
		server.SetDashboardDir(dashboardDir)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	addr := ":" + httpPort

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Capacity.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
	pipelineCoordinator.Stop()
	slog.Info("shutdown complete")
}

// buildDSN renders cfg as a libpq connection string for the dedicated
// LISTEN connection NotifyListener holds open outside ent's pool.
func buildDSN(cfg database.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}
