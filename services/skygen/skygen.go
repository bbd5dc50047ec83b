// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package skygen provides the core HTTP service for the SkyGen backend.
//
// This package contains the main Service type that coordinates all
// components of the backend: HTTP routing, the LLM client, the agent
// orchestrator with its tool registry and dispatcher, the Supabase
// account store, and observability infrastructure.
//
// # Usage
//
//	cfg := skygen.Config{Port: 8000}
//	svc, err := skygen.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package skygen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Praveenkumar76/SkyGen-backend/services/accountstore"
	"github.com/Praveenkumar76/SkyGen-backend/services/agent"
	"github.com/Praveenkumar76/SkyGen-backend/services/llm"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/handlers"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/middleware"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/observability"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the SkyGen backend service.
//
// # Description
//
// Service abstracts the backend lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Limitations
//
//   - No graceful shutdown method yet (planned for future)
//   - Run() blocks until server error
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if server fails to start or encounters fatal error
	//
	// # Assumptions
	//
	//   - Service was successfully created via New()
	//   - Port is available and not in use
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds SkyGen service configuration options.
//
// # Description
//
// Config centralizes all configuration for the backend. Values can be
// populated from environment variables, config files, or programmatically
// for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults except the Supabase
// credentials, which are read from the environment when AccountStore
// is nil.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and LLM backend
//	cfg := Config{
//	    Port:       8080,
//	    LLMBackend: "local",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "groq", "local"
	// Default: "groq"
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "skygen-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// ModelTimeout bounds each individual model call (classification,
	// confirmation, direct streaming). Default: 60 seconds.
	ModelTimeout time.Duration

	// ToolTimeout bounds each tool dispatch against the account store.
	// Default: 10 seconds.
	ToolTimeout time.Duration

	// ClassifyModel overrides the model used for the classification call.
	// Empty uses the LLM client's default model.
	ClassifyModel string

	// ConfirmModel overrides the model used for the confirmation stream.
	// Empty uses the LLM client's default model.
	ConfirmModel string

	// AccountStore overrides the Supabase-backed store, primarily for
	// testing. When nil, a client is built from SUPABASE_URL/SUPABASE_KEY.
	AccountStore accountstore.Store

	// LLMClient overrides the LLM client, primarily for testing.
	// When nil, a client is built per LLMBackend.
	LLMClient llm.LLMClient
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - LLM client management
//   - The agent orchestrator (tool registry, dispatcher, turn state machine)
//   - The Supabase account store
//   - OpenTelemetry tracing
//   - Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New() returns.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	orchestrator  *agent.Orchestrator
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new SkyGen Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the LLM client based on backend type
//  5. Creates the Supabase account store and the agent orchestrator
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run backend service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the chosen LLM provider and
//     for Supabase (unless overridden via Config)
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	observability.InitMetrics()
	slog.Info("Initialized Prometheus metrics for streaming")

	// Initialize LLM client
	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// Initialize the agent orchestrator (registry, store, dispatcher)
	if err := s.initAgent(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting SkyGen server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "groq"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "skygen-otel-collector:4317"
	}
	if cfg.ModelTimeout == 0 {
		cfg.ModelTimeout = 60 * time.Second
	}
	if cfg.ToolTimeout == 0 {
		cfg.ToolTimeout = 10 * time.Second
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up OTLP trace exporter to send spans to the configured collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("skygen-backend")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMClient initializes the LLM provider client.
//
// # Description
//
// Creates the appropriate LLM client based on the configured backend type.
//
// # Limitations
//
//   - Only supports: groq, local
//
// # Assumptions
//
//   - Required environment variables are set for the chosen provider
func (s *service) initLLMClient() error {
	if s.config.LLMClient != nil {
		s.llmClient = s.config.LLMClient
		slog.Info("Using injected LLM client")
		return nil
	}

	var err error

	switch s.config.LLMBackend {
	case "groq":
		s.llmClient, err = llm.NewGroqClient()
		slog.Info("Using Groq LLM backend")
	case "local":
		s.llmClient, err = llm.NewLocalClient()
		slog.Info("Using local llama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to groq", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewGroqClient()
	}

	return err
}

// initAgent wires the tool registry, account store, dispatcher, and
// turn orchestrator.
//
// # Assumptions
//
//   - SUPABASE_URL and SUPABASE_KEY are set when no store is injected
func (s *service) initAgent() error {
	store := s.config.AccountStore
	if store == nil {
		client, err := accountstore.NewClientFromEnv()
		if err != nil {
			return fmt.Errorf("failed to create account store: %w", err)
		}
		store = client
		slog.Info("Supabase account store initialized")
	}

	registry := agent.NewRegistry()
	dispatcher := agent.NewDispatcher(store, s.config.ToolTimeout)

	s.orchestrator = agent.NewOrchestrator(s.llmClient, dispatcher, registry, agent.Config{
		ClassifyModel: s.config.ClassifyModel,
		ConfirmModel:  s.config.ConfirmModel,
		ModelTimeout:  s.config.ModelTimeout,
		OnToolCall: func(tool, outcome string) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordToolCall(tool, outcome)
			}
		},
	})

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
//
// # Assumptions
//
//   - All dependencies (LLM client, orchestrator) are initialized
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	} else if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("skygen-backend"))
	s.router.Use(middleware.CORSMiddleware())

	chatHandler := handlers.NewChatHandler(s.llmClient, s.config.ModelTimeout)
	agentHandler := handlers.NewAgentHandler(s.orchestrator)

	routes.SetupRoutes(s.router, chatHandler, agentHandler)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
