package api

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/Codewithsaffy/ai-todo-app/modules/ratelimit"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config configures the HTTP server.
type Config struct {
	Addr         string
	AllowOrigin  string
	SecureCookie bool
}

// HealthChecker is a module reported by /health.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// APIModule is the HTTP surface of the application.
type APIModule struct {
	config    Config
	app       *fiber.App
	authPort  auth.AuthPort
	taskPort  task.TaskPort
	assistant Assistant
	rateLimit *ratelimit.Module
	checks    map[string]HealthChecker
	startTime time.Time

	// ctx bounds the chat turns; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config) *APIModule {
	ctx, cancel := context.WithCancel(context.Background())
	return &APIModule{
		config: config,
		checks: make(map[string]HealthChecker),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *APIModule) Name() string {
	return "api"
}

func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task"}
}

func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	}
}

// SetAssistant sets the assistant that serves the chat and MCP routes.
func (m *APIModule) SetAssistant(a Assistant) {
	m.assistant = a
}

// SetRateLimitModule enables per-account limiting of the chat routes.
func (m *APIModule) SetRateLimitModule(rl *ratelimit.Module) {
	m.rateLimit = rl
}

// AddHealthCheck includes a module in the /health summary.
func (m *APIModule) AddHealthCheck(module HealthChecker) {
	m.checks[module.Name()] = module
}

func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}

	m.app = m.newApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.startTime = time.Now()
	log.Printf("[api] HTTP server started on %s", m.config.Addr)
	return nil
}

func (m *APIModule) Stop(ctx context.Context) error {
	m.cancel()
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":   m.config.Addr,
			"uptime": time.Since(m.startTime).Round(time.Second).String(),
		},
	}
}

// newApp builds the fiber app with every route.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "AI To-Do",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	if m.config.AllowOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     m.config.AllowOrigin,
			AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Content-Type,Authorization",
			AllowCredentials: true,
		}))
	} else {
		app.Use(cors.New())
	}

	handlers := NewHandlers(m.authPort, m.taskPort, m.config.SecureCookie)
	session := SessionMiddleware(m.authPort)

	app.Get("/health", m.handleHealth)

	authRoutes := app.Group("/api/auth")
	authRoutes.Post("/register", handlers.Register)
	authRoutes.Post("/login", handlers.Login)
	authRoutes.Post("/logout", handlers.Logout)
	authRoutes.Get("/me", handlers.Me)
	authRoutes.Get("/verify/:token", handlers.VerifyEmail)

	tasks := app.Group("/api/tasks", session)
	tasks.Get("/", handlers.ListTasks)
	tasks.Post("/", handlers.CreateTask)
	tasks.Get("/:id", handlers.GetTask)
	tasks.Patch("/:id", handlers.UpdateTask)
	tasks.Delete("/:id", handlers.DeleteTask)

	var limiter RateLimiter
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if m.rateLimit != nil {
		limiter = m.rateLimit
		limit = m.rateLimit.Middleware(AccountIDKey)
	}
	chat := NewChatHandlers(m.ctx, m.assistant, limiter)
	app.Post("/api/chat", session, limit, chat.Stream)
	app.Get("/api/chat/ws", session, RequireUpgrade, websocket.New(chat.Socket))

	if m.assistant != nil {
		app.All(assistant.MCPEndpointPath, adaptor.HTTPHandler(m.assistant.MCPHandler(m.authenticate)))
	}

	return app
}

// authenticate resolves a session token for the MCP endpoint.
func (m *APIModule) authenticate(ctx context.Context, token string) (string, error) {
	claims, err := m.authPort.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// handleHealth reports every registered module. Any unhealthy module makes
// the response 503.
func (m *APIModule) handleHealth(c *fiber.Ctx) error {
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	modules := make(map[string]fiber.Map, len(names))
	for _, name := range names {
		status := m.checks[name].Health(c.UserContext())
		modules[name] = fiber.Map{
			"healthy": status.Healthy,
			"message": status.Message,
			"details": status.Details,
		}
		healthy = healthy && status.Healthy
	}

	state, code := "healthy", fiber.StatusOK
	if !healthy {
		state, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  state,
		"modules": modules,
	})
}
