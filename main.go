// AI To-Do is a task manager with a conversational assistant. Accounts sign
// up with email verification, manage their tasks over a REST API, and chat
// with a Gemini-backed assistant that reads and changes tasks through tools.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Codewithsaffy/ai-todo-app/config"
	"github.com/Codewithsaffy/ai-todo-app/modules/api"
	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/Codewithsaffy/ai-todo-app/modules/cache"
	"github.com/Codewithsaffy/ai-todo-app/modules/mailer"
	"github.com/Codewithsaffy/ai-todo-app/modules/ratelimit"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/Codewithsaffy/ai-todo-app/telemetry"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== AI To-Do ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "ai-todo-app",
		ServiceVersion: assistant.Version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Stdout:         cfg.Tracing.Stdout,
	})
	if err != nil {
		log.Fatalf("Failed to initialise tracing: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// The cache plugin is optional; the task module falls back to the database.
	var cachePlugin *cache.PluginModule
	if cfg.Redis.Addr != "" {
		cachePlugin = cache.NewPluginModule(cfg.Redis.Addr)
		if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
			log.Fatalf("Failed to register cache plugin: %v", err)
		}
	}

	session := auth.DefaultSessionConfig()
	session.SecretKey = cfg.Auth.SecretKey
	session.Issuer = cfg.Auth.Issuer

	queue := mailer.DefaultQueueConfig()
	queue.MaxRetries = cfg.Mail.MaxRetries

	authModule := auth.NewModule(cfg.DB.Path, cfg.DB.Debug, session)
	taskModule := task.NewModule(cfg.DB.Path, cfg.DB.Debug)
	mailerModule := mailer.NewModule(mailer.Config{
		BaseURL: cfg.HTTP.BaseURL,
		SMTP: mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		},
		Queue: queue,
	})
	assistantModule := assistant.NewModule(assistant.Config{
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		MaxSteps:    cfg.Model.MaxSteps,
		StepTimeout: cfg.Model.Timeout,
	})
	apiModule := api.NewModule(api.Config{
		Addr:         cfg.HTTP.Addr,
		AllowOrigin:  cfg.HTTP.BaseURL,
		SecureCookie: cfg.IsProduction(),
	})

	// Inject the modules the api calls directly.
	apiModule.SetAssistant(assistantModule)
	for _, m := range []api.HealthChecker{authModule, taskModule, mailerModule, assistantModule} {
		apiModule.AddHealthCheck(m)
	}
	if cachePlugin != nil {
		apiModule.AddHealthCheck(cachePlugin)
	}

	// Order: providers first, then the modules that depend on them.
	modules := []mono.Module{authModule, taskModule, mailerModule, assistantModule}
	if cfg.Redis.Addr != "" {
		rateLimitModule := ratelimit.NewModule(ratelimit.Config{
			RedisAddr: cfg.Redis.Addr,
			Limit:     cfg.Redis.ChatLimit,
			Window:    cfg.Redis.ChatWindow,
		})
		apiModule.SetRateLimitModule(rateLimitModule)
		apiModule.AddHealthCheck(rateLimitModule)
		modules = append(modules, rateLimitModule)
	}
	modules = append(modules, apiModule)

	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
			"tracing": func(ctx context.Context) error {
				return shutdownTracing(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Configuration:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Database:    %s", cfg.DB.Path)
	log.Printf("  Model:       %s (max %d steps)", cfg.Model.Name, cfg.Model.MaxSteps)
	if cfg.Redis.Addr != "" {
		log.Printf("  Redis:       %s (chat limit %d per %s)", cfg.Redis.Addr, cfg.Redis.ChatLimit, cfg.Redis.ChatWindow)
	} else {
		log.Println("  Redis:       disabled (no cache, no chat rate limit)")
	}
	if cfg.Mail.SMTPHost == "" {
		log.Println("  Mail:        verification links are logged")
	}
	log.Println("")
	log.Printf("REST API Endpoints (%s):", cfg.HTTP.BaseURL)
	log.Println("  POST   /api/auth/register      - Create an account")
	log.Println("  POST   /api/auth/login         - Start a session (cookie)")
	log.Println("  POST   /api/auth/logout        - End the session")
	log.Println("  GET    /api/auth/me            - Current account")
	log.Println("  GET    /api/auth/verify/:token - Verify an email address")
	log.Println("  GET    /api/tasks[?q=]         - List or search tasks")
	log.Println("  POST   /api/tasks              - Create a task")
	log.Println("  GET    /api/tasks/:id          - Get a task")
	log.Println("  PATCH  /api/tasks/:id          - Update a task")
	log.Println("  DELETE /api/tasks/:id          - Delete a task")
	log.Println("  POST   /api/chat               - Chat with the assistant (streamed)")
	log.Println("  GET    /api/chat/ws            - Chat over a websocket")
	log.Println("  ANY    /mcp                    - MCP tool server")
	log.Println("  GET    /health                 - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
