package assistant

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/go-monolith/mono"
)

// Version is reported by the MCP server.
const Version = "1.0.0"

// Config holds assistant configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxSteps    int
	StepTimeout time.Duration
}

// AssistantModule owns the tool registry and the conversation orchestrator.
// The api module calls it directly, since a streamed turn does not fit a
// request-reply service.
type AssistantModule struct {
	config       Config
	taskPort     task.TaskPort
	model        Model
	registry     *Registry
	orchestrator *Orchestrator
}

var _ mono.Module = (*AssistantModule)(nil)
var _ mono.DependentModule = (*AssistantModule)(nil)
var _ mono.HealthCheckableModule = (*AssistantModule)(nil)

// NewModule creates an AssistantModule. The Gemini model is created on Start.
func NewModule(config Config) *AssistantModule {
	return &AssistantModule{config: config}
}

// NewModuleWithModel creates an AssistantModule that talks to model.
func NewModuleWithModel(config Config, model Model) *AssistantModule {
	return &AssistantModule{config: config, model: model}
}

func (m *AssistantModule) Name() string {
	return "assistant"
}

func (m *AssistantModule) Dependencies() []string {
	return []string{"task"}
}

func (m *AssistantModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "task" {
		m.taskPort = task.NewTaskAdapter(container)
	}
}

func (m *AssistantModule) Start(ctx context.Context) error {
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}
	m.registry = NewRegistry(m.taskPort)

	if m.model == nil && m.config.APIKey != "" {
		model, err := NewGeminiModel(ctx, m.config.APIKey, m.config.Model)
		if err != nil {
			return err
		}
		m.model = model
	}

	if m.model == nil {
		log.Println("[assistant] Warning: GEMINI_API_KEY not set, chat is disabled")
	} else {
		m.orchestrator = NewOrchestrator(m.model, m.registry,
			WithMaxSteps(m.config.MaxSteps),
			WithStepTimeout(m.config.StepTimeout),
		)
	}

	log.Printf("[assistant] Module started (model: %s, max steps: %d, tools: %d)",
		m.modelName(), m.config.MaxSteps, len(m.registry.tools))
	return nil
}

func (m *AssistantModule) Stop(_ context.Context) error {
	log.Println("[assistant] Module stopped")
	return nil
}

func (m *AssistantModule) Health(_ context.Context) mono.HealthStatus {
	if m.registry == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	message := "operational"
	if m.orchestrator == nil {
		message = "model not configured"
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: message,
		Details: map[string]any{
			"model":     m.modelName(),
			"max_steps": m.config.MaxSteps,
		},
	}
}

// Enabled reports whether a model is configured and chat turns can run.
func (m *AssistantModule) Enabled() bool {
	return m.orchestrator != nil
}

// Chat runs one conversation turn for ownerID, streaming text into sink.
func (m *AssistantModule) Chat(ctx context.Context, ownerID string, history []Message, sink Sink) (*Result, error) {
	if m.orchestrator == nil {
		return nil, ErrModelNotConfigured
	}
	return m.orchestrator.Run(ctx, ownerID, history, sink)
}

// MCPHandler serves the task tools over MCP, authenticating with auth. The
// handler may be mounted before Start; it answers 503 until then.
func (m *AssistantModule) MCPHandler(auth Authenticator) http.Handler {
	var (
		once    sync.Once
		handler http.Handler
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.registry == nil {
			http.Error(w, `{"error":"assistant is starting"}`, http.StatusServiceUnavailable)
			return
		}
		once.Do(func() { handler = NewMCPHandler(m.registry, Version, auth) })
		handler.ServeHTTP(w, r)
	})
}

func (m *AssistantModule) modelName() string {
	if m.model == nil {
		return "none"
	}
	if g, ok := m.model.(*GeminiModel); ok {
		return g.Name()
	}
	return m.config.Model
}
