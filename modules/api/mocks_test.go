package api

import (
	"context"
	"errors"
	"net/http"

	account "github.com/Codewithsaffy/ai-todo-app/domain/account"
	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/go-monolith/mono"
)

var errNotImplemented = errors.New("not implemented")

// mockAuthPort implements auth.AuthPort for testing.
type mockAuthPort struct {
	registerFunc     func(ctx context.Context, name, email, password string) error
	loginFunc        func(ctx context.Context, email, password string) (*auth.Session, error)
	logoutFunc       func(ctx context.Context, token string) error
	verifyEmailFunc  func(ctx context.Context, token string) error
	whoAmIFunc       func(ctx context.Context, token string) (*account.PublicAccount, error)
	authenticateFunc func(ctx context.Context, token string) (*account.Claims, error)
}

func (m *mockAuthPort) Register(ctx context.Context, name, email, password string) error {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, name, email, password)
	}
	return errNotImplemented
}

func (m *mockAuthPort) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) Logout(ctx context.Context, token string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, token)
	}
	return errNotImplemented
}

func (m *mockAuthPort) VerifyEmail(ctx context.Context, token string) error {
	if m.verifyEmailFunc != nil {
		return m.verifyEmailFunc(ctx, token)
	}
	return errNotImplemented
}

func (m *mockAuthPort) WhoAmI(ctx context.Context, token string) (*account.PublicAccount, error) {
	if m.whoAmIFunc != nil {
		return m.whoAmIFunc(ctx, token)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) Authenticate(ctx context.Context, token string) (*account.Claims, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, token)
	}
	return nil, errNotImplemented
}

// sessionFor accepts exactly one token and maps it to accountID.
func sessionFor(token, accountID string) func(context.Context, string) (*account.Claims, error) {
	return func(_ context.Context, got string) (*account.Claims, error) {
		if got != token {
			return nil, errors.New("authenticate request failed: " + auth.ErrInvalidToken.Error())
		}
		return &account.Claims{UserID: accountID, Email: accountID + "@example.com"}, nil
	}
}

// mockTaskPort implements task.TaskPort for testing.
type mockTaskPort struct {
	createFunc func(ctx context.Context, ownerID, title, description, status string) (*domain.Task, error)
	listFunc   func(ctx context.Context, ownerID string) ([]domain.Task, error)
	getFunc    func(ctx context.Context, ownerID, id string) (*domain.Task, error)
	updateFunc func(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Task, error)
	deleteFunc func(ctx context.Context, ownerID, id string) (bool, error)
	searchFunc func(ctx context.Context, ownerID, query string) ([]domain.Task, error)
}

func (m *mockTaskPort) CreateTask(ctx context.Context, ownerID, title, description, status string) (*domain.Task, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, ownerID, title, description, status)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, ownerID)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, ownerID, id)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) UpdateTask(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Task, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ownerID, id, patch)
	}
	return nil, errNotImplemented
}

func (m *mockTaskPort) DeleteTask(ctx context.Context, ownerID, id string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ownerID, id)
	}
	return false, errNotImplemented
}

func (m *mockTaskPort) SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, ownerID, query)
	}
	return nil, errNotImplemented
}

// mockAssistant implements Assistant for testing.
type mockAssistant struct {
	enabled  bool
	chatFunc func(ctx context.Context, ownerID string, history []assistant.Message, sink assistant.Sink) (*assistant.Result, error)
}

func (m *mockAssistant) Enabled() bool {
	return m.enabled
}

func (m *mockAssistant) Chat(ctx context.Context, ownerID string, history []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, ownerID, history, sink)
	}
	return nil, errNotImplemented
}

func (m *mockAssistant) MCPHandler(assistant.Authenticator) http.Handler {
	return http.NotFoundHandler()
}

// staticHealth implements HealthChecker for testing.
type staticHealth struct {
	name   string
	status mono.HealthStatus
}

func (s staticHealth) Name() string { return s.name }

func (s staticHealth) Health(context.Context) mono.HealthStatus { return s.status }
