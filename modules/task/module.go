package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Codewithsaffy/ai-todo-app/database"
	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// TaskModule owns the task store and exposes it as request-reply services.
type TaskModule struct {
	db      *gorm.DB
	service *TaskService
	cache   *cache.PluginModule
	dbPath  string
	dbDebug bool
}

var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.UsePluginModule = (*TaskModule)(nil)
var _ mono.HealthCheckableModule = (*TaskModule)(nil)

// NewModule creates a TaskModule backed by the sqlite file at dbPath.
func NewModule(dbPath string, dbDebug bool) *TaskModule {
	return &TaskModule{
		dbPath:  dbPath,
		dbDebug: dbDebug,
	}
}

func (m *TaskModule) Name() string {
	return "task"
}

// SetPlugin receives the optional cache plugin. Its port is resolved in Start,
// after plugins have started.
func (m *TaskModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "cache" {
		return
	}
	if p, ok := plugin.(*cache.PluginModule); ok {
		m.cache = p
	}
}

func (m *TaskModule) Start(_ context.Context) error {
	db, err := database.Open(m.dbPath, m.dbDebug, &domain.Task{})
	if err != nil {
		return err
	}
	m.db = db

	var c cache.CacheService
	if m.cache != nil {
		c = m.cache.Port()
	}
	m.service = NewTaskService(NewTaskRepository(db), c)

	log.Printf("[task] Module started (database: %s, cache: %t)", m.dbPath, c != nil)
	return nil
}

func (m *TaskModule) Stop(_ context.Context) error {
	if err := database.Close(m.db); err != nil {
		log.Printf("[task] Error closing database: %v", err)
	}
	log.Println("[task] Module stopped")
	return nil
}

func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	status := database.Health(ctx, m.db, m.dbPath)
	if status.Details != nil {
		status.Details["cache"] = m.cache != nil
	}
	return status
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-task", json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register create-task service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "list-tasks", json.Unmarshal, json.Marshal, m.handleList,
	); err != nil {
		return fmt.Errorf("failed to register list-tasks service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-task", json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register get-task service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task", json.Unmarshal, json.Marshal, m.handleUpdate,
	); err != nil {
		return fmt.Errorf("failed to register update-task service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-task", json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register delete-task service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "search-tasks", json.Unmarshal, json.Marshal, m.handleSearch,
	); err != nil {
		return fmt.Errorf("failed to register search-tasks service: %w", err)
	}

	log.Printf("[task] Registered services: create-task, list-tasks, get-task, update-task, delete-task, search-tasks")
	return nil
}

func (m *TaskModule) handleCreate(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Create(ctx, req.OwnerID, req.Title, req.Description, req.Status)
	if err != nil {
		return TaskResponse{}, err
	}
	return TaskResponse{Task: *t}, nil
}

func (m *TaskModule) handleList(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (TasksResponse, error) {
	tasks, err := m.service.List(ctx, req.OwnerID)
	if err != nil {
		return TasksResponse{}, err
	}
	return TasksResponse{Tasks: tasks, Total: len(tasks)}, nil
}

func (m *TaskModule) handleGet(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Get(ctx, req.OwnerID, req.TaskID)
	if err != nil {
		return TaskResponse{}, err
	}
	return TaskResponse{Task: *t}, nil
}

func (m *TaskModule) handleUpdate(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Update(ctx, req.OwnerID, req.TaskID, req.Patch)
	if err != nil {
		return TaskResponse{}, err
	}
	return TaskResponse{Task: *t}, nil
}

func (m *TaskModule) handleDelete(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	deleted, err := m.service.Delete(ctx, req.OwnerID, req.TaskID)
	if err != nil {
		return DeleteTaskResponse{}, err
	}
	return DeleteTaskResponse{Deleted: deleted}, nil
}

func (m *TaskModule) handleSearch(ctx context.Context, req SearchTasksRequest, _ *mono.Msg) (TasksResponse, error) {
	tasks, err := m.service.Search(ctx, req.OwnerID, req.Query)
	if err != nil {
		return TasksResponse{}, err
	}
	return TasksResponse{Tasks: tasks, Total: len(tasks)}, nil
}
