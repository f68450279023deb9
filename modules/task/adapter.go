package task

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the interface other modules use to reach the task store.
type TaskPort interface {
	CreateTask(ctx context.Context, ownerID, title, description, status string) (*domain.Task, error)
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, id string) (bool, error)
	SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error)
}

// TaskAdapter implements TaskPort over the task module's service container.
type TaskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new TaskAdapter.
func NewTaskAdapter(container mono.ServiceContainer) *TaskAdapter {
	return &TaskAdapter{container: container}
}

// call invokes a request-reply service of the task module.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

func (a *TaskAdapter) CreateTask(ctx context.Context, ownerID, title, description, status string) (*domain.Task, error) {
	req := CreateTaskRequest{OwnerID: ownerID, Title: title, Description: description, Status: status}
	var resp TaskResponse
	if err := call(ctx, a.container, "create-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (a *TaskAdapter) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	req := ListTasksRequest{OwnerID: ownerID}
	var resp TasksResponse
	if err := call(ctx, a.container, "list-tasks", &req, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Tasks), nil
}

func (a *TaskAdapter) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	req := GetTaskRequest{OwnerID: ownerID, TaskID: id}
	var resp TaskResponse
	if err := call(ctx, a.container, "get-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (a *TaskAdapter) UpdateTask(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Task, error) {
	req := UpdateTaskRequest{OwnerID: ownerID, TaskID: id, Patch: patch}
	var resp TaskResponse
	if err := call(ctx, a.container, "update-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (a *TaskAdapter) DeleteTask(ctx context.Context, ownerID, id string) (bool, error) {
	req := DeleteTaskRequest{OwnerID: ownerID, TaskID: id}
	var resp DeleteTaskResponse
	if err := call(ctx, a.container, "delete-task", &req, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

func (a *TaskAdapter) SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error) {
	req := SearchTasksRequest{OwnerID: ownerID, Query: query}
	var resp TasksResponse
	if err := call(ctx, a.container, "search-tasks", &req, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Tasks), nil
}

func nonNil(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return []domain.Task{}
	}
	return tasks
}
