package task

import (
	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
)

// CreateTaskRequest represents a create-task request.
type CreateTaskRequest struct {
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// GetTaskRequest represents a get-task request.
type GetTaskRequest struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
}

// UpdateTaskRequest represents an update-task request.
type UpdateTaskRequest struct {
	OwnerID string       `json:"owner_id"`
	TaskID  string       `json:"task_id"`
	Patch   domain.Patch `json:"patch"`
}

// DeleteTaskRequest represents a delete-task request.
type DeleteTaskRequest struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
}

// DeleteTaskResponse reports whether the task existed.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// ListTasksRequest represents a list-tasks request.
type ListTasksRequest struct {
	OwnerID string `json:"owner_id"`
}

// SearchTasksRequest represents a search-tasks request.
type SearchTasksRequest struct {
	OwnerID string `json:"owner_id"`
	Query   string `json:"query"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task domain.Task `json:"task"`
}

// TasksResponse wraps a task list.
type TasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}
