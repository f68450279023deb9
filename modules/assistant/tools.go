package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrUnknownTool is returned for calls to tools that are not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when call arguments do not match the tool schema.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Tool names.
const (
	ToolGetTasks    = "get-tasks"
	ToolCreateTask  = "create-task"
	ToolSearchTasks = "search-tasks"
	ToolDeleteTask  = "delete-task"
)

// ToolHandler executes a validated call on behalf of ownerID.
type ToolHandler func(ctx context.Context, ownerID string, args map[string]any) (map[string]any, error)

type registeredTool struct {
	def     mcp.Tool
	handler ToolHandler
}

// Registry holds the tools the model may call.
type Registry struct {
	tools []registeredTool
}

// NewRegistry creates the task tool set backed by tasks.
func NewRegistry(tasks task.TaskPort) *Registry {
	h := &taskTools{tasks: tasks}
	return &Registry{tools: []registeredTool{
		{
			def: mcp.NewTool(ToolGetTasks,
				mcp.WithDescription("Retrieve the list of all tasks."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			handler: h.getTasks,
		},
		{
			def: mcp.NewTool(ToolCreateTask,
				mcp.WithDescription("Add a new task with a title, description, and status."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Title of the task")),
				mcp.WithString("description", mcp.Description("Detailed description of the task")),
				mcp.WithString("status",
					mcp.Description("Status of the task"),
					mcp.Enum(domain.StatusNames()...),
					mcp.DefaultString(string(domain.StatusPending)),
				),
			),
			handler: h.createTask,
		},
		{
			def: mcp.NewTool(ToolSearchTasks,
				mcp.WithDescription("Search tasks by keyword."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Keyword to search tasks")),
			),
			handler: h.searchTasks,
		},
		{
			def: mcp.NewTool(ToolDeleteTask,
				mcp.WithDescription("Delete a task by its unique ID."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("id", mcp.Required(), mcp.Description("Task ID to delete")),
			),
			handler: h.deleteTask,
		},
	}}
}

// Definitions returns the declarations of every tool, in registration order.
func (r *Registry) Definitions() []mcp.Tool {
	defs := make([]mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.def
	}
	return defs
}

func (r *Registry) lookup(name string) (*registeredTool, bool) {
	for i := range r.tools {
		if r.tools[i].def.Name == name {
			return &r.tools[i], true
		}
	}
	return nil, false
}

// Validate checks args against the schema of the named tool and returns a
// copy with declared defaults filled in. Undeclared arguments are dropped.
func (r *Registry) Validate(name string, args map[string]any) (map[string]any, error) {
	t, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	schema := t.def.InputSchema

	resolved := make(map[string]any, len(schema.Properties))
	for key, raw := range schema.Properties {
		prop, _ := raw.(map[string]any)
		value, present := args[key]
		if !present || value == nil {
			if def, ok := prop["default"]; ok {
				resolved[key] = def
			}
			continue
		}

		if typ, _ := prop["type"].(string); typ == "string" {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must be a string", ErrInvalidArguments, key)
			}
			if allowed := enumValues(prop["enum"]); len(allowed) > 0 && !slices.Contains(allowed, s) {
				return nil, fmt.Errorf("%w: %q must be one of %s", ErrInvalidArguments, key, strings.Join(allowed, ", "))
			}
		}
		resolved[key] = value
	}

	for _, key := range schema.Required {
		if _, ok := resolved[key]; !ok {
			return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, key)
		}
	}
	return resolved, nil
}

// Invoke validates and executes call. Failures are returned as a result with
// an "error" key so the model can react to them.
func (r *Registry) Invoke(ctx context.Context, ownerID string, call ToolCall) ToolResult {
	result := ToolResult{CallID: call.ID, Name: call.Name, Args: call.Args}

	args, err := r.Validate(call.Name, call.Args)
	if err != nil {
		result.Result = map[string]any{"error": err.Error()}
		return result
	}
	result.Args = args

	t, _ := r.lookup(call.Name)
	out, err := t.handler(ctx, ownerID, args)
	if err != nil {
		result.Result = map[string]any{"error": toolErrorMessage(call.Name, err)}
		return result
	}
	result.Result = out
	return result
}

func enumValues(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toolErrorMessage keeps validation messages and hides store faults.
func toolErrorMessage(name string, err error) string {
	for _, known := range []error{domain.ErrTitleRequired, domain.ErrInvalidStatus, task.ErrTaskNotFound} {
		if errors.Is(err, known) || strings.Contains(err.Error(), known.Error()) {
			return known.Error()
		}
	}
	log.Printf("[assistant] Tool %s failed: %v", name, err)
	return "The task store is unavailable right now. Please try again later."
}

// taskTools binds the tool handlers to the task store.
type taskTools struct {
	tasks task.TaskPort
}

func (h *taskTools) getTasks(ctx context.Context, ownerID string, _ map[string]any) (map[string]any, error) {
	tasks, err := h.tasks.ListTasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks}, nil
}

func (h *taskTools) createTask(ctx context.Context, ownerID string, args map[string]any) (map[string]any, error) {
	title, _ := args["title"].(string)
	description, _ := args["description"].(string)
	status, _ := args["status"].(string)

	t, err := h.tasks.CreateTask(ctx, ownerID, title, description, status)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": "Task added successfully.", "task": t}, nil
}

func (h *taskTools) searchTasks(ctx context.Context, ownerID string, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	tasks, err := h.tasks.SearchTasks(ctx, ownerID, query)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": tasks}, nil
}

func (h *taskTools) deleteTask(ctx context.Context, ownerID string, args map[string]any) (map[string]any, error) {
	id, _ := args["id"].(string)
	deleted, err := h.tasks.DeleteTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return map[string]any{"deleted": false, "message": "No task found with that id."}, nil
	}
	return map[string]any{"deleted": true, "message": "Task deleted successfully."}, nil
}
