package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound is returned when no task with the given id belongs to the owner.
	ErrTaskNotFound = errors.New("task not found")
	// ErrOwnerRequired is returned when an operation is attempted without an owner.
	ErrOwnerRequired = errors.New("task owner is required")
)

// TaskRepository persists tasks with GORM. Every query is scoped to one owner.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// List returns the owner's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// FindByID returns one of the owner's tasks.
func (r *TaskRepository) FindByID(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	var t domain.Task
	err := r.db.WithContext(ctx).First(&t, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// Update applies the given column values to one of the owner's tasks and
// returns the stored result.
func (r *TaskRepository) Update(ctx context.Context, ownerID, id string, values map[string]any) (*domain.Task, error) {
	var updated *domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Task{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		var t domain.Task
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			return err
		}
		updated = &t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return updated, nil
}

// Delete removes one of the owner's tasks and reports whether it existed.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Search returns the owner's tasks whose title or description contains query,
// ignoring case, newest first. Matching runs in Go because sqlite's LOWER only
// folds ASCII.
func (r *TaskRepository) Search(ctx context.Context, ownerID, query string) ([]domain.Task, error) {
	tasks, err := r.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return tasks, nil
	}

	matched := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}
