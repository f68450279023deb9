package task

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/cache"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TaskService holds the task business rules on top of the repository and the
// optional list cache.
type TaskService struct {
	repo    *TaskRepository
	cache   cache.CacheService
	sfGroup singleflight.Group
	now     func() time.Time

	// mu orders cache writes against invalidations. generations counts the
	// writes per owner so a list loaded before a write is never cached.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewTaskService creates a TaskService. A nil cache disables caching.
func NewTaskService(repo *TaskRepository, c cache.CacheService) *TaskService {
	if c == nil {
		c = cache.Nop{}
	}
	return &TaskService{
		repo:        repo,
		cache:       c,
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

func listCacheKey(ownerID string) string {
	return "tasks:" + ownerID
}

// Create validates and stores a new task. An empty status means pending.
func (s *TaskService) Create(ctx context.Context, ownerID, title, description, status string) (*domain.Task, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &domain.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      st,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return t, nil
}

// List returns the owner's tasks newest first, served from cache when possible.
// Concurrent misses for the same owner share one database query.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	key := listCacheKey(ownerID)

	var cached []domain.Task
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[task] Cache error for %s: %v", key, err)
	}
	if found {
		return cached, nil
	}

	gen := s.generation(ownerID)
	val, err, _ := s.sfGroup.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		return s.repo.List(context.WithoutCancel(ctx), ownerID)
	})
	if err != nil {
		return nil, err
	}
	tasks := val.([]domain.Task)

	s.store(ctx, ownerID, gen, tasks)
	return tasks, nil
}

// Get returns one of the owner's tasks.
func (s *TaskService) Get(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.FindByID(ctx, ownerID, id)
}

// Update applies a partial update. Title and status are validated the same
// way as on create.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, patch domain.Patch) (*domain.Task, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if patch.IsEmpty() {
		return s.repo.FindByID(ctx, ownerID, id)
	}

	values := map[string]any{"updated_at": s.now()}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.ErrTitleRequired
		}
		values["title"] = title
	}
	if patch.Description != nil {
		values["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		if strings.TrimSpace(*patch.Status) == "" {
			return nil, domain.ErrInvalidStatus
		}
		st, err := domain.ParseStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		values["status"] = st
	}

	t, err := s.repo.Update(ctx, ownerID, id, values)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return t, nil
}

// Delete removes one of the owner's tasks. Deleting a missing id reports
// false without an error.
func (s *TaskService) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if ownerID == "" {
		return false, ErrOwnerRequired
	}
	deleted, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(ctx, ownerID)
	}
	return deleted, nil
}

// Search returns the owner's tasks matching query in title or description.
func (s *TaskService) Search(ctx context.Context, ownerID, query string) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.Search(ctx, ownerID, query)
}

func (s *TaskService) generation(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[ownerID]
}

// store caches a list unless the owner's tasks changed since it was loaded.
func (s *TaskService) store(ctx context.Context, ownerID string, gen uint64, tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[ownerID] != gen {
		return
	}
	key := listCacheKey(ownerID)
	if err := s.cache.Set(ctx, key, tasks); err != nil {
		log.Printf("[task] Warning: failed to cache %s: %v", key, err)
	}
}

func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[ownerID]++
	if err := s.cache.Delete(ctx, listCacheKey(ownerID)); err != nil {
		log.Printf("[task] Warning: failed to invalidate cache for %s: %v", ownerID, err)
	}
}
