package assistant

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
)

// memoryTasks is an in-memory task.TaskPort that counts calls.
type memoryTasks struct {
	mu      sync.Mutex
	tasks   []domain.Task
	calls   map[string]int
	nextID  int
	failure error
}

var _ task.TaskPort = (*memoryTasks)(nil)

func newMemoryTasks(titles ...string) *memoryTasks {
	m := &memoryTasks{calls: make(map[string]int)}
	for _, title := range titles {
		m.nextID++
		m.tasks = append([]domain.Task{{
			ID:      fmt.Sprintf("task-%d", m.nextID),
			OwnerID: "owner-1",
			Title:   title,
			Status:  domain.StatusPending,
		}}, m.tasks...)
	}
	return m
}

func (m *memoryTasks) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memoryTasks) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.failure
}

func (m *memoryTasks) CreateTask(_ context.Context, ownerID, title, description, status string) (*domain.Task, error) {
	if err := m.record("create"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("create-task request failed: %w", domain.ErrTitleRequired)
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("create-task request failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := domain.Task{
		ID:          fmt.Sprintf("task-%d", m.nextID),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      st,
	}
	m.tasks = append([]domain.Task{t}, m.tasks...)
	return &t, nil
}

func (m *memoryTasks) ListTasks(_ context.Context, ownerID string) ([]domain.Task, error) {
	if err := m.record("list"); err != nil {
		return nil, err
	}
	return m.filter(ownerID, func(domain.Task) bool { return true }), nil
}

func (m *memoryTasks) GetTask(_ context.Context, ownerID, id string) (*domain.Task, error) {
	if err := m.record("get"); err != nil {
		return nil, err
	}
	for _, t := range m.filter(ownerID, func(t domain.Task) bool { return t.ID == id }) {
		return &t, nil
	}
	return nil, task.ErrTaskNotFound
}

func (m *memoryTasks) UpdateTask(_ context.Context, _, _ string, _ domain.Patch) (*domain.Task, error) {
	return nil, fmt.Errorf("not used")
}

func (m *memoryTasks) DeleteTask(_ context.Context, ownerID, id string) (bool, error) {
	if err := m.record("delete"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id && t.OwnerID == ownerID {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryTasks) SearchTasks(_ context.Context, ownerID, query string) ([]domain.Task, error) {
	if err := m.record("search"); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	return m.filter(ownerID, func(t domain.Task) bool {
		return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q)
	}), nil
}

func (m *memoryTasks) filter(ownerID string, keep func(domain.Task) bool) []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, t := range m.tasks {
		if t.OwnerID == ownerID && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// scriptedModel answers each step with the chunks returned by next and keeps
// a copy of every conversation it was sent.
type scriptedModel struct {
	mu   sync.Mutex
	seen []Conversation
	next func(step int, conv Conversation) ([]Chunk, error)
}

func (m *scriptedModel) Converse(ctx context.Context, conv Conversation) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		m.mu.Lock()
		step := len(m.seen) + 1
		snapshot := conv
		snapshot.Messages = append([]Message(nil), conv.Messages...)
		m.seen = append(m.seen, snapshot)
		m.mu.Unlock()

		chunks, err := m.next(step, conv)
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield(Chunk{}, err)
		}
	}
}

func (m *scriptedModel) conversations() []Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Conversation(nil), m.seen...)
}

func textChunks(parts ...string) []Chunk {
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Text: p}
	}
	return chunks
}

func callChunk(name string, args map[string]any) Chunk {
	return Chunk{ToolCall: &ToolCall{Name: name, Args: args}}
}

// collectSink records streamed text.
type collectSink struct {
	chunks []string
}

func (s *collectSink) write(text string) error {
	s.chunks = append(s.chunks, text)
	return nil
}

func (s *collectSink) text() string {
	return strings.Join(s.chunks, "")
}
