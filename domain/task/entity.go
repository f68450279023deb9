package task

import (
	"errors"
	"strings"
	"time"
)

// Status represents the state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var (
	// ErrInvalidStatus is returned when a status is not one of the known values.
	ErrInvalidStatus = errors.New("status must be one of pending, in-progress, completed")
	// ErrTitleRequired is returned when a task title is empty after trimming.
	ErrTitleRequired = errors.New("title is required")
)

// Statuses lists every valid status in display order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// StatusNames returns the valid statuses as plain strings.
func StatusNames() []string {
	names := make([]string, 0, 3)
	for _, s := range Statuses() {
		names = append(names, string(s))
	}
	return names
}

// ParseStatus converts s into a Status. An empty string yields StatusPending.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(s)) {
	case "":
		return StatusPending, nil
	case StatusPending:
		return StatusPending, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Task is a single to-do item owned by one account.
type Task struct {
	ID          string    `gorm:"primaryKey;type:text" json:"_id"`
	OwnerID     string    `gorm:"index;not null;type:text" json:"-"`
	Title       string    `gorm:"not null;type:text" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Status      Status    `gorm:"not null;type:text;default:pending" json:"status"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Patch holds the fields of a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}
