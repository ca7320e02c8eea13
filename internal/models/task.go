package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// ValidStatus reports whether s is one of the recognized task statuses.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ValidPriority reports whether p is one of the recognized task priorities.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task rows are hard-deleted together with their attachment rows; there is no
// soft-delete tombstone. CreatedByID is set once at creation and never changes.
type Task struct {
	ID           uint64       `gorm:"primarykey" json:"id"`
	Title        string       `gorm:"type:varchar(255);not null" json:"title"`
	Description  string       `gorm:"type:text;not null" json:"description"`
	Status       TaskStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority     TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	DueDate      time.Time    `gorm:"not null" json:"due_date"`
	AssignedToID uint64       `gorm:"not null;index" json:"assigned_to_id"`
	CreatedByID  uint64       `gorm:"not null;index" json:"created_by_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Relations
	AssignedTo  *User        `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	CreatedBy   *User        `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:TaskID" json:"attachments"`
}
