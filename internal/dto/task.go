package dto

import (
	"time"

	"github.com/yukikurage/task-tracker-api/internal/models"
)

// AttachmentDTO represents an attachment in API responses
type AttachmentDTO struct {
	ID         uint64    `json:"id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID           uint64              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Status       models.TaskStatus   `json:"status"`
	Priority     models.TaskPriority `json:"priority"`
	DueDate      time.Time           `json:"due_date"`
	AssignedToID uint64              `json:"assigned_to_id"`
	CreatedByID  uint64              `json:"created_by_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	AssignedTo   *UserDTO            `json:"assigned_to,omitempty"`
	CreatedBy    *UserDTO            `json:"created_by,omitempty"`
	Attachments  []AttachmentDTO     `json:"attachments"`
}

// ToAttachmentDTO converts an attachment model to its API representation
func ToAttachmentDTO(a models.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:         a.ID,
		FileName:   a.FileName,
		FileURL:    a.FileURL,
		FileType:   a.FileType,
		UploadedAt: a.UploadedAt,
	}
}

// ToTaskDTO converts a task model to its API representation
func ToTaskDTO(task models.Task) TaskDTO {
	d := TaskDTO{
		ID:           task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Priority:     task.Priority,
		DueDate:      task.DueDate,
		AssignedToID: task.AssignedToID,
		CreatedByID:  task.CreatedByID,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		Attachments:  make([]AttachmentDTO, 0, len(task.Attachments)),
	}

	for _, a := range task.Attachments {
		d.Attachments = append(d.Attachments, ToAttachmentDTO(a))
	}

	if task.AssignedTo != nil {
		u := ToUserDTO(*task.AssignedTo)
		d.AssignedTo = &u
	}
	if task.CreatedBy != nil {
		u := ToUserDTO(*task.CreatedBy)
		d.CreatedBy = &u
	}

	return d
}

// ToTaskDTOs converts a slice of task models
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = ToTaskDTO(t)
	}
	return dtos
}
