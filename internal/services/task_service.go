package services

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yukikurage/task-tracker-api/internal/authz"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrPermissionDenied    = errors.New("not authorized to perform this action on the task")
	ErrTitleTooShort       = fmt.Errorf("title must be at least %d characters long", constants.MinTitleLength)
	ErrDescriptionRequired = errors.New("description is required")
	ErrDueDateRequired     = errors.New("due date is required")
	ErrAssigneeRequired    = errors.New("assignedTo field is required")
	ErrAssigneeNotFound    = errors.New("assigned user does not exist")
	ErrInvalidStatus       = errors.New("invalid task status")
	ErrInvalidPriority     = errors.New("invalid task priority")
)

// TaskService owns the task lifecycle. Every mutation is gated by the authz
// decision over the loaded ownership facts before anything is written.
type TaskService struct {
	taskRepo    repository.TaskRepository
	userRepo    repository.UserRepository
	attachments *AttachmentService
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, attachments *AttachmentService) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		attachments: attachments,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     time.Time
	AssignedTo  uint64
	Files       []IncomingFile
}

// UpdateTaskInput represents a partial update of generic task fields
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *models.TaskPriority
	DueDate     *time.Time
}

// Create validates and persists a new task. Any authenticated identity may
// create; createdBy is fixed to the actor. Files accompanying the creation go
// through the same guarded attachment path as a later upload, and a failure
// there unwinds the just-created task row.
func (s *TaskService) Create(actor authz.Actor, input CreateTaskInput) (*models.Task, error) {
	if input.AssignedTo == 0 {
		return nil, ErrAssigneeRequired
	}
	if len(strings.TrimSpace(input.Title)) < constants.MinTitleLength {
		return nil, ErrTitleTooShort
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, ErrDescriptionRequired
	}
	if input.DueDate.IsZero() {
		return nil, ErrDueDateRequired
	}

	if input.Status == "" {
		input.Status = models.TaskStatusPending
	} else if !models.ValidStatus(input.Status) {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	} else if !models.ValidPriority(input.Priority) {
		return nil, ErrInvalidPriority
	}

	if err := s.ensureUserExists(input.AssignedTo); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Status:       input.Status,
		Priority:     input.Priority,
		DueDate:      input.DueDate,
		AssignedToID: input.AssignedTo,
		CreatedByID:  actor.ID,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if len(input.Files) > 0 {
		if err := s.attachments.AddFiles(task, input.Files); err != nil {
			// Unwind the row so a rejected batch leaves no half-created task.
			if delErr := s.taskRepo.Delete(task.ID); delErr != nil {
				log.Error().Err(delErr).Uint64("task_id", task.ID).Msg("failed to unwind task after rejected attachments")
			}
			return nil, err
		}
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// List returns tasks the actor created or is assigned to
func (s *TaskService) List(actor authz.Actor, params utils.PaginationParams) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.ListForUser(actor.ID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// Get returns a task if the actor may read it
func (s *TaskService) Get(actor authz.Actor, taskID uint64) (*models.Task, error) {
	task, err := s.load(taskID, "CreatedBy", "AssignedTo", "Attachments")
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionRead, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}
	return task, nil
}

// Update applies a partial update of generic fields
func (s *TaskService) Update(actor authz.Actor, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.load(taskID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionUpdate, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}

	if input.Title != nil {
		if len(strings.TrimSpace(*input.Title)) < constants.MinTitleLength {
			return nil, ErrTitleTooShort
		}
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		if strings.TrimSpace(*input.Description) == "" {
			return nil, ErrDescriptionRequired
		}
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if !models.ValidPriority(*input.Priority) {
			return nil, ErrInvalidPriority
		}
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		task.DueDate = *input.DueDate
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// UpdateStatus sets the task status. Transitions are not ordered: any status
// may be set to any other.
func (s *TaskService) UpdateStatus(actor authz.Actor, taskID uint64, status models.TaskStatus) (*models.Task, error) {
	if !models.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	task, err := s.load(taskID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionUpdateStatus, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}

	task.Status = status
	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// Assign reassigns the task to another existing user
func (s *TaskService) Assign(actor authz.Actor, taskID, assigneeID uint64) (*models.Task, error) {
	if assigneeID == 0 {
		return nil, ErrAssigneeRequired
	}

	task, err := s.load(taskID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionAssign, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}

	if err := s.ensureUserExists(assigneeID); err != nil {
		return nil, err
	}

	task.AssignedToID = assigneeID
	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// Delete hard-deletes the task, its attachment rows, and every blob the
// attachments reference. Only the creator or an admin may delete.
func (s *TaskService) Delete(actor authz.Actor, taskID uint64) error {
	task, err := s.load(taskID, "Attachments")
	if err != nil {
		return err
	}
	if !authz.Can(actor, authz.ActionDelete, ownershipOf(task)) {
		return ErrPermissionDenied
	}

	if err := s.attachments.RemoveAll(task); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// AddAttachmentMeta appends a metadata-only attachment entry (no stored bytes).
// The capacity limit applies here as everywhere else.
func (s *TaskService) AddAttachmentMeta(actor authz.Actor, taskID uint64, fileName, fileURL string) (*models.Task, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(fileURL) == "" {
		return nil, fmt.Errorf("%w: fileName and fileUrl are required", ErrInvalidAttachment)
	}

	task, err := s.load(taskID, "Attachments")
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionUpdate, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}

	if len(task.Attachments)+1 > constants.MaxAttachmentsPerTask {
		return nil, ErrCapacityExceeded
	}

	attachment := models.Attachment{
		TaskID:   task.ID,
		FileName: fileName,
		FileURL:  fileURL,
		FileType: constants.AttachmentFileType,
	}
	if err := s.taskRepo.UpdateWithAttachments(task, []models.Attachment{attachment}); err != nil {
		return nil, fmt.Errorf("failed to add attachment: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// UploadFiles stores up to the capacity limit of files against an existing task
func (s *TaskService) UploadFiles(actor authz.Actor, taskID uint64, files []IncomingFile) (*models.Task, error) {
	task, err := s.load(taskID, "Attachments")
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.ActionUpdate, ownershipOf(task)) {
		return nil, ErrPermissionDenied
	}

	if err := s.attachments.AddFiles(task, files); err != nil {
		return nil, err
	}

	return s.taskRepo.FindByID(task.ID, "CreatedBy", "AssignedTo", "Attachments")
}

// OpenAttachment streams one attachment's bytes by display name
func (s *TaskService) OpenAttachment(actor authz.Actor, taskID uint64, fileName string) (io.ReadCloser, *models.Attachment, error) {
	task, err := s.load(taskID, "Attachments")
	if err != nil {
		return nil, nil, err
	}
	if !authz.Can(actor, authz.ActionRead, ownershipOf(task)) {
		return nil, nil, ErrPermissionDenied
	}

	return s.attachments.OpenAttachment(task, fileName)
}

func (s *TaskService) load(taskID uint64, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ensureUserExists(userID uint64) error {
	exists, err := s.userRepo.Exists(userID)
	if err != nil {
		return fmt.Errorf("failed to verify assignee: %w", err)
	}
	if !exists {
		return ErrAssigneeNotFound
	}
	return nil
}

func ownershipOf(task *models.Task) authz.Ownership {
	return authz.Ownership{
		CreatedBy:  task.CreatedByID,
		AssignedTo: task.AssignedToID,
	}
}
