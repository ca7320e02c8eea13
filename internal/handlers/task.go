package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/authz"
	"github.com/yukikurage/task-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/services"
	"github.com/yukikurage/task-tracker-api/internal/utils"
)

// TaskHandler coordinates task-related HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// CreateTask creates a task from a multipart form, with up to 3 PDF parts.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	assignedTo, err := strconv.ParseUint(c.PostForm("assignedTo"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "assignedTo field is required")
		return
	}

	dueDate, err := parseDueDate(c.PostForm("dueDate"))
	if err != nil {
		apierrors.BadRequest(c, "dueDate must be RFC3339 or YYYY-MM-DD")
		return
	}

	input := services.CreateTaskInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Status:      models.TaskStatus(c.PostForm("status")),
		Priority:    models.TaskPriority(c.PostForm("priority")),
		DueDate:     dueDate,
		AssignedTo:  assignedTo,
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		input.Files = toIncomingFiles(form.File["pdfs"])
	}

	task, err := h.taskService.Create(actor, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// ListTasks returns the tasks the caller created or is assigned to.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)

	tasks, total, err := h.taskService.List(actor, params)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":      dto.ToTaskDTOs(tasks),
		"pagination": utils.NewPaginationResponse(params, total),
	})
}

// GetTask returns a single task by id.
func (h *TaskHandler) GetTask(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(actor, taskID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update of the generic task fields.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Title       *string              `json:"title"`
		Description *string              `json:"description"`
		Priority    *models.TaskPriority `json:"priority"`
		DueDate     *time.Time           `json:"dueDate"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.Update(actor, taskID, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask removes the task, its attachment rows, and their blobs.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	if err := h.taskService.Delete(actor, taskID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task removed"})
}

// UpdateTaskStatus sets the task's status.
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	type StatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateStatus(actor, taskID, req.Status)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// AssignTask reassigns the task to another user.
func (h *TaskHandler) AssignTask(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	type AssignRequest struct {
		AssignedTo uint64 `json:"assignedTo" binding:"required"`
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.Assign(actor, taskID, req.AssignedTo)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// AddAttachment appends a metadata-only attachment entry.
func (h *TaskHandler) AddAttachment(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	type AttachmentRequest struct {
		FileName string `json:"fileName" binding:"required"`
		FileURL  string `json:"fileUrl" binding:"required"`
	}

	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.AddAttachmentMeta(actor, taskID, req.FileName, req.FileURL)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UploadFiles stores up to 3 PDF parts against an existing task.
func (h *TaskHandler) UploadFiles(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["pdfs"]) == 0 {
		apierrors.BadRequest(c, "No PDF files uploaded")
		return
	}

	task, err := h.taskService.UploadFiles(actor, taskID, toIncomingFiles(form.File["pdfs"]))
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "PDFs uploaded successfully",
		"attachments": dto.ToTaskDTO(*task).Attachments,
	})
}

// GetAttachment streams one attachment's bytes by display name.
func (h *TaskHandler) GetAttachment(c *gin.Context) {
	actor, taskID, ok := actorAndTaskID(c)
	if !ok {
		return
	}

	fileName := c.Param("fileName")

	rc, attachment, err := h.taskService.OpenAttachment(actor, taskID, fileName)
	if err != nil {
		respondTaskError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.FileName))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are already out; nothing more to report to the client.
		return
	}
}

func actorAndTaskID(c *gin.Context) (authz.Actor, uint64, bool) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return authz.Actor{}, 0, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return authz.Actor{}, 0, false
	}

	return actor, id, true
}

func toIncomingFiles(headers []*multipart.FileHeader) []services.IncomingFile {
	files := make([]services.IncomingFile, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, services.IncomingFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

func parseDueDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrAttachmentNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrPermissionDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrCapacityExceeded):
		apierrors.CapacityExceeded(c, err.Error())
	case errors.Is(err, services.ErrInvalidAttachment):
		apierrors.InvalidAttachment(c, err.Error())
	case errors.Is(err, services.ErrTitleTooShort),
		errors.Is(err, services.ErrDescriptionRequired),
		errors.Is(err, services.ErrDueDateRequired),
		errors.Is(err, services.ErrAssigneeRequired),
		errors.Is(err, services.ErrAssigneeNotFound),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
