package services

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/storage"
)

var (
	ErrCapacityExceeded   = fmt.Errorf("maximum %d attachments allowed per task", constants.MaxAttachmentsPerTask)
	ErrInvalidAttachment  = errors.New("attachment rejected")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// IncomingFile describes one uploaded file before its bytes are stored.
type IncomingFile struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AttachmentService keeps blob storage and task metadata in lockstep. Every
// exit path that does not end in a committed metadata write deletes the blobs
// written for that call: there is no transaction spanning the two stores, so
// the rollback is a compensating delete.
type AttachmentService struct {
	taskRepo repository.TaskRepository
	blobs    storage.BlobStore
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(taskRepo repository.TaskRepository, blobs storage.BlobStore) *AttachmentService {
	return &AttachmentService{
		taskRepo: taskRepo,
		blobs:    blobs,
	}
}

// AddFiles validates and stores a batch of files for a task, then persists the
// attachment rows. The batch is all-or-nothing: a rejected file, a failed blob
// write, or a failed metadata commit leaves no blob from this call behind.
// On success task.Attachments is extended with the new rows.
func (s *AttachmentService) AddFiles(task *models.Task, files []IncomingFile) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files provided", ErrInvalidAttachment)
	}
	if len(task.Attachments)+len(files) > constants.MaxAttachmentsPerTask {
		return ErrCapacityExceeded
	}

	// Reject the whole batch before any blob is written.
	for _, f := range files {
		if err := validateFile(f); err != nil {
			return err
		}
	}

	written := make([]string, 0, len(files))
	committed := false
	defer func() {
		if committed {
			return
		}
		// Rollback failures are logged, never allowed to mask the
		// primary error.
		for _, name := range written {
			if err := s.blobs.Delete(name); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
				log.Error().Err(err).Str("blob", name).Msg("failed to roll back blob after aborted attachment write")
			}
		}
	}()

	attachments := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		name := uuid.New().String() + ".pdf"

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to read uploaded file %q: %w", f.FileName, err)
		}
		path, err := s.blobs.Save(name, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to store file %q: %w", f.FileName, err)
		}
		written = append(written, name)

		attachments = append(attachments, models.Attachment{
			TaskID:      task.ID,
			FileName:    f.FileName,
			FileURL:     fmt.Sprintf("/api/tasks/%d/attachments/%s", task.ID, name),
			StorageName: name,
			StoragePath: path,
			FileType:    constants.AttachmentFileType,
		})
	}

	if err := s.taskRepo.UpdateWithAttachments(task, attachments); err != nil {
		return fmt.Errorf("failed to persist attachments: %w", err)
	}
	committed = true

	task.Attachments = append(task.Attachments, attachments...)
	return nil
}

// RemoveAll deletes every blob referenced by the task's attachment list. An
// already-absent blob is tolerated but logged as an anomaly.
func (s *AttachmentService) RemoveAll(task *models.Task) error {
	for _, a := range task.Attachments {
		if a.StorageName == "" {
			// Metadata-only attachment, nothing stored.
			continue
		}
		if err := s.blobs.Delete(a.StorageName); err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				log.Warn().Uint64("task_id", task.ID).Str("blob", a.StorageName).Msg("attachment blob already absent")
				continue
			}
			return fmt.Errorf("failed to delete blob %q: %w", a.StorageName, err)
		}
	}
	return nil
}

// OpenAttachment resolves an attachment by its display name or by the
// generated name embedded in its FileURL, and returns a reader over the
// backing blob. Either half missing yields ErrAttachmentNotFound.
func (s *AttachmentService) OpenAttachment(task *models.Task, fileName string) (io.ReadCloser, *models.Attachment, error) {
	for i := range task.Attachments {
		a := &task.Attachments[i]
		if a.FileName != fileName && a.StorageName != fileName {
			continue
		}
		if a.StorageName == "" {
			return nil, nil, ErrAttachmentNotFound
		}
		rc, err := s.blobs.Open(a.StorageName)
		if err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				return nil, nil, ErrAttachmentNotFound
			}
			return nil, nil, fmt.Errorf("failed to open blob %q: %w", a.StorageName, err)
		}
		return rc, a, nil
	}
	return nil, nil, ErrAttachmentNotFound
}

func validateFile(f IncomingFile) error {
	if f.Size > constants.MaxAttachmentBytes {
		return fmt.Errorf("%w: %q exceeds the %d byte limit", ErrInvalidAttachment, f.FileName, constants.MaxAttachmentBytes)
	}

	ext := strings.ToLower(filepath.Ext(f.FileName))
	if ext != ".pdf" && f.ContentType != "application/pdf" {
		return fmt.Errorf("%w: %q is not a PDF", ErrInvalidAttachment, f.FileName)
	}

	return nil
}
