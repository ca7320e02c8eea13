package repository

import (
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/utils"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task together with any attachment rows it carries
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// ListForUser retrieves tasks the user created or is assigned to
	ListForUser(userID uint64, params utils.PaginationParams) ([]models.Task, int64, error)

	// Update persists the task and refreshes its UpdatedAt timestamp
	Update(task *models.Task) error

	// UpdateWithAttachments persists the task and appends new attachment rows
	// in one transaction
	UpdateWithAttachments(task *models.Task, attachments []models.Attachment) error

	// Delete hard-deletes the task and its attachment rows
	Delete(id uint64) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(email string) (*models.User, error)

	// FindByUsernameOrEmail finds a user matching either identifier
	FindByUsernameOrEmail(username, email string) (*models.User, error)

	// List retrieves all users with pagination
	List(params utils.PaginationParams) ([]models.User, int64, error)

	// Update updates a user
	Update(user *models.User) error

	// Delete hard-deletes a user; tasks referencing the user are left as-is
	Delete(id uint64) error

	// Exists reports whether a user with the given ID exists
	Exists(id uint64) (bool, error)
}
