package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/task-tracker-api/internal/auth"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/utils"
	"gorm.io/gorm"
)

var ErrInvalidRole = errors.New("invalid role")

// UserService handles profile and admin user management. Admin-only methods
// assume the caller already passed the role gate; they do not re-check.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// UpdateProfileInput represents a partial self-service profile update.
type UpdateProfileInput struct {
	Username *string
	Email    *string
	Password *string
}

// UpdateProfile updates the caller's own username, email, and optionally
// re-hashes a new password.
func (s *UserService) UpdateProfile(userID uint64, input UpdateProfileInput) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
		user.Username = strings.TrimSpace(*input.Username)
	}
	if input.Email != nil && strings.TrimSpace(*input.Email) != "" {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Password != nil && *input.Password != "" {
		if len(*input.Password) < constants.MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		digest, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		user.PasswordHash = digest
	}

	if err := s.userRepo.Update(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

// ListUsers returns all users (admin only).
func (s *UserService) ListUsers(params utils.PaginationParams) ([]models.User, int64, error) {
	users, total, err := s.userRepo.List(params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// AdminUpdateInput represents an admin edit of an arbitrary user. Role changes
// are only possible through this path.
type AdminUpdateInput struct {
	Username *string
	Email    *string
	Role     *models.Role
}

// UpdateUser applies an admin edit to an arbitrary user.
func (s *UserService) UpdateUser(id uint64, input AdminUpdateInput) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
		user.Username = strings.TrimSpace(*input.Username)
	}
	if input.Email != nil && strings.TrimSpace(*input.Email) != "" {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Role != nil {
		if *input.Role != models.RoleUser && *input.Role != models.RoleAdmin {
			return nil, ErrInvalidRole
		}
		user.Role = *input.Role
	}

	if err := s.userRepo.Update(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser hard-deletes a user. Tasks created by or assigned to the user are
// intentionally left untouched.
func (s *UserService) DeleteUser(id uint64) error {
	if _, err := s.GetUser(id); err != nil {
		return err
	}

	if err := s.userRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}
