package services

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-tracker-api/internal/authz"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/storage"
	"github.com/yukikurage/task-tracker-api/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TaskServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	blobRoot string
	service  *TaskService

	creator  *models.User
	assignee *models.User
	admin    *models.User
	stranger *models.User
}

func (suite *TaskServiceTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.User{}, &models.Task{}, &models.Attachment{})
	suite.Require().NoError(err)

	suite.blobRoot = suite.T().TempDir()
	blobs, err := storage.NewLocalBlobStore(suite.blobRoot)
	suite.Require().NoError(err)

	taskRepo := repository.NewTaskRepository(suite.db)
	userRepo := repository.NewUserRepository(suite.db)
	suite.service = NewTaskService(taskRepo, userRepo, NewAttachmentService(taskRepo, blobs))

	suite.creator = suite.createUser("creator", models.RoleUser)
	suite.assignee = suite.createUser("assignee", models.RoleUser)
	suite.admin = suite.createUser("admin", models.RoleAdmin)
	suite.stranger = suite.createUser("stranger", models.RoleUser)
}

func (suite *TaskServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskServiceTestSuite) createUser(name string, role models.Role) *models.User {
	user := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         role,
	}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func actorFor(user *models.User) authz.Actor {
	return authz.Actor{ID: user.ID, Role: user.Role}
}

func (suite *TaskServiceTestSuite) validInput() CreateTaskInput {
	return CreateTaskInput{
		Title:       "Design UI",
		Description: "x",
		DueDate:     time.Now().Add(48 * time.Hour),
		AssignedTo:  suite.assignee.ID,
	}
}

func (suite *TaskServiceTestSuite) createTask() *models.Task {
	task, err := suite.service.Create(actorFor(suite.creator), suite.validInput())
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) blobCount() int {
	entries, err := os.ReadDir(suite.blobRoot)
	suite.Require().NoError(err)
	return len(entries)
}

func (suite *TaskServiceTestSuite) TestCreate_Defaults() {
	task := suite.createTask()

	suite.Equal(models.TaskStatusPending, task.Status)
	suite.Equal(models.TaskPriorityMedium, task.Priority)
	suite.Equal(suite.creator.ID, task.CreatedByID)
	suite.Equal(suite.assignee.ID, task.AssignedToID)
	suite.Empty(task.Attachments)
}

func (suite *TaskServiceTestSuite) TestCreate_Validation() {
	creator := actorFor(suite.creator)

	input := suite.validInput()
	input.AssignedTo = 0
	_, err := suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrAssigneeRequired)

	input = suite.validInput()
	input.Title = "ab"
	_, err = suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrTitleTooShort)

	input = suite.validInput()
	input.Description = "  "
	_, err = suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrDescriptionRequired)

	input = suite.validInput()
	input.DueDate = time.Time{}
	_, err = suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrDueDateRequired)

	input = suite.validInput()
	input.Status = "archived"
	_, err = suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrInvalidStatus)

	input = suite.validInput()
	input.AssignedTo = 9999
	_, err = suite.service.Create(creator, input)
	suite.ErrorIs(err, ErrAssigneeNotFound)
}

func (suite *TaskServiceTestSuite) TestCreate_WithFiles() {
	input := suite.validInput()
	input.Files = []IncomingFile{pdfFile("spec.pdf", "%PDF-1.4")}

	task, err := suite.service.Create(actorFor(suite.creator), input)
	suite.Require().NoError(err)
	suite.Len(task.Attachments, 1)
	suite.Equal(1, suite.blobCount())
}

func (suite *TaskServiceTestSuite) TestCreate_RejectedFilesUnwindTask() {
	input := suite.validInput()
	input.Files = []IncomingFile{
		pdfFile("1.pdf", "a"), pdfFile("2.pdf", "b"),
		pdfFile("3.pdf", "c"), pdfFile("4.pdf", "d"),
	}

	_, err := suite.service.Create(actorFor(suite.creator), input)
	suite.Require().ErrorIs(err, ErrCapacityExceeded)

	suite.Equal(0, suite.blobCount())
	var count int64
	suite.db.Model(&models.Task{}).Count(&count)
	suite.Zero(count)
}

func (suite *TaskServiceTestSuite) TestList_ScopedToCreatorOrAssignee() {
	suite.createTask()

	params := utils.PaginationParams{Page: 1, Limit: 20, Offset: 0}

	tasks, total, err := suite.service.List(actorFor(suite.creator), params)
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Len(tasks, 1)

	tasks, total, err = suite.service.List(actorFor(suite.assignee), params)
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Len(tasks, 1)

	// Admins get no blanket access in list views.
	tasks, total, err = suite.service.List(actorFor(suite.admin), params)
	suite.Require().NoError(err)
	suite.Zero(total)
	suite.Empty(tasks)
}

func (suite *TaskServiceTestSuite) TestGet_ReadRule() {
	task := suite.createTask()

	for _, user := range []*models.User{suite.creator, suite.assignee, suite.admin} {
		got, err := suite.service.Get(actorFor(user), task.ID)
		suite.Require().NoError(err)
		suite.Equal(task.ID, got.ID)
	}

	_, err := suite.service.Get(actorFor(suite.stranger), task.ID)
	suite.ErrorIs(err, ErrPermissionDenied)
}

func (suite *TaskServiceTestSuite) TestGet_NotFound() {
	_, err := suite.service.Get(actorFor(suite.creator), 9999)
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestUpdate_Permissions() {
	task := suite.createTask()
	title := "Updated title"

	for _, user := range []*models.User{suite.creator, suite.assignee, suite.admin} {
		_, err := suite.service.Update(actorFor(user), task.ID, UpdateTaskInput{Title: &title})
		suite.Require().NoError(err)
	}

	_, err := suite.service.Update(actorFor(suite.stranger), task.ID, UpdateTaskInput{Title: &title})
	suite.Require().ErrorIs(err, ErrPermissionDenied)

	// Denied update left the task unchanged.
	got, err := suite.service.Get(actorFor(suite.creator), task.ID)
	suite.Require().NoError(err)
	suite.Equal("Updated title", got.Title)
}

func (suite *TaskServiceTestSuite) TestUpdate_RefreshesTimestamp() {
	task := suite.createTask()
	before := task.UpdatedAt

	time.Sleep(10 * time.Millisecond)

	title := "Renamed"
	updated, err := suite.service.Update(actorFor(suite.creator), task.ID, UpdateTaskInput{Title: &title})
	suite.Require().NoError(err)
	suite.True(updated.UpdatedAt.After(before))
}

func (suite *TaskServiceTestSuite) TestUpdateStatus() {
	task := suite.createTask()

	updated, err := suite.service.UpdateStatus(actorFor(suite.assignee), task.ID, models.TaskStatusCompleted)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, updated.Status)

	// Transitions are unordered: completed back to pending is legal.
	updated, err = suite.service.UpdateStatus(actorFor(suite.assignee), task.ID, models.TaskStatusPending)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusPending, updated.Status)

	_, err = suite.service.UpdateStatus(actorFor(suite.stranger), task.ID, models.TaskStatusCompleted)
	suite.ErrorIs(err, ErrPermissionDenied)

	_, err = suite.service.UpdateStatus(actorFor(suite.assignee), task.ID, "archived")
	suite.ErrorIs(err, ErrInvalidStatus)
}

func (suite *TaskServiceTestSuite) TestAssign() {
	task := suite.createTask()
	other := suite.createUser("other", models.RoleUser)

	updated, err := suite.service.Assign(actorFor(suite.creator), task.ID, other.ID)
	suite.Require().NoError(err)
	suite.Equal(other.ID, updated.AssignedToID)

	_, err = suite.service.Assign(actorFor(suite.stranger), task.ID, other.ID)
	suite.ErrorIs(err, ErrPermissionDenied)

	_, err = suite.service.Assign(actorFor(suite.creator), task.ID, 9999)
	suite.ErrorIs(err, ErrAssigneeNotFound)
}

func (suite *TaskServiceTestSuite) TestDelete_Permissions() {
	task := suite.createTask()

	suite.ErrorIs(suite.service.Delete(actorFor(suite.assignee), task.ID), ErrPermissionDenied)
	suite.ErrorIs(suite.service.Delete(actorFor(suite.stranger), task.ID), ErrPermissionDenied)

	suite.Require().NoError(suite.service.Delete(actorFor(suite.creator), task.ID))

	_, err := suite.service.Get(actorFor(suite.creator), task.ID)
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestDelete_RemovesAttachmentBlobs() {
	input := suite.validInput()
	input.Files = []IncomingFile{
		pdfFile("1.pdf", "a"), pdfFile("2.pdf", "b"), pdfFile("3.pdf", "c"),
	}
	task, err := suite.service.Create(actorFor(suite.creator), input)
	suite.Require().NoError(err)
	suite.Equal(3, suite.blobCount())

	suite.Require().NoError(suite.service.Delete(actorFor(suite.admin), task.ID))

	suite.Equal(0, suite.blobCount())
	var count int64
	suite.db.Model(&models.Attachment{}).Count(&count)
	suite.Zero(count)

	_, _, err = suite.service.OpenAttachment(actorFor(suite.admin), task.ID, "1.pdf")
	suite.ErrorIs(err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestAddAttachmentMeta_EnforcesCapacity() {
	task := suite.createTask()
	creator := actorFor(suite.creator)

	for i := 0; i < 3; i++ {
		_, err := suite.service.AddAttachmentMeta(creator, task.ID, "ext.pdf", "https://example.com/ext.pdf")
		suite.Require().NoError(err)
	}

	_, err := suite.service.AddAttachmentMeta(creator, task.ID, "ext.pdf", "https://example.com/ext.pdf")
	suite.ErrorIs(err, ErrCapacityExceeded)
}

func (suite *TaskServiceTestSuite) TestUploadFiles_Permissions() {
	task := suite.createTask()

	_, err := suite.service.UploadFiles(actorFor(suite.stranger), task.ID, []IncomingFile{pdfFile("1.pdf", "a")})
	suite.ErrorIs(err, ErrPermissionDenied)
	suite.Equal(0, suite.blobCount())

	updated, err := suite.service.UploadFiles(actorFor(suite.assignee), task.ID, []IncomingFile{pdfFile("1.pdf", "a")})
	suite.Require().NoError(err)
	suite.Len(updated.Attachments, 1)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
