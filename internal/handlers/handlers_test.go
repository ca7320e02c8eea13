package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-tracker-api/internal/auth"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/services"
	"github.com/yukikurage/task-tracker-api/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// apiTestSuite spins up the full router over an in-memory database and a
// temp-dir blob store, so handler tests exercise the same wiring as main.
type apiTestSuite struct {
	suite.Suite
	db       *gorm.DB
	blobs    *storage.LocalBlobStore
	blobRoot string
	tokens   *auth.TokenService
	router   *gin.Engine
}

func (suite *apiTestSuite) SetupTest() {
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
	suite.blobs, err = storage.NewLocalBlobStore(suite.blobRoot)
	suite.Require().NoError(err)

	suite.tokens = auth.NewTokenService("test-secret", 24*time.Hour)

	userRepo := repository.NewUserRepository(suite.db)
	taskRepo := repository.NewTaskRepository(suite.db)
	attachmentService := services.NewAttachmentService(taskRepo, suite.blobs)
	authService := services.NewAuthService(userRepo, suite.tokens)
	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo, userRepo, attachmentService)

	authHandler := NewAuthHandler(authService)
	taskHandler := NewTaskHandler(taskService)
	userHandler := NewUserHandler(userService)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	api := suite.router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth(suite.tokens))
		{
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.PUT("/:id/status", taskHandler.UpdateTaskStatus)
			tasks.PUT("/:id/assign", taskHandler.AssignTask)
			tasks.POST("/:id/attachments", taskHandler.AddAttachment)
			tasks.POST("/:id/upload", taskHandler.UploadFiles)
			tasks.GET("/:id/attachments/:fileName", taskHandler.GetAttachment)
		}

		users := api.Group("/users")
		users.Use(middleware.RequireAuth(suite.tokens))
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)

			admin := users.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("", userHandler.ListUsers)
				admin.GET("/:id", userHandler.GetUser)
				admin.PUT("/:id", userHandler.UpdateUser)
				admin.DELETE("/:id", userHandler.DeleteUser)
			}
		}
	}
}

func (suite *apiTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *apiTestSuite) createUser(name string, role models.Role) (*models.User, string) {
	digest, err := auth.HashPassword("long-enough-password")
	suite.Require().NoError(err)

	user := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: digest,
		Role:         role,
	}
	suite.Require().NoError(suite.db.Create(user).Error)

	token, err := suite.tokens.Issue(user.ID, user.Role)
	suite.Require().NoError(err)

	return user, token
}

func (suite *apiTestSuite) doJSON(method, url, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// multipartBody builds a task-creation or upload form with optional PDF parts.
func (suite *apiTestSuite) multipartBody(fields map[string]string, pdfNames []string) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for k, v := range fields {
		suite.Require().NoError(mw.WriteField(k, v))
	}
	for _, name := range pdfNames {
		part, err := mw.CreateFormFile("pdfs", name)
		suite.Require().NoError(err)
		_, err = part.Write([]byte("%PDF-1.4 " + name))
		suite.Require().NoError(err)
	}

	suite.Require().NoError(mw.Close())
	return buf, mw.FormDataContentType()
}

func (suite *apiTestSuite) doMultipart(method, url, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *apiTestSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var payload map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func (suite *apiTestSuite) errorCode(w *httptest.ResponseRecorder) string {
	code, _ := suite.decode(w)["code"].(string)
	return code
}
