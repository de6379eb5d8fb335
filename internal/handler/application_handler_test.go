package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/middleware"
	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/internal/service"
)

type handlerAppRepoStub struct {
	apps   map[string]*models.Application
	byPair map[string]*models.Application
}

func newHandlerAppRepoStub() *handlerAppRepoStub {
	return &handlerAppRepoStub{
		apps:   map[string]*models.Application{},
		byPair: map[string]*models.Application{},
	}
}

func (s *handlerAppRepoStub) FindByID(ctx context.Context, id string) (*models.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *app
	return &clone, nil
}

func (s *handlerAppRepoStub) FindByStudentAndDrive(ctx context.Context, studentID, driveID string) (*models.Application, error) {
	app, ok := s.byPair[studentID+"/"+driveID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *app
	return &clone, nil
}

func (s *handlerAppRepoStub) Create(ctx context.Context, app *models.Application) error {
	s.apps[app.ID] = app
	s.byPair[app.StudentID+"/"+app.DriveID] = app
	return nil
}

func (s *handlerAppRepoStub) UpdateStatus(ctx context.Context, app *models.Application, from lifecycle.ApplicationStatus) error {
	stored, ok := s.apps[app.ID]
	if !ok || stored.Status != from {
		return sql.ErrNoRows
	}
	s.apps[app.ID] = app
	s.byPair[app.StudentID+"/"+app.DriveID] = app
	return nil
}

func (s *handlerAppRepoStub) UpdateRounds(ctx context.Context, app *models.Application, current lifecycle.ApplicationStatus) error {
	stored, ok := s.apps[app.ID]
	if !ok || stored.Status != current {
		return sql.ErrNoRows
	}
	s.apps[app.ID] = app
	return nil
}

func (s *handlerAppRepoStub) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return nil, 0, nil
}

type handlerStudentStub struct {
	students map[string]*models.Student
}

func (s *handlerStudentStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, st := range s.students {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *handlerStudentStub) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	st, ok := s.students[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return st, nil
}

type handlerDriveStub struct {
	drives map[string]*models.Drive
}

func (s *handlerDriveStub) FindByID(ctx context.Context, id string) (*models.Drive, error) {
	d, ok := s.drives[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

type handlerNotifierStub struct{}

func (handlerNotifierStub) ApplicationStatusChanged(app *models.Application, actor models.Actor) {}
func (handlerNotifierStub) OfferStatusChanged(offer *models.Offer, actor models.Actor)          {}

type handlerCacheStub struct{}

func (handlerCacheStub) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func handlerTestStudent() *models.Student {
	return &models.Student{
		ID:                 "student-1",
		UserID:             "user-1",
		FirstName:          "Asha",
		LastName:           "Rao",
		Email:              "asha@example.edu",
		Gender:             "FEMALE",
		UniversityID:       "uni-1",
		DepartmentID:       "cse",
		Course:             "B.Tech",
		Batch:              "2026",
		CGPA:               8.1,
		VerificationStatus: models.VerificationVerified,
		Active:             true,
	}
}

func handlerTestDrive(now time.Time) *models.Drive {
	return &models.Drive{
		ID:                    "drive-1",
		Title:                 "SDE Campus Drive",
		CompanyID:             "company-1",
		UniversityID:          "uni-1",
		MinimumCGPA:           7.0,
		GenderPreference:      "ANY",
		RegistrationStart:     now.Add(-24 * time.Hour),
		RegistrationEnd:       now.Add(24 * time.Hour),
		DriveDate:             now.Add(72 * time.Hour),
		Status:                models.DriveStatusActive,
		ApprovalStatus:        models.ApprovalApproved,
		AllowSelfRegistration: true,
	}
}

func newApplicationTestHandler(repo *handlerAppRepoStub, now time.Time) *ApplicationHandler {
	students := &handlerStudentStub{students: map[string]*models.Student{"user-1": handlerTestStudent()}}
	drives := &handlerDriveStub{drives: map[string]*models.Drive{"drive-1": handlerTestDrive(now)}}
	svc := service.NewApplicationService(repo, students, drives, handlerNotifierStub{}, handlerCacheStub{}, nil, nil)
	return NewApplicationHandler(svc)
}

func newAppGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asStudent(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})
}

func TestApplicationHandlerApply(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newHandlerAppRepoStub()
	handler := newApplicationTestHandler(repo, time.Now().UTC())

	payload, _ := json.Marshal(service.ApplyRequest{DriveID: "drive-1"})
	c, w := newAppGinContext(http.MethodPost, "/applications", payload)
	asStudent(c)

	handler.Apply(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Application `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, lifecycle.ApplicationApplied, envelope.Data.Status)
	require.Equal(t, "student-1", envelope.Data.StudentID)
}

func TestApplicationHandlerApplyUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicationTestHandler(newHandlerAppRepoStub(), time.Now().UTC())

	payload, _ := json.Marshal(service.ApplyRequest{DriveID: "drive-1"})
	c, w := newAppGinContext(http.MethodPost, "/applications", payload)

	handler.Apply(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplicationHandlerApplyIneligible(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newHandlerAppRepoStub()
	now := time.Now().UTC()
	students := &handlerStudentStub{students: map[string]*models.Student{"user-1": handlerTestStudent()}}
	students.students["user-1"].CGPA = 6.0
	drives := &handlerDriveStub{drives: map[string]*models.Drive{"drive-1": handlerTestDrive(now)}}
	svc := service.NewApplicationService(repo, students, drives, handlerNotifierStub{}, handlerCacheStub{}, nil, nil)
	handler := NewApplicationHandler(svc)

	payload, _ := json.Marshal(service.ApplyRequest{DriveID: "drive-1"})
	c, w := newAppGinContext(http.MethodPost, "/applications", payload)
	asStudent(c)

	handler.Apply(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "NOT_ELIGIBLE", envelope.Error.Code)
	require.Empty(t, repo.apps)
}

func TestApplicationHandlerTransitionInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newHandlerAppRepoStub()
	now := time.Now().UTC()
	app := &models.Application{
		ID:        "app-1",
		StudentID: "student-1",
		DriveID:   "drive-1",
		Status:    lifecycle.ApplicationApplied,
		AppliedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	handler := newApplicationTestHandler(repo, now)

	payload, _ := json.Marshal(service.TransitionRequest{Status: lifecycle.ApplicationOfferIssued})
	c, w := newAppGinContext(http.MethodPost, "/applications/app-1/transition", payload)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Transition(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "INVALID_TRANSITION", envelope.Error.Code)
}

func TestApplicationHandlerWithdrawAfterOffer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newHandlerAppRepoStub()
	now := time.Now().UTC()
	app := &models.Application{
		ID:        "app-1",
		StudentID: "student-1",
		DriveID:   "drive-1",
		Status:    lifecycle.ApplicationOfferIssued,
		AppliedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), app))
	handler := newApplicationTestHandler(repo, now)

	payload, _ := json.Marshal(service.WithdrawRequest{Reason: "accepted elsewhere"})
	c, w := newAppGinContext(http.MethodPost, "/applications/app-1/withdraw", payload)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	asStudent(c)

	handler.Withdraw(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, lifecycle.ApplicationOfferIssued, repo.apps["app-1"].Status)
}
