package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateVerification(ctx context.Context, id string, status models.VerificationStatus) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListResumes(ctx context.Context, studentID string) ([]models.ResumeDocument, error)
	FindResume(ctx context.Context, id string) (*models.ResumeDocument, error)
	FindActiveResume(ctx context.Context, studentID string) (*models.ResumeDocument, error)
	CreateResume(ctx context.Context, doc *models.ResumeDocument) error
	SetActiveResume(ctx context.Context, studentID, resumeID string) error
}

// resumeStore is the minimal surface the student service needs from the
// filesystem storage.
type resumeStore interface {
	Save(filename string, data []byte) (string, error)
}

// CreateStudentRequest is the payload for registering a student profile.
type CreateStudentRequest struct {
	UserID          string     `json:"user_id" validate:"required"`
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	Email           string     `json:"email" validate:"required,email"`
	Phone           string     `json:"phone"`
	Gender          string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	UniversityID    string     `json:"university_id" validate:"required"`
	DepartmentID    string     `json:"department_id" validate:"required"`
	Course          string     `json:"course" validate:"required"`
	Specialization  string     `json:"specialization"`
	Batch           string     `json:"batch" validate:"required"`
	RollNumber      string     `json:"roll_number" validate:"required"`
	CGPA            float64    `json:"cgpa" validate:"gte=0,lte=10"`
	CurrentBacklogs int        `json:"current_backlogs" validate:"gte=0"`
	HistoryBacklogs int        `json:"history_backlogs" validate:"gte=0"`
}

// UpdateStudentRequest edits the mutable profile fields. Academic figures
// reset verification to pending so the university re-checks them.
type UpdateStudentRequest struct {
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	Phone           string     `json:"phone"`
	Gender          string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Course          string     `json:"course" validate:"required"`
	Specialization  string     `json:"specialization"`
	Batch           string     `json:"batch" validate:"required"`
	RollNumber      string     `json:"roll_number" validate:"required"`
	CGPA            float64    `json:"cgpa" validate:"gte=0,lte=10"`
	CurrentBacklogs int        `json:"current_backlogs" validate:"gte=0"`
	HistoryBacklogs int        `json:"history_backlogs" validate:"gte=0"`
}

// VerifyStudentRequest records the university's verification decision.
type VerifyStudentRequest struct {
	Approve bool `json:"approve"`
}

// UploadResumeRequest carries one resume file.
type UploadResumeRequest struct {
	FileName string `json:"file_name" validate:"required"`
	Content  []byte `json:"-" validate:"required"`
}

// StudentService manages student profiles and resume versions.
type StudentService struct {
	repo      studentRepository
	store     resumeStore
	validator *validator.Validate
	logger    *zap.Logger
	maxFile   int64
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, store resumeStore, validate *validator.Validate, logger *zap.Logger, maxFileSize int64) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &StudentService{repo: repo, store: store, validator: validate, logger: logger, maxFile: maxFileSize}
}

// Create registers a new profile in PENDING verification.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if _, err := s.repo.FindByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "profile already exists for this account")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing profile")
	}

	student := &models.Student{
		UserID:             req.UserID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              strings.ToLower(req.Email),
		Phone:              req.Phone,
		Gender:             req.Gender,
		DateOfBirth:        req.DateOfBirth,
		UniversityID:       req.UniversityID,
		DepartmentID:       req.DepartmentID,
		Course:             req.Course,
		Specialization:     req.Specialization,
		Batch:              req.Batch,
		RollNumber:         req.RollNumber,
		CGPA:               req.CGPA,
		CurrentBacklogs:    req.CurrentBacklogs,
		HistoryBacklogs:    req.HistoryBacklogs,
		VerificationStatus: models.VerificationPending,
		Active:             true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update edits the profile. Changing CGPA or backlogs drops the profile back
// to pending verification.
func (s *StudentService) Update(ctx context.Context, actor models.Actor, studentID string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && student.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another student")
	}

	academicChanged := student.CGPA != req.CGPA ||
		student.CurrentBacklogs != req.CurrentBacklogs ||
		student.HistoryBacklogs != req.HistoryBacklogs

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Phone = req.Phone
	if req.Gender != "" {
		student.Gender = req.Gender
	}
	student.DateOfBirth = req.DateOfBirth
	student.Course = req.Course
	student.Specialization = req.Specialization
	student.Batch = req.Batch
	student.RollNumber = req.RollNumber
	student.CGPA = req.CGPA
	student.CurrentBacklogs = req.CurrentBacklogs
	student.HistoryBacklogs = req.HistoryBacklogs

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if academicChanged && student.VerificationStatus == models.VerificationVerified {
		if err := s.repo.UpdateVerification(ctx, student.ID, models.VerificationPending); err != nil {
			s.logger.Warn("failed to reset verification after academic change",
				zap.String("student_id", student.ID), zap.Error(err))
		} else {
			student.VerificationStatus = models.VerificationPending
		}
	}
	return student, nil
}

// Verify records the university's decision on a pending profile.
func (s *StudentService) Verify(ctx context.Context, actor models.Actor, studentID string, req VerifyStudentRequest) (*models.Student, error) {
	student, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	status := models.VerificationVerified
	if !req.Approve {
		status = models.VerificationRejected
	}
	if err := s.repo.UpdateVerification(ctx, student.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update verification")
	}
	student.VerificationStatus = status
	s.logger.Info("student verification decided",
		zap.String("student_id", student.ID),
		zap.String("status", string(status)),
		zap.String("by", actor.String()))
	return student, nil
}

// Get returns one profile.
func (s *StudentService) Get(ctx context.Context, studentID string) (*models.Student, error) {
	return s.load(ctx, studentID)
}

// GetByUser returns the profile owned by a user account.
func (s *StudentService) GetByUser(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// UploadResume stores a new resume version and makes it active.
func (s *StudentService) UploadResume(ctx context.Context, actor models.Actor, studentID string, req UploadResumeRequest) (*models.ResumeDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resume payload")
	}
	if int64(len(req.Content)) > s.maxFile {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resume exceeds the maximum file size")
	}
	ext := strings.ToLower(filepath.Ext(req.FileName))
	if ext != ".pdf" && ext != ".doc" && ext != ".docx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resume must be a PDF or Word document")
	}

	student, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && student.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another student")
	}

	relPath := fmt.Sprintf("resumes/%s/%d%s", student.ID, time.Now().UTC().UnixNano(), ext)
	if _, err := s.store.Save(relPath, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resume file")
	}

	doc := &models.ResumeDocument{
		StudentID: student.ID,
		FileName:  req.FileName,
		FilePath:  relPath,
		SizeBytes: int64(len(req.Content)),
	}
	if err := s.repo.CreateResume(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record resume")
	}
	return doc, nil
}

// Resumes lists every stored version for a student.
func (s *StudentService) Resumes(ctx context.Context, studentID string) ([]models.ResumeDocument, error) {
	if _, err := s.load(ctx, studentID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListResumes(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resumes")
	}
	return docs, nil
}

// ActivateResume makes an older version the active one.
func (s *StudentService) ActivateResume(ctx context.Context, actor models.Actor, studentID, resumeID string) error {
	student, err := s.load(ctx, studentID)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleStudent && student.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another student")
	}
	if err := s.repo.SetActiveResume(ctx, studentID, resumeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resume version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate resume")
	}
	return nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}
