package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type universityRepository interface {
	FindByID(ctx context.Context, id string) (*models.University, error)
	Create(ctx context.Context, uni *models.University) error
	Update(ctx context.Context, uni *models.University) error
	List(ctx context.Context, filter models.UniversityFilter) ([]models.University, int, error)
	ListDepartments(ctx context.Context, universityID string) ([]models.Department, error)
	CreateDepartment(ctx context.Context, dept *models.Department) error
	PlacementSummary(ctx context.Context, universityID string) (*models.PlacementSummary, error)
}

// UniversityRequest is the payload for creating or updating a university.
type UniversityRequest struct {
	Name    string `json:"name" validate:"required"`
	Code    string `json:"code" validate:"required"`
	City    string `json:"city"`
	State   string `json:"state"`
	Website string `json:"website" validate:"omitempty,url"`
	Active  *bool  `json:"active"`
}

// DepartmentRequest is the payload for adding a department.
type DepartmentRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

// UniversityService manages partner institutions.
type UniversityService struct {
	repo      universityRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUniversityService constructs a UniversityService.
func NewUniversityService(repo universityRepository, validate *validator.Validate, logger *zap.Logger) *UniversityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UniversityService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new university.
func (s *UniversityService) Create(ctx context.Context, req UniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	uni := &models.University{
		Name:    req.Name,
		Code:    req.Code,
		City:    req.City,
		State:   req.State,
		Website: req.Website,
		Active:  true,
	}
	if err := s.repo.Create(ctx, uni); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create university")
	}
	return uni, nil
}

// Update edits a university.
func (s *UniversityService) Update(ctx context.Context, id string, req UniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	uni, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	uni.Name = req.Name
	uni.Code = req.Code
	uni.City = req.City
	uni.State = req.State
	uni.Website = req.Website
	if req.Active != nil {
		uni.Active = *req.Active
	}
	if err := s.repo.Update(ctx, uni); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update university")
	}
	return uni, nil
}

// Get returns one university.
func (s *UniversityService) Get(ctx context.Context, id string) (*models.University, error) {
	return s.load(ctx, id)
}

// List returns universities matching the filter.
func (s *UniversityService) List(ctx context.Context, filter models.UniversityFilter) ([]models.University, int, error) {
	unis, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list universities")
	}
	return unis, total, nil
}

// Departments returns a university's departments.
func (s *UniversityService) Departments(ctx context.Context, universityID string) ([]models.Department, error) {
	if _, err := s.load(ctx, universityID); err != nil {
		return nil, err
	}
	departments, err := s.repo.ListDepartments(ctx, universityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// AddDepartment registers a department under a university.
func (s *UniversityService) AddDepartment(ctx context.Context, universityID string, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if _, err := s.load(ctx, universityID); err != nil {
		return nil, err
	}
	dept := &models.Department{
		UniversityID: universityID,
		Name:         req.Name,
		Code:         req.Code,
	}
	if err := s.repo.CreateDepartment(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return dept, nil
}

// Summary aggregates placement outcomes for the dashboard.
func (s *UniversityService) Summary(ctx context.Context, universityID string) (*models.PlacementSummary, error) {
	if _, err := s.load(ctx, universityID); err != nil {
		return nil, err
	}
	summary, err := s.repo.PlacementSummary(ctx, universityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load placement summary")
	}
	return summary, nil
}

func (s *UniversityService) load(ctx context.Context, id string) (*models.University, error) {
	uni, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	return uni, nil
}
