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

type companyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error)
	HiringSummary(ctx context.Context, companyID string) (*models.HiringSummary, error)
}

// CompanyRequest is the payload for creating or updating a company.
type CompanyRequest struct {
	Name        string `json:"name" validate:"required"`
	Industry    string `json:"industry"`
	Website     string `json:"website" validate:"omitempty,url"`
	Description string `json:"description"`
	City        string `json:"city"`
	Active      *bool  `json:"active"`
}

// CompanyService manages recruiting companies.
type CompanyService struct {
	repo      companyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(repo companyRepository, validate *validator.Validate, logger *zap.Logger) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CompanyService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new company.
func (s *CompanyService) Create(ctx context.Context, req CompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	company := &models.Company{
		Name:        req.Name,
		Industry:    req.Industry,
		Website:     req.Website,
		Description: req.Description,
		City:        req.City,
		Active:      true,
	}
	if err := s.repo.Create(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create company")
	}
	return company, nil
}

// Update edits a company.
func (s *CompanyService) Update(ctx context.Context, id string, req CompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	company, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	company.Name = req.Name
	company.Industry = req.Industry
	company.Website = req.Website
	company.Description = req.Description
	company.City = req.City
	if req.Active != nil {
		company.Active = *req.Active
	}
	if err := s.repo.Update(ctx, company); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update company")
	}
	return company, nil
}

// Get returns one company.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	return s.load(ctx, id)
}

// List returns companies matching the filter.
func (s *CompanyService) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error) {
	companies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
	}
	return companies, total, nil
}

// Summary returns the company's hiring roll-up, recomputed per read.
func (s *CompanyService) Summary(ctx context.Context, id string) (*models.HiringSummary, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.repo.HiringSummary(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute hiring summary")
	}
	return summary, nil
}

func (s *CompanyService) load(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	return company, nil
}
