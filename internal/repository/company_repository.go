package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushire/placement-api/internal/models"
)

// CompanyRepository handles persistence of recruiting companies.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs the repository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

const companyColumns = `id, name, industry, website, description, city, active, created_at, updated_at`

// FindByID returns the company with the given ID.
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*models.Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE id = $1`, companyColumns)
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// Create persists a new company.
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	company.CreatedAt = now
	company.UpdatedAt = now
	const query = `INSERT INTO companies (id, name, industry, website, description, city, active, created_at, updated_at)
        VALUES (:id, :name, :industry, :website, :description, :city, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now().UTC()
	const query = `UPDATE companies SET name = :name, industry = :industry, website = :website,
        description = :description, city = :city, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// List returns companies matching the filter plus the unpaged total.
func (r *CompanyRepository) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Industry != "" {
		conditions = append(conditions, fmt.Sprintf("industry = $%d", len(args)+1))
		args = append(args, filter.Industry)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM companies%s ORDER BY name ASC LIMIT %d OFFSET %d`,
		companyColumns, clause, size, offset)
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM companies" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}
	return companies, total, nil
}

// HiringSummary aggregates hiring outcomes for a company's dashboard.
// Everything is computed from live rows; nothing is stored.
func (r *CompanyRepository) HiringSummary(ctx context.Context, companyID string) (*models.HiringSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM drives WHERE company_id = $1) AS total_drives,
        (SELECT COUNT(*) FROM drives WHERE company_id = $1 AND status = 'ACTIVE') AS active_drives,
        (SELECT COUNT(*) FROM applications a JOIN drives d ON a.drive_id = d.id WHERE d.company_id = $1) AS total_applications,
        (SELECT COUNT(*) FROM offers o JOIN drives d ON o.drive_id = d.id WHERE d.company_id = $1) AS offers_issued,
        (SELECT COUNT(*) FROM offers o JOIN drives d ON o.drive_id = d.id WHERE d.company_id = $1 AND o.status = 'ACCEPTED') AS offers_accepted,
        (SELECT COUNT(*) FROM students WHERE placed_company_id = $1) AS students_hired,
        (SELECT COALESCE(AVG(placed_package), 0) FROM students WHERE placed_company_id = $1) AS average_package,
        (SELECT COALESCE(MAX(placed_package), 0) FROM students WHERE placed_company_id = $1) AS highest_package`
	var summary models.HiringSummary
	if err := r.db.GetContext(ctx, &summary, query, companyID); err != nil {
		return nil, fmt.Errorf("hiring summary: %w", err)
	}
	return &summary, nil
}
