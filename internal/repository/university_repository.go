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

// UniversityRepository handles persistence of universities and their
// departments.
type UniversityRepository struct {
	db *sqlx.DB
}

// NewUniversityRepository constructs the repository.
func NewUniversityRepository(db *sqlx.DB) *UniversityRepository {
	return &UniversityRepository{db: db}
}

const universityColumns = `id, name, code, city, state, website, active, created_at, updated_at`

// FindByID returns the university with the given ID.
func (r *UniversityRepository) FindByID(ctx context.Context, id string) (*models.University, error) {
	query := fmt.Sprintf(`SELECT %s FROM universities WHERE id = $1`, universityColumns)
	var uni models.University
	if err := r.db.GetContext(ctx, &uni, query, id); err != nil {
		return nil, err
	}
	return &uni, nil
}

// Create persists a new university.
func (r *UniversityRepository) Create(ctx context.Context, uni *models.University) error {
	if uni.ID == "" {
		uni.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	uni.CreatedAt = now
	uni.UpdatedAt = now
	const query = `INSERT INTO universities (id, name, code, city, state, website, active, created_at, updated_at)
        VALUES (:id, :name, :code, :city, :state, :website, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, uni); err != nil {
		return fmt.Errorf("create university: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields.
func (r *UniversityRepository) Update(ctx context.Context, uni *models.University) error {
	uni.UpdatedAt = time.Now().UTC()
	const query = `UPDATE universities SET name = :name, code = :code, city = :city, state = :state,
        website = :website, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, uni); err != nil {
		return fmt.Errorf("update university: %w", err)
	}
	return nil
}

// List returns universities matching the filter plus the unpaged total.
func (r *UniversityRepository) List(ctx context.Context, filter models.UniversityFilter) ([]models.University, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT %s FROM universities%s ORDER BY name ASC LIMIT %d OFFSET %d`,
		universityColumns, clause, size, offset)
	var unis []models.University
	if err := r.db.SelectContext(ctx, &unis, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list universities: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM universities" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count universities: %w", err)
	}
	return unis, total, nil
}

// ListDepartments returns a university's departments.
func (r *UniversityRepository) ListDepartments(ctx context.Context, universityID string) ([]models.Department, error) {
	const query = `SELECT id, university_id, name, code, created_at FROM departments
        WHERE university_id = $1 ORDER BY name ASC`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, universityID); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// CreateDepartment persists a new department.
func (r *UniversityRepository) CreateDepartment(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	dept.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO departments (id, university_id, name, code, created_at)
        VALUES (:id, :university_id, :name, :code, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// PlacementSummary aggregates placement outcomes for a university's
// dashboard. Everything is computed from live rows; nothing is stored.
func (r *UniversityRepository) PlacementSummary(ctx context.Context, universityID string) (*models.PlacementSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE university_id = $1 AND active = TRUE) AS total_students,
        (SELECT COUNT(*) FROM students WHERE university_id = $1 AND placed = TRUE) AS placed_students,
        (SELECT COUNT(*) FROM drives WHERE university_id = $1) AS total_drives,
        (SELECT COUNT(*) FROM drives WHERE university_id = $1 AND status = 'ACTIVE') AS active_drives,
        (SELECT COUNT(*) FROM applications a JOIN drives d ON a.drive_id = d.id WHERE d.university_id = $1) AS total_applications,
        (SELECT COUNT(*) FROM offers o JOIN drives d ON o.drive_id = d.id WHERE d.university_id = $1 AND o.status = 'ACCEPTED') AS offers_accepted,
        (SELECT COALESCE(AVG(placed_package), 0) FROM students WHERE university_id = $1 AND placed = TRUE) AS average_package,
        (SELECT COALESCE(MAX(placed_package), 0) FROM students WHERE university_id = $1 AND placed = TRUE) AS highest_package`
	var summary models.PlacementSummary
	if err := r.db.GetContext(ctx, &summary, query, universityID); err != nil {
		return nil, fmt.Errorf("placement summary: %w", err)
	}
	return &summary, nil
}
