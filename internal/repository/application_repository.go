package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
)

// ApplicationRepository handles persistence of applications. Status updates
// are compare-and-swap on the expected prior status: a zero-row update means
// another writer moved the application first, and the caller decides whether
// that is a conflict. The repository never retries.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, student_id, drive_id, status, history, round_outcomes,
        withdrawn_by, withdrawn_at, withdrawal_reason, applied_at, updated_at`

// FindByID returns the application with the given ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByStudentAndDrive returns a student's application to a drive, if any.
func (r *ApplicationRepository) FindByStudentAndDrive(ctx context.Context, studentID, driveID string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE student_id = $1 AND drive_id = $2`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, studentID, driveID); err != nil {
		return nil, err
	}
	return &app, nil
}

// Create persists a new application. The unique index on
// (student_id, drive_id) rejects a duplicate apply at the database level.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.AppliedAt.IsZero() {
		app.AppliedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO applications (id, student_id, drive_id, status, history, round_outcomes,
        withdrawn_by, withdrawn_at, withdrawal_reason, applied_at, updated_at)
        VALUES (:id, :student_id, :drive_id, :status, :history, :round_outcomes,
        :withdrawn_by, :withdrawn_at, :withdrawal_reason, :applied_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus moves the application from one status to another and appends
// to the history in the same statement. The WHERE guard on the prior status
// is the only concurrency control: zero rows affected surfaces as
// sql.ErrNoRows and the caller maps it to a conflict.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, app *models.Application, from lifecycle.ApplicationStatus) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET
        status = :status, history = :history,
        withdrawn_by = :withdrawn_by, withdrawn_at = :withdrawn_at, withdrawal_reason = :withdrawal_reason,
        updated_at = :updated_at
        WHERE id = :id AND status = :prior_status`
	arg := map[string]interface{}{
		"id":                app.ID,
		"status":            app.Status,
		"history":           app.History,
		"withdrawn_by":      app.WithdrawnBy,
		"withdrawn_at":      app.WithdrawnAt,
		"withdrawal_reason": app.WithdrawalReason,
		"updated_at":        app.UpdatedAt,
		"prior_status":      from,
	}
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRounds rewrites the recorded round outcomes. Guarded on the current
// status so a concurrent transition invalidates the write.
func (r *ApplicationRepository) UpdateRounds(ctx context.Context, app *models.Application, current lifecycle.ApplicationStatus) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET round_outcomes = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, app.ID, app.RoundOutcomes, app.UpdatedAt, current)
	if err != nil {
		return fmt.Errorf("update application rounds: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application rounds rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns applications matching the filter plus the unpaged total.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DriveID != "" {
		conditions = append(conditions, fmt.Sprintf("a.drive_id = $%d", len(args)+1))
		args = append(args, filter.DriveID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "a.applied_at"
	if filter.SortBy == "updated_at" || filter.SortBy == "status" {
		orderBy = "a." + filter.SortBy
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
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

	query := fmt.Sprintf(`SELECT a.*, s.first_name || ' ' || s.last_name AS student_name,
        d.title AS drive_title, c.name AS company_name
        FROM applications a
        JOIN students s ON a.student_id = s.id
        JOIN drives d ON a.drive_id = d.id
        JOIN companies c ON d.company_id = c.id%s
        ORDER BY %s %s LIMIT %d OFFSET %d`, clause, orderBy, direction, size, offset)
	var apps []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM applications a
        JOIN students s ON a.student_id = s.id
        JOIN drives d ON a.drive_id = d.id
        JOIN companies c ON d.company_id = c.id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}
