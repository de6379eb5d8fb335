package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushire/placement-api/internal/models"
)

// StudentRepository handles persistence of student profiles and their resume
// versions.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, user_id, first_name, last_name, email, phone, gender, date_of_birth,
        university_id, department_id, course, specialization, batch, roll_number,
        cgpa, current_backlogs, history_backlogs, verification_status,
        placed, placed_company_id, placed_package, placed_at, active, created_at, updated_at`

// FindByID returns the student with the given ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student profile owned by a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE user_id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a new student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, first_name, last_name, email, phone, gender, date_of_birth,
        university_id, department_id, course, specialization, batch, roll_number,
        cgpa, current_backlogs, history_backlogs, verification_status,
        placed, placed_company_id, placed_package, placed_at, active, created_at, updated_at)
        VALUES (:id, :user_id, :first_name, :last_name, :email, :phone, :gender, :date_of_birth,
        :university_id, :department_id, :course, :specialization, :batch, :roll_number,
        :cgpa, :current_backlogs, :history_backlogs, :verification_status,
        :placed, :placed_company_id, :placed_package, :placed_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites the mutable profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET
        first_name = :first_name, last_name = :last_name, phone = :phone, gender = :gender,
        date_of_birth = :date_of_birth, department_id = :department_id, course = :course,
        specialization = :specialization, batch = :batch, roll_number = :roll_number,
        cgpa = :cgpa, current_backlogs = :current_backlogs, history_backlogs = :history_backlogs,
        active = :active, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateVerification sets the university's verification decision.
func (r *StudentRepository) UpdateVerification(ctx context.Context, id string, status models.VerificationStatus) error {
	const query = `UPDATE students SET verification_status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkPlaced records the accepted offer on the profile. The guard on the
// placed flag keeps a second acceptance from silently overwriting the first.
func (r *StudentRepository) MarkPlaced(ctx context.Context, studentID, companyID string, pkg float64, at time.Time) error {
	const query = `UPDATE students SET placed = TRUE, placed_company_id = $2, placed_package = $3, placed_at = $4, updated_at = $4
        WHERE id = $1 AND placed = FALSE`
	result, err := r.db.ExecContext(ctx, query, studentID, companyID, pkg, at)
	if err != nil {
		return fmt.Errorf("mark placed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark placed rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns students matching the filter plus the unpaged total.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UniversityID != "" {
		conditions = append(conditions, fmt.Sprintf("university_id = $%d", len(args)+1))
		args = append(args, filter.UniversityID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.MinCGPA != nil {
		conditions = append(conditions, fmt.Sprintf("cgpa >= $%d", len(args)+1))
		args = append(args, *filter.MinCGPA)
	}
	if filter.Placed != nil {
		conditions = append(conditions, fmt.Sprintf("placed = $%d", len(args)+1))
		args = append(args, *filter.Placed)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR roll_number ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "created_at"
	switch filter.SortBy {
	case "cgpa", "batch", "first_name":
		orderBy = filter.SortBy
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

	query := fmt.Sprintf(`SELECT %s FROM students%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, clause, orderBy, direction, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListResumes returns every stored resume version for a student, newest
// first.
func (r *StudentRepository) ListResumes(ctx context.Context, studentID string) ([]models.ResumeDocument, error) {
	const query = `SELECT id, student_id, version, file_name, file_path, size_bytes, active, created_at
        FROM resume_documents WHERE student_id = $1 ORDER BY version DESC`
	var docs []models.ResumeDocument
	if err := r.db.SelectContext(ctx, &docs, query, studentID); err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return docs, nil
}

// FindResume returns one resume version.
func (r *StudentRepository) FindResume(ctx context.Context, id string) (*models.ResumeDocument, error) {
	const query = `SELECT id, student_id, version, file_name, file_path, size_bytes, active, created_at
        FROM resume_documents WHERE id = $1`
	var doc models.ResumeDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindActiveResume returns the student's active resume, if any.
func (r *StudentRepository) FindActiveResume(ctx context.Context, studentID string) (*models.ResumeDocument, error) {
	const query = `SELECT id, student_id, version, file_name, file_path, size_bytes, active, created_at
        FROM resume_documents WHERE student_id = $1 AND active = TRUE`
	var doc models.ResumeDocument
	if err := r.db.GetContext(ctx, &doc, query, studentID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateResume inserts a new version and makes it the single active one.
// Both statements run in one transaction so the at-most-one-active invariant
// holds even under concurrent uploads.
func (r *StudentRepository) CreateResume(ctx context.Context, doc *models.ResumeDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = time.Now().UTC()
	doc.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resume tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &doc.Version,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM resume_documents WHERE student_id = $1`, doc.StudentID); err != nil {
		return fmt.Errorf("next resume version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE resume_documents SET active = FALSE WHERE student_id = $1 AND active = TRUE`, doc.StudentID); err != nil {
		return fmt.Errorf("deactivate resumes: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO resume_documents (id, student_id, version, file_name, file_path, size_bytes, active, created_at)
         VALUES (:id, :student_id, :version, :file_name, :file_path, :size_bytes, :active, :created_at)`, doc); err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	return tx.Commit()
}

// SetActiveResume switches the active flag to the given version.
func (r *StudentRepository) SetActiveResume(ctx context.Context, studentID, resumeID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resume tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE resume_documents SET active = FALSE WHERE student_id = $1 AND active = TRUE`, studentID); err != nil {
		return fmt.Errorf("deactivate resumes: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE resume_documents SET active = TRUE WHERE id = $1 AND student_id = $2`, resumeID, studentID)
	if err != nil {
		return fmt.Errorf("activate resume: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate resume rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}
