package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
)

// DriveRepository handles persistence of placement drives, their candidate
// rosters and the raw rows behind drive statistics.
type DriveRepository struct {
	db *sqlx.DB
}

// NewDriveRepository constructs the repository.
func NewDriveRepository(db *sqlx.DB) *DriveRepository {
	return &DriveRepository{db: db}
}

const driveColumns = `id, title, company_id, university_id,
        job_role, job_description, job_type, work_mode, skills_required, locations,
        salary_min, salary_max, currency,
        minimum_cgpa, allowed_current_backlogs, allowed_history_backlogs, courses, departments, batches, gender_preference,
        registration_start, registration_end, drive_date, result_date,
        status, approval_status, approval_notes, approved_by, approved_at,
        allow_self_registration, send_notifications,
        created_by, created_at, updated_at`

// FindByID returns the drive with the given ID.
func (r *DriveRepository) FindByID(ctx context.Context, id string) (*models.Drive, error) {
	query := fmt.Sprintf(`SELECT %s FROM drives WHERE id = $1`, driveColumns)
	var drive models.Drive
	if err := r.db.GetContext(ctx, &drive, query, id); err != nil {
		return nil, err
	}
	return &drive, nil
}

// FindDetailByID returns the drive joined with company and university names.
// Phase fields are filled in by the service from the timeline.
func (r *DriveRepository) FindDetailByID(ctx context.Context, id string) (*models.DriveDetail, error) {
	const query = `SELECT d.*, c.name AS company_name, u.name AS university_name
        FROM drives d
        JOIN companies c ON d.company_id = c.id
        JOIN universities u ON d.university_id = u.id
        WHERE d.id = $1`
	var detail models.DriveDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new drive in DRAFT with approval PENDING.
func (r *DriveRepository) Create(ctx context.Context, drive *models.Drive) error {
	if drive.ID == "" {
		drive.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	drive.CreatedAt = now
	drive.UpdatedAt = now
	const query = `INSERT INTO drives (id, title, company_id, university_id,
        job_role, job_description, job_type, work_mode, skills_required, locations,
        salary_min, salary_max, currency,
        minimum_cgpa, allowed_current_backlogs, allowed_history_backlogs, courses, departments, batches, gender_preference,
        registration_start, registration_end, drive_date, result_date,
        status, approval_status, approval_notes, approved_by, approved_at,
        allow_self_registration, send_notifications,
        created_by, created_at, updated_at)
        VALUES (:id, :title, :company_id, :university_id,
        :job_role, :job_description, :job_type, :work_mode, :skills_required, :locations,
        :salary_min, :salary_max, :currency,
        :minimum_cgpa, :allowed_current_backlogs, :allowed_history_backlogs, :courses, :departments, :batches, :gender_preference,
        :registration_start, :registration_end, :drive_date, :result_date,
        :status, :approval_status, :approval_notes, :approved_by, :approved_at,
        :allow_self_registration, :send_notifications,
        :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, drive); err != nil {
		return fmt.Errorf("create drive: %w", err)
	}
	return nil
}

// Update rewrites the drive's editable fields. Only DRAFT drives are
// editable; the status guard makes a concurrent publish fail this update
// instead of overwriting it.
func (r *DriveRepository) Update(ctx context.Context, drive *models.Drive) error {
	drive.UpdatedAt = time.Now().UTC()
	const query = `UPDATE drives SET
        title = :title, job_role = :job_role, job_description = :job_description,
        job_type = :job_type, work_mode = :work_mode, skills_required = :skills_required, locations = :locations,
        salary_min = :salary_min, salary_max = :salary_max, currency = :currency,
        minimum_cgpa = :minimum_cgpa, allowed_current_backlogs = :allowed_current_backlogs,
        allowed_history_backlogs = :allowed_history_backlogs,
        courses = :courses, departments = :departments, batches = :batches, gender_preference = :gender_preference,
        registration_start = :registration_start, registration_end = :registration_end,
        drive_date = :drive_date, result_date = :result_date,
        allow_self_registration = :allow_self_registration, send_notifications = :send_notifications,
        updated_at = :updated_at
        WHERE id = :id AND status = 'DRAFT'`
	result, err := r.db.NamedExecContext(ctx, query, drive)
	if err != nil {
		return fmt.Errorf("update drive: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update drive rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves the drive between stored statuses with a
// compare-and-swap on the expected prior status. Zero rows means the drive
// changed underneath the caller.
func (r *DriveRepository) UpdateStatus(ctx context.Context, id string, from, to models.DriveStatus) error {
	const query = `UPDATE drives SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update drive status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update drive status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateApproval records the university's decision. The PENDING guard keeps
// two coordinators from both deciding the same drive.
func (r *DriveRepository) UpdateApproval(ctx context.Context, id string, status models.ApprovalStatus, notes, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE drives SET approval_status = $2, approval_notes = $3, approved_by = $4, approved_at = $5, updated_at = $5
        WHERE id = $1 AND approval_status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, id, status, notes, decidedBy, decidedAt)
	if err != nil {
		return fmt.Errorf("update drive approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update drive approval rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns drives matching the filter plus the unpaged total.
func (r *DriveRepository) List(ctx context.Context, filter models.DriveFilter) ([]models.Drive, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UniversityID != "" {
		conditions = append(conditions, fmt.Sprintf("university_id = $%d", len(args)+1))
		args = append(args, filter.UniversityID)
	}
	if filter.CompanyID != "" {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ApprovalStatus != "" {
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", len(args)+1))
		args = append(args, filter.ApprovalStatus)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR job_role ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "drive_date"
	if filter.SortBy == "created_at" || filter.SortBy == "title" {
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

	query := fmt.Sprintf(`SELECT %s FROM drives%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		driveColumns, clause, orderBy, direction, size, offset)
	var drives []models.Drive
	if err := r.db.SelectContext(ctx, &drives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list drives: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM drives" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count drives: %w", err)
	}
	return drives, total, nil
}

// UpsertCandidate adds a student to the drive roster, or refreshes the
// invited/manual flags when the row already exists.
func (r *DriveRepository) UpsertCandidate(ctx context.Context, candidate *models.DriveCandidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO drive_candidates (id, drive_id, student_id, invited, invited_at, manually_added, added_by, created_at)
        VALUES (:id, :drive_id, :student_id, :invited, :invited_at, :manually_added, :added_by, :created_at)
        ON CONFLICT (drive_id, student_id) DO UPDATE SET
        invited = EXCLUDED.invited, invited_at = EXCLUDED.invited_at,
        manually_added = drive_candidates.manually_added OR EXCLUDED.manually_added`
	if _, err := r.db.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("upsert drive candidate: %w", err)
	}
	return nil
}

// ListCandidates returns the roster for a drive.
func (r *DriveRepository) ListCandidates(ctx context.Context, driveID string) ([]models.DriveCandidate, error) {
	const query = `SELECT id, drive_id, student_id, invited, invited_at, manually_added, added_by,
        ai_score, ai_reasons, ai_analyzed_at, created_at
        FROM drive_candidates WHERE drive_id = $1 ORDER BY created_at ASC`
	var candidates []models.DriveCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, driveID); err != nil {
		return nil, fmt.Errorf("list drive candidates: %w", err)
	}
	return candidates, nil
}

// MarkInvited stamps the invitation on a roster entry.
func (r *DriveRepository) MarkInvited(ctx context.Context, driveID, studentID string, at time.Time) error {
	const query = `UPDATE drive_candidates SET invited = TRUE, invited_at = $3
        WHERE drive_id = $1 AND student_id = $2`
	result, err := r.db.ExecContext(ctx, query, driveID, studentID, at)
	if err != nil {
		return fmt.Errorf("mark invited: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark invited rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AnnotateCandidate stores the advisory screening result on a roster entry.
func (r *DriveRepository) AnnotateCandidate(ctx context.Context, driveID, studentID string, score float64, reasons []string, at time.Time) error {
	const query = `UPDATE drive_candidates SET ai_score = $3, ai_reasons = $4, ai_analyzed_at = $5
        WHERE drive_id = $1 AND student_id = $2`
	result, err := r.db.ExecContext(ctx, query, driveID, studentID, score, pq.StringArray(reasons), at)
	if err != nil {
		return fmt.Errorf("annotate candidate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate candidate rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// statisticsRow is the joined shape the statistics queries scan into.
type statisticsRow struct {
	StudentID string  `db:"student_id"`
	Invited   bool    `db:"invited"`
	Status    *string `db:"status"`
}

// StatisticsInputs loads the roster, application and offer rows the
// statistics computation is derived from. Callers recompute from these rows
// on every read so the numbers can never drift from the ground truth.
func (r *DriveRepository) StatisticsInputs(ctx context.Context, driveID string) ([]lifecycle.CandidateEntry, []lifecycle.ApplicationEntry, []lifecycle.OfferEntry, error) {
	var roster []statisticsRow
	if err := r.db.SelectContext(ctx, &roster,
		`SELECT student_id, invited, NULL AS status FROM drive_candidates WHERE drive_id = $1`, driveID); err != nil {
		return nil, nil, nil, fmt.Errorf("statistics roster: %w", err)
	}
	candidates := make([]lifecycle.CandidateEntry, 0, len(roster))
	for _, row := range roster {
		candidates = append(candidates, lifecycle.CandidateEntry{StudentID: row.StudentID, Invited: row.Invited})
	}

	var appRows []statisticsRow
	if err := r.db.SelectContext(ctx, &appRows,
		`SELECT student_id, FALSE AS invited, status FROM applications WHERE drive_id = $1`, driveID); err != nil {
		return nil, nil, nil, fmt.Errorf("statistics applications: %w", err)
	}
	applications := make([]lifecycle.ApplicationEntry, 0, len(appRows))
	for _, row := range appRows {
		if row.Status == nil {
			continue
		}
		applications = append(applications, lifecycle.ApplicationEntry{Status: lifecycle.ApplicationStatus(*row.Status)})
	}

	var offerRows []statisticsRow
	if err := r.db.SelectContext(ctx, &offerRows,
		`SELECT student_id, FALSE AS invited, status FROM offers WHERE drive_id = $1`, driveID); err != nil {
		return nil, nil, nil, fmt.Errorf("statistics offers: %w", err)
	}
	offers := make([]lifecycle.OfferEntry, 0, len(offerRows))
	for _, row := range offerRows {
		if row.Status == nil {
			continue
		}
		offers = append(offers, lifecycle.OfferEntry{Status: lifecycle.OfferStatus(*row.Status)})
	}

	return candidates, applications, offers, nil
}
