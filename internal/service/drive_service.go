package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type driveRepository interface {
	FindByID(ctx context.Context, id string) (*models.Drive, error)
	FindDetailByID(ctx context.Context, id string) (*models.DriveDetail, error)
	Create(ctx context.Context, drive *models.Drive) error
	Update(ctx context.Context, drive *models.Drive) error
	UpdateStatus(ctx context.Context, id string, from, to models.DriveStatus) error
	UpdateApproval(ctx context.Context, id string, status models.ApprovalStatus, notes, decidedBy string, decidedAt time.Time) error
	List(ctx context.Context, filter models.DriveFilter) ([]models.Drive, int, error)
	UpsertCandidate(ctx context.Context, candidate *models.DriveCandidate) error
	ListCandidates(ctx context.Context, driveID string) ([]models.DriveCandidate, error)
	MarkInvited(ctx context.Context, driveID, studentID string, at time.Time) error
	StatisticsInputs(ctx context.Context, driveID string) ([]lifecycle.CandidateEntry, []lifecycle.ApplicationEntry, []lifecycle.OfferEntry, error)
}

type driveStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// statisticsCache is the cache-aside pair used for derived statistics.
type statisticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateDriveRequest is the payload for creating a drive.
type CreateDriveRequest struct {
	Title          string   `json:"title" validate:"required"`
	CompanyID      string   `json:"company_id" validate:"required"`
	UniversityID   string   `json:"university_id" validate:"required"`
	JobRole        string   `json:"job_role" validate:"required"`
	JobDescription string   `json:"job_description"`
	JobType        string   `json:"job_type" validate:"required,oneof=FULL_TIME INTERNSHIP INTERNSHIP_PPO"`
	WorkMode       string   `json:"work_mode" validate:"omitempty,oneof=ONSITE REMOTE HYBRID"`
	SkillsRequired []string `json:"skills_required"`
	Locations      []string `json:"locations"`

	SalaryMin float64 `json:"salary_min" validate:"gte=0"`
	SalaryMax float64 `json:"salary_max" validate:"gtefield=SalaryMin"`
	Currency  string  `json:"currency" validate:"required,len=3"`

	MinimumCGPA            float64  `json:"minimum_cgpa" validate:"gte=0,lte=10"`
	AllowedCurrentBacklogs int      `json:"allowed_current_backlogs" validate:"gte=0"`
	AllowedHistoryBacklogs int      `json:"allowed_history_backlogs" validate:"gte=0"`
	Courses                []string `json:"courses"`
	Departments            []string `json:"departments"`
	Batches                []string `json:"batches"`
	GenderPreference       string   `json:"gender_preference" validate:"omitempty,oneof=ANY MALE FEMALE"`

	RegistrationStart time.Time  `json:"registration_start" validate:"required"`
	RegistrationEnd   time.Time  `json:"registration_end" validate:"required,gtfield=RegistrationStart"`
	DriveDate         time.Time  `json:"drive_date" validate:"required"`
	ResultDate        *time.Time `json:"result_date"`

	AllowSelfRegistration bool `json:"allow_self_registration"`
	SendNotifications     bool `json:"send_notifications"`
}

// ApprovalRequest is the university's decision on a drive.
type ApprovalRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// DriveService manages drives from draft through completion. Stored status
// only tracks the coarse lifecycle; the fine-grained phase is always derived
// from the timeline at read time.
type DriveService struct {
	drives    driveRepository
	students  driveStudentLister
	cache     statisticsCache
	notifier  lifecycleNotifier
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
	now       func() time.Time
}

// NewDriveService constructs a DriveService.
func NewDriveService(drives driveRepository, students driveStudentLister, cache statisticsCache, notifier lifecycleNotifier, validate *validator.Validate, logger *zap.Logger, statsTTL time.Duration) *DriveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if statsTTL <= 0 {
		statsTTL = time.Minute
	}
	return &DriveService{
		drives:    drives,
		students:  students,
		cache:     cache,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		statsTTL:  statsTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new drive in DRAFT pending university approval.
func (s *DriveService) Create(ctx context.Context, actor models.Actor, req CreateDriveRequest) (*models.Drive, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drive payload")
	}
	if !req.DriveDate.After(req.RegistrationEnd) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "drive date must be after registration closes")
	}

	gender := req.GenderPreference
	if gender == "" {
		gender = string(lifecycle.GenderAny)
	}
	workMode := req.WorkMode
	if workMode == "" {
		workMode = "ONSITE"
	}

	drive := &models.Drive{
		Title:          req.Title,
		CompanyID:      req.CompanyID,
		UniversityID:   req.UniversityID,
		JobRole:        req.JobRole,
		JobDescription: req.JobDescription,
		JobType:        req.JobType,
		WorkMode:       workMode,
		SkillsRequired: req.SkillsRequired,
		Locations:      req.Locations,

		SalaryMin: req.SalaryMin,
		SalaryMax: req.SalaryMax,
		Currency:  req.Currency,

		MinimumCGPA:            req.MinimumCGPA,
		AllowedCurrentBacklogs: req.AllowedCurrentBacklogs,
		AllowedHistoryBacklogs: req.AllowedHistoryBacklogs,
		Courses:                req.Courses,
		Departments:            req.Departments,
		Batches:                req.Batches,
		GenderPreference:       gender,

		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		DriveDate:         req.DriveDate,
		ResultDate:        req.ResultDate,

		Status:         models.DriveStatusDraft,
		ApprovalStatus: models.ApprovalPending,

		AllowSelfRegistration: req.AllowSelfRegistration,
		SendNotifications:     req.SendNotifications,
		CreatedBy:             actor.UserID,
	}

	if err := s.drives.Create(ctx, drive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create drive")
	}
	return drive, nil
}

// Update edits a DRAFT drive. The repository refuses the write once the
// drive left draft.
func (s *DriveService) Update(ctx context.Context, actor models.Actor, driveID string, req CreateDriveRequest) (*models.Drive, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drive payload")
	}

	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status != models.DriveStatusDraft {
		return nil, appErrors.InvalidTransition(string(drive.Status), string(models.DriveStatusDraft))
	}

	drive.Title = req.Title
	drive.JobRole = req.JobRole
	drive.JobDescription = req.JobDescription
	drive.JobType = req.JobType
	if req.WorkMode != "" {
		drive.WorkMode = req.WorkMode
	}
	drive.SkillsRequired = req.SkillsRequired
	drive.Locations = req.Locations
	drive.SalaryMin = req.SalaryMin
	drive.SalaryMax = req.SalaryMax
	drive.Currency = req.Currency
	drive.MinimumCGPA = req.MinimumCGPA
	drive.AllowedCurrentBacklogs = req.AllowedCurrentBacklogs
	drive.AllowedHistoryBacklogs = req.AllowedHistoryBacklogs
	drive.Courses = req.Courses
	drive.Departments = req.Departments
	drive.Batches = req.Batches
	if req.GenderPreference != "" {
		drive.GenderPreference = req.GenderPreference
	}
	drive.RegistrationStart = req.RegistrationStart
	drive.RegistrationEnd = req.RegistrationEnd
	drive.DriveDate = req.DriveDate
	drive.ResultDate = req.ResultDate
	drive.AllowSelfRegistration = req.AllowSelfRegistration
	drive.SendNotifications = req.SendNotifications

	if err := s.drives.Update(ctx, drive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "drive was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update drive")
	}
	return drive, nil
}

// Approve records the university's decision on a pending drive.
func (s *DriveService) Approve(ctx context.Context, actor models.Actor, driveID string, req ApprovalRequest) (*models.Drive, error) {
	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.ApprovalStatus != models.ApprovalPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "drive approval already decided")
	}

	status := models.ApprovalApproved
	if !req.Approve {
		status = models.ApprovalRejected
	}
	now := s.now()
	if err := s.drives.UpdateApproval(ctx, driveID, status, req.Notes, actor.UserID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "drive approval already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}

	drive.ApprovalStatus = status
	drive.ApprovalNotes = &req.Notes
	drive.ApprovedBy = &actor.UserID
	drive.ApprovedAt = &now
	return drive, nil
}

// Publish activates an approved draft so students can apply.
func (s *DriveService) Publish(ctx context.Context, actor models.Actor, driveID string) (*models.Drive, error) {
	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.ApprovalStatus != models.ApprovalApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "drive has not been approved by the university")
	}
	if err := s.transitionStatus(ctx, driveID, drive.Status, models.DriveStatusActive, models.DriveStatusDraft); err != nil {
		return nil, err
	}
	drive.Status = models.DriveStatusActive
	s.logger.Info("drive published", zap.String("drive_id", driveID), zap.String("by", actor.String()))
	return drive, nil
}

// Complete closes out an active drive after results are declared.
func (s *DriveService) Complete(ctx context.Context, actor models.Actor, driveID string) (*models.Drive, error) {
	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if err := s.transitionStatus(ctx, driveID, drive.Status, models.DriveStatusCompleted, models.DriveStatusActive); err != nil {
		return nil, err
	}
	drive.Status = models.DriveStatusCompleted
	return drive, nil
}

// Cancel aborts a draft or active drive.
func (s *DriveService) Cancel(ctx context.Context, actor models.Actor, driveID string) (*models.Drive, error) {
	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status != models.DriveStatusDraft && drive.Status != models.DriveStatusActive {
		return nil, appErrors.InvalidTransition(string(drive.Status), string(models.DriveStatusCancelled))
	}
	if err := s.transitionStatus(ctx, driveID, drive.Status, models.DriveStatusCancelled, drive.Status); err != nil {
		return nil, err
	}
	drive.Status = models.DriveStatusCancelled
	return drive, nil
}

// Get returns the drive with its derived phase filled in.
func (s *DriveService) Get(ctx context.Context, driveID string) (*models.DriveDetail, error) {
	detail, err := s.drives.FindDetailByID(ctx, driveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drive")
	}
	now := s.now()
	timeline := detail.TimelineView()
	detail.Phase = timeline.Phase(now)
	detail.RegistrationPhase = timeline.RegistrationPhase(now)
	return detail, nil
}

// List returns drives matching the filter.
func (s *DriveService) List(ctx context.Context, filter models.DriveFilter) ([]models.Drive, int, error) {
	drives, total, err := s.drives.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drives")
	}
	return drives, total, nil
}

// BuildRoster evaluates every active student of the drive's university
// against the criteria and records the eligible ones as candidates.
// Re-running is harmless: the roster upsert is idempotent.
func (s *DriveService) BuildRoster(ctx context.Context, actor models.Actor, driveID string, invite bool) (int, error) {
	drive, err := s.loadDrive(ctx, driveID)
	if err != nil {
		return 0, err
	}

	criteria := drive.Criteria()
	now := s.now()
	added := 0
	page := 1
	for {
		students, total, err := s.students.List(ctx, models.StudentFilter{
			UniversityID: drive.UniversityID,
			Page:         page,
			PageSize:     100,
		})
		if err != nil {
			return added, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		for i := range students {
			student := students[i]
			if !student.Active {
				continue
			}
			result := lifecycle.Evaluate(student.Snapshot(), criteria)
			if !result.Eligible {
				continue
			}
			candidate := &models.DriveCandidate{
				DriveID:   driveID,
				StudentID: student.ID,
				Invited:   invite,
			}
			if invite {
				candidate.InvitedAt = &now
			}
			if err := s.drives.UpsertCandidate(ctx, candidate); err != nil {
				return added, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record candidate")
			}
			added++
		}
		if page*100 >= total || len(students) == 0 {
			break
		}
		page++
	}

	s.logger.Info("drive roster built",
		zap.String("drive_id", driveID),
		zap.Int("eligible", added),
		zap.Bool("invited", invite),
		zap.String("by", actor.String()))
	return added, nil
}

// AddCandidate manually places a student on the roster regardless of the
// automated evaluation, recording who overrode it.
func (s *DriveService) AddCandidate(ctx context.Context, actor models.Actor, driveID, studentID string) error {
	if _, err := s.loadDrive(ctx, driveID); err != nil {
		return err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	candidate := &models.DriveCandidate{
		DriveID:       driveID,
		StudentID:     studentID,
		ManuallyAdded: true,
		AddedBy:       &actor.UserID,
	}
	if err := s.drives.UpsertCandidate(ctx, candidate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add candidate")
	}
	return nil
}

// Candidates returns the drive roster.
func (s *DriveService) Candidates(ctx context.Context, driveID string) ([]models.DriveCandidate, error) {
	if _, err := s.loadDrive(ctx, driveID); err != nil {
		return nil, err
	}
	candidates, err := s.drives.ListCandidates(ctx, driveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	return candidates, nil
}

// Statistics recomputes the drive's roll-up counts from the live rows,
// behind a short-TTL cache. The cache is a staleness bound, not a source of
// truth: every miss recomputes from scratch.
func (s *DriveService) Statistics(ctx context.Context, driveID string) (*lifecycle.Statistics, error) {
	if _, err := s.loadDrive(ctx, driveID); err != nil {
		return nil, err
	}

	cacheKey := "drives:stats:" + driveID
	if s.cache != nil {
		var cached lifecycle.Statistics
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("statistics cache read failed", zap.Error(err))
		}
	}

	candidates, applications, offers, err := s.drives.StatisticsInputs(ctx, driveID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics inputs")
	}
	stats := lifecycle.ComputeStatistics(candidates, applications, offers)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Error(err))
		}
	}
	return &stats, nil
}

func (s *DriveService) transitionStatus(ctx context.Context, driveID string, current, to, expected models.DriveStatus) error {
	if current != expected {
		return appErrors.InvalidTransition(string(current), string(to))
	}
	if err := s.drives.UpdateStatus(ctx, driveID, expected, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConcurrentModification, "drive was modified by another request")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update drive status")
	}
	return nil
}

func (s *DriveService) loadDrive(ctx context.Context, id string) (*models.Drive, error) {
	drive, err := s.drives.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drive")
	}
	return drive, nil
}
