package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByStudentAndDrive(ctx context.Context, studentID, driveID string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, app *models.Application, from lifecycle.ApplicationStatus) error
	UpdateRounds(ctx context.Context, app *models.Application, current lifecycle.ApplicationStatus) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

type applicationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type applicationDriveReader interface {
	FindByID(ctx context.Context, id string) (*models.Drive, error)
}

// lifecycleNotifier receives fire-and-forget events after successful
// lifecycle writes. Implementations must never block the request path.
type lifecycleNotifier interface {
	ApplicationStatusChanged(app *models.Application, actor models.Actor)
	OfferStatusChanged(offer *models.Offer, actor models.Actor)
}

// statisticsInvalidator drops cached derived payloads after a write.
type statisticsInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ApplyRequest is the payload for submitting an application.
type ApplyRequest struct {
	DriveID string `json:"drive_id" validate:"required"`
}

// TransitionRequest moves an application between review statuses.
type TransitionRequest struct {
	Status lifecycle.ApplicationStatus `json:"status" validate:"required"`
	Note   string                      `json:"note"`
}

// WithdrawRequest is the payload for a student-initiated withdrawal.
type WithdrawRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RoundOutcomeRequest records a selection-round result.
type RoundOutcomeRequest struct {
	Round   int    `json:"round" validate:"required,min=1"`
	Name    string `json:"name" validate:"required"`
	Outcome string `json:"outcome" validate:"required,oneof=cleared not_cleared absent"`
	Notes   string `json:"notes"`
}

// ApplicationService drives applications through their lifecycle. All status
// writes go through the repository's compare-and-swap; when the swap loses a
// race the caller gets a conflict error and decides whether to re-read and
// retry. The service itself never retries.
type ApplicationService struct {
	apps      applicationRepository
	students  applicationStudentReader
	drives    applicationDriveReader
	notifier  lifecycleNotifier
	cache     statisticsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(apps applicationRepository, students applicationStudentReader, drives applicationDriveReader, notifier lifecycleNotifier, cache statisticsInvalidator, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationService{
		apps:      apps,
		students:  students,
		drives:    drives,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Apply submits the acting student's application to a drive. Eligibility and
// the registration window are both enforced here; an ineligible student gets
// the full list of failed rules, not just the first.
func (s *ApplicationService) Apply(ctx context.Context, actor models.Actor, req ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	student, err := s.students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	drive, err := s.drives.FindByID(ctx, req.DriveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drive")
	}

	if drive.Status != models.DriveStatusActive {
		return nil, appErrors.Clone(appErrors.ErrRegistrationClosed, "drive is not accepting applications")
	}
	if !drive.AllowSelfRegistration {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "drive does not allow self registration")
	}

	now := s.now()
	result, err := lifecycle.ValidateApplicationCreation(student.Snapshot(), drive.Criteria(), drive.TimelineView(), now)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotEligible) {
			s.logger.Info("application rejected by eligibility rules",
				zap.String("student_id", student.ID),
				zap.String("drive_id", drive.ID),
				zap.Strings("failed_rules", ruleNames(result.FailedRules)))
		}
		return nil, err
	}

	if _, err := s.apps.FindByStudentAndDrive(ctx, student.ID, drive.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already exists for this drive")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}

	app := &models.Application{
		StudentID: student.ID,
		DriveID:   drive.ID,
		Status:    lifecycle.ApplicationApplied,
		AppliedAt: now,
	}
	if err := app.AppendHistory(lifecycle.StatusHistoryEntry{
		Status:    lifecycle.ApplicationApplied,
		Timestamp: now,
		Actor:     actor.String(),
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}

	if err := s.apps.Create(ctx, app); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application already exists for this drive")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.invalidateStatistics(ctx, drive.ID)
	if s.notifier != nil {
		s.notifier.ApplicationStatusChanged(app, actor)
	}
	return app, nil
}

// EligibilityPreview answers "could the acting student apply right now, and
// if not, why". Nothing is written.
type EligibilityPreview struct {
	DriveID      string                      `json:"drive_id"`
	Registration lifecycle.RegistrationPhase `json:"registration"`
	Eligible     bool                        `json:"eligible"`
	FailedRules  []lifecycle.RuleName        `json:"failed_rules,omitempty"`
}

// CheckEligibility evaluates the acting student against a drive's criteria
// without creating anything. Every failed rule is reported, same as Apply.
func (s *ApplicationService) CheckEligibility(ctx context.Context, actor models.Actor, driveID string) (*EligibilityPreview, error) {
	student, err := s.students.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	drive, err := s.drives.FindByID(ctx, driveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drive")
	}

	result := lifecycle.Evaluate(student.Snapshot(), drive.Criteria())
	return &EligibilityPreview{
		DriveID:      drive.ID,
		Registration: drive.TimelineView().RegistrationPhase(s.now()),
		Eligible:     result.Eligible,
		FailedRules:  result.FailedRules,
	}, nil
}

// Transition moves an application through the review pipeline. The target
// status must be reachable from the current one; the write is guarded on the
// status the caller read, so a concurrent reviewer surfaces as a conflict.
func (s *ApplicationService) Transition(ctx context.Context, actor models.Actor, applicationID string, req TransitionRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	if !lifecycle.ValidApplicationStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	from := app.Status
	if err := lifecycle.ValidateApplicationTransition(from, req.Status); err != nil {
		return nil, err
	}

	now := s.now()
	app.Status = req.Status
	if err := app.AppendHistory(lifecycle.StatusHistoryEntry{
		Status:    req.Status,
		Timestamp: now,
		Actor:     actor.String(),
		Note:      req.Note,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}

	if err := s.apps.UpdateStatus(ctx, app, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "application was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}

	s.invalidateStatistics(ctx, app.DriveID)
	if s.notifier != nil {
		s.notifier.ApplicationStatusChanged(app, actor)
	}
	return app, nil
}

// Withdraw is the student-initiated exit. The transition table already
// refuses withdrawal once an offer is issued, so a student facing an offer
// must respond to it instead.
func (s *ApplicationService) Withdraw(ctx context.Context, actor models.Actor, applicationID string, req WithdrawRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleStudent {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if student.ID != app.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
		}
	}

	from := app.Status
	if err := lifecycle.ValidateApplicationTransition(from, lifecycle.ApplicationWithdrawn); err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.String()
	app.Status = lifecycle.ApplicationWithdrawn
	app.WithdrawnBy = &actorID
	app.WithdrawnAt = &now
	app.WithdrawalReason = &req.Reason
	if err := app.AppendHistory(lifecycle.StatusHistoryEntry{
		Status:    lifecycle.ApplicationWithdrawn,
		Timestamp: now,
		Actor:     actorID,
		Note:      req.Reason,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}

	if err := s.apps.UpdateStatus(ctx, app, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "application was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw application")
	}

	s.invalidateStatistics(ctx, app.DriveID)
	if s.notifier != nil {
		s.notifier.ApplicationStatusChanged(app, actor)
	}
	return app, nil
}

// RecordRound appends a selection-round outcome without changing status.
func (s *ApplicationService) RecordRound(ctx context.Context, actor models.Actor, applicationID string, req RoundOutcomeRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}

	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if lifecycle.ApplicationTerminal(app.Status) {
		return nil, appErrors.InvalidTransition(string(app.Status), string(app.Status))
	}

	if err := app.AppendRound(models.RoundOutcome{
		Round:      req.Round,
		Name:       req.Name,
		Outcome:    req.Outcome,
		Notes:      req.Notes,
		RecordedAt: s.now(),
		RecordedBy: actor.String(),
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode round outcomes")
	}

	if err := s.apps.UpdateRounds(ctx, app, app.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "application was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record round outcome")
	}
	return app, nil
}

// Get returns one application.
func (s *ApplicationService) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return s.loadApplication(ctx, applicationID)
}

// List returns applications matching the filter.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, total, nil
}

func (s *ApplicationService) loadApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func (s *ApplicationService) invalidateStatistics(ctx context.Context, driveID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "drives:stats:"+driveID); err != nil {
		s.logger.Warn("failed to invalidate drive statistics cache", zap.String("drive_id", driveID), zap.Error(err))
	}
}

func ruleNames(rules []lifecycle.RuleName) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, string(r))
	}
	return names
}
