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

type offerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Offer, error)
	HasPendingForApplication(ctx context.Context, applicationID string) (bool, error)
	Create(ctx context.Context, offer *models.Offer) error
	UpdateStatus(ctx context.Context, offer *models.Offer, from lifecycle.OfferStatus) error
	List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Offer, error)
}

type offerApplicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, app *models.Application, from lifecycle.ApplicationStatus) error
}

type offerStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	MarkPlaced(ctx context.Context, studentID, companyID string, pkg float64, at time.Time) error
}

type offerDriveReader interface {
	FindByID(ctx context.Context, id string) (*models.Drive, error)
}

// IssueOfferRequest is the payload for extending an offer.
type IssueOfferRequest struct {
	ApplicationID string  `json:"application_id" validate:"required"`
	Package       float64 `json:"package" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
	JobRole       string  `json:"job_role" validate:"required"`
	ValidHours    int     `json:"valid_hours" validate:"omitempty,min=1"`
}

// RespondOfferRequest is the student's answer to a pending offer.
type RespondOfferRequest struct {
	Action        lifecycle.OfferAction `json:"action" validate:"required,oneof=ACCEPT REJECT COUNTER"`
	Message       string                `json:"message"`
	CounterAmount *float64              `json:"counter_amount" validate:"omitempty,gt=0"`
	CounterNote   *string               `json:"counter_note"`
}

// OfferService issues offers against selected applications and applies the
// student's response. Expiry is lazy: nothing fires when the deadline
// passes, the terminal status is written the next time the offer is touched
// (or by the background sweep).
type OfferService struct {
	offers    offerRepository
	apps      offerApplicationRepository
	students  offerStudentRepository
	drives    offerDriveReader
	notifier  lifecycleNotifier
	cache     statisticsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	validity  time.Duration
	now       func() time.Time
}

// NewOfferService constructs an OfferService. defaultValidity bounds how
// long issued offers stay open when the request does not say.
func NewOfferService(offers offerRepository, apps offerApplicationRepository, students offerStudentRepository, drives offerDriveReader, notifier lifecycleNotifier, cache statisticsInvalidator, validate *validator.Validate, logger *zap.Logger, defaultValidity time.Duration) *OfferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if defaultValidity <= 0 {
		defaultValidity = 72 * time.Hour
	}
	return &OfferService{
		offers:    offers,
		apps:      apps,
		students:  students,
		drives:    drives,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		validity:  defaultValidity,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Issue extends an offer to a selected application and moves the application
// to OFFER_ISSUED. When the previous offer resolved without an acceptance
// (countered, expired, rejected) the application is already at OFFER_ISSUED
// and a fresh offer may be issued in its place. The application swap runs
// first: if it loses a race there is no orphaned offer row to clean up.
func (s *OfferService) Issue(ctx context.Context, actor models.Actor, req IssueOfferRequest) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer payload")
	}

	app, err := s.apps.FindByID(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	pending, err := s.offers.HasPendingForApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending offers")
	}
	if err := lifecycle.ValidateOfferCreation(app.Status, pending); err != nil {
		return nil, err
	}

	now := s.now()
	from := app.Status
	app.Status = lifecycle.ApplicationOfferIssued
	if err := app.AppendHistory(lifecycle.StatusHistoryEntry{
		Status:    lifecycle.ApplicationOfferIssued,
		Timestamp: now,
		Actor:     actor.String(),
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}
	if err := s.apps.UpdateStatus(ctx, app, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "application was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}

	validity := s.validity
	if req.ValidHours > 0 {
		validity = time.Duration(req.ValidHours) * time.Hour
	}
	offer := &models.Offer{
		ApplicationID: app.ID,
		StudentID:     app.StudentID,
		DriveID:       app.DriveID,
		Status:        lifecycle.OfferPending,
		Package:       req.Package,
		Currency:      req.Currency,
		JobRole:       req.JobRole,
		IssuedBy:      actor.UserID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(validity),
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offer")
	}

	s.invalidateStatistics(ctx, app.DriveID)
	if s.notifier != nil {
		s.notifier.OfferStatusChanged(offer, actor)
		s.notifier.ApplicationStatusChanged(app, actor)
	}
	return offer, nil
}

// Respond applies the student's decision to a pending offer. A response
// past the deadline persists EXPIRED and returns the expiry error; the
// student's intended action is discarded.
func (s *OfferService) Respond(ctx context.Context, actor models.Actor, offerID string, req RespondOfferRequest) (*models.Offer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	if req.Action == lifecycle.OfferActionCounter && req.CounterAmount == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "counter_amount is required for a counter offer")
	}

	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleStudent {
		student, err := s.students.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if student.ID != offer.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "offer belongs to another student")
		}
	}

	now := s.now()
	outcome, validationErr := lifecycle.ValidateOfferResponse(offer.Status, req.Action, offer.ExpiresAt, now)
	if outcome.Expired {
		if err := s.persistExpiry(ctx, offer, now); err != nil {
			return nil, err
		}
		return nil, validationErr
	}
	if validationErr != nil {
		return nil, validationErr
	}

	from := offer.Status
	offer.Status = outcome.Next
	offer.RespondedAt = &now
	if req.Message != "" {
		offer.ResponseMessage = &req.Message
	}
	if req.Action == lifecycle.OfferActionCounter {
		offer.CounterAmount = req.CounterAmount
		offer.CounterNote = req.CounterNote
	}

	if err := s.offers.UpdateStatus(ctx, offer, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "offer was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offer")
	}

	switch outcome.Next {
	case lifecycle.OfferAccepted:
		s.settleApplication(ctx, actor, offer, lifecycle.ApplicationOfferAccepted)
		s.markStudentPlaced(ctx, offer)
	case lifecycle.OfferRejected:
		s.settleApplication(ctx, actor, offer, lifecycle.ApplicationOfferDeclined)
	}

	s.invalidateStatistics(ctx, offer.DriveID)
	if s.notifier != nil {
		s.notifier.OfferStatusChanged(offer, actor)
	}
	return offer, nil
}

// Get returns one offer, persisting lazy expiry when the read finds a
// pending offer past its deadline.
func (s *OfferService) Get(ctx context.Context, offerID string) (*models.Offer, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if offer.Status == lifecycle.OfferPending && now.After(offer.ExpiresAt) {
		if err := s.persistExpiry(ctx, offer, now); err != nil {
			return nil, err
		}
	}
	return offer, nil
}

// List returns offers matching the filter.
func (s *OfferService) List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error) {
	offers, total, err := s.offers.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offers")
	}
	return offers, total, nil
}

// ExpireDue sweeps pending offers past their deadline and persists the
// terminal status. Losing the swap to a concurrent response is fine; the
// sweep just moves on.
func (s *OfferService) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.offers.ListExpirable(ctx, now, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expirable offers")
	}

	expired := 0
	for i := range due {
		offer := due[i]
		offer.Status = lifecycle.OfferExpired
		if err := s.offers.UpdateStatus(ctx, &offer, lifecycle.OfferPending); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return expired, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire offer")
		}
		expired++
		s.invalidateStatistics(ctx, offer.DriveID)
		if s.notifier != nil {
			s.notifier.OfferStatusChanged(&offer, models.Actor{})
		}
	}
	if expired > 0 {
		s.logger.Info("expired stale offers", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *OfferService) persistExpiry(ctx context.Context, offer *models.Offer, now time.Time) error {
	from := offer.Status
	offer.Status = lifecycle.OfferExpired
	if err := s.offers.UpdateStatus(ctx, offer, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The sweep or another reader already expired it.
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire offer")
	}
	s.invalidateStatistics(ctx, offer.DriveID)
	if s.notifier != nil {
		s.notifier.OfferStatusChanged(offer, models.Actor{})
	}
	return nil
}

// settleApplication mirrors the offer outcome onto the owning application.
// A lost swap here is logged, not surfaced: the offer response already
// committed and the reconciliation sweep picks up the application.
func (s *OfferService) settleApplication(ctx context.Context, actor models.Actor, offer *models.Offer, to lifecycle.ApplicationStatus) {
	app, err := s.apps.FindByID(ctx, offer.ApplicationID)
	if err != nil {
		s.logger.Error("failed to load application after offer response",
			zap.String("offer_id", offer.ID), zap.Error(err))
		return
	}
	from := app.Status
	if err := lifecycle.ValidateApplicationTransition(from, to); err != nil {
		s.logger.Warn("application not in expected status after offer response",
			zap.String("application_id", app.ID),
			zap.String("status", string(from)))
		return
	}
	app.Status = to
	if err := app.AppendHistory(lifecycle.StatusHistoryEntry{
		Status:    to,
		Timestamp: s.now(),
		Actor:     actor.String(),
	}); err != nil {
		s.logger.Error("failed to encode application history", zap.Error(err))
		return
	}
	if err := s.apps.UpdateStatus(ctx, app, from); err != nil {
		s.logger.Error("failed to settle application after offer response",
			zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	if s.notifier != nil {
		s.notifier.ApplicationStatusChanged(app, actor)
	}
}

func (s *OfferService) markStudentPlaced(ctx context.Context, offer *models.Offer) {
	drive, err := s.drives.FindByID(ctx, offer.DriveID)
	if err != nil {
		s.logger.Error("failed to load drive for placement record",
			zap.String("offer_id", offer.ID), zap.Error(err))
		return
	}
	if err := s.students.MarkPlaced(ctx, offer.StudentID, drive.CompanyID, offer.Package, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("student already marked placed", zap.String("student_id", offer.StudentID))
			return
		}
		s.logger.Error("failed to mark student placed",
			zap.String("student_id", offer.StudentID), zap.Error(err))
	}
}

func (s *OfferService) loadOffer(ctx context.Context, id string) (*models.Offer, error) {
	offer, err := s.offers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offer")
	}
	return offer, nil
}

func (s *OfferService) invalidateStatistics(ctx context.Context, driveID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "drives:stats:"+driveID); err != nil {
		s.logger.Warn("failed to invalidate drive statistics cache", zap.String("drive_id", driveID), zap.Error(err))
	}
}
