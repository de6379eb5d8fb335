package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/pkg/jobs"
)

// Notification event types.
const (
	EventApplicationStatusChanged = "application.status_changed"
	EventOfferStatusChanged       = "offer.status_changed"
)

// NotificationEvent is the payload dispatched to the worker pool.
type NotificationEvent struct {
	Type          string    `json:"type"`
	StudentID     string    `json:"student_id"`
	DriveID       string    `json:"drive_id"`
	ApplicationID string    `json:"application_id,omitempty"`
	OfferID       string    `json:"offer_id,omitempty"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotificationService fans lifecycle events out to a background worker pool.
// Delivery is strictly best effort: a full buffer or a failed handler never
// propagates back into the lifecycle write that triggered it.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its queue. The handler is
// where channel integrations (email, push) plug in; today it logs the event
// and returns.
func NewNotificationService(logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// ApplicationStatusChanged enqueues an application event.
func (s *NotificationService) ApplicationStatusChanged(app *models.Application, actor models.Actor) {
	s.enqueue(NotificationEvent{
		Type:          EventApplicationStatusChanged,
		StudentID:     app.StudentID,
		DriveID:       app.DriveID,
		ApplicationID: app.ID,
		Status:        string(app.Status),
		Actor:         actor.String(),
		OccurredAt:    time.Now().UTC(),
	})
}

// OfferStatusChanged enqueues an offer event.
func (s *NotificationService) OfferStatusChanged(offer *models.Offer, actor models.Actor) {
	s.enqueue(NotificationEvent{
		Type:       EventOfferStatusChanged,
		StudentID:  offer.StudentID,
		DriveID:    offer.DriveID,
		OfferID:    offer.ID,
		Status:     string(offer.Status),
		Actor:      actor.String(),
		OccurredAt: time.Now().UTC(),
	})
}

func (s *NotificationService) enqueue(event NotificationEvent) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    event.Type,
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dropped",
			zap.String("type", event.Type),
			zap.String("student_id", event.StudentID),
			zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(NotificationEvent)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("notification dispatched",
		zap.String("type", event.Type),
		zap.String("student_id", event.StudentID),
		zap.String("drive_id", event.DriveID),
		zap.String("status", event.Status),
		zap.String("actor", event.Actor))
	return nil
}
