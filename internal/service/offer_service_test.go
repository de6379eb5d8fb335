package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type offerRepoStub struct {
	offers   map[string]*models.Offer
	seq      int
	conflict bool
}

func newOfferRepoStub() *offerRepoStub {
	return &offerRepoStub{offers: make(map[string]*models.Offer)}
}

func (s *offerRepoStub) FindByID(ctx context.Context, id string) (*models.Offer, error) {
	if offer, ok := s.offers[id]; ok {
		copied := *offer
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *offerRepoStub) HasPendingForApplication(ctx context.Context, applicationID string) (bool, error) {
	for _, offer := range s.offers {
		if offer.ApplicationID == applicationID && offer.Status == lifecycle.OfferPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *offerRepoStub) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == "" {
		s.seq++
		offer.ID = fmt.Sprintf("offer-%d", s.seq)
	}
	stored := *offer
	s.offers[offer.ID] = &stored
	return nil
}

func (s *offerRepoStub) UpdateStatus(ctx context.Context, offer *models.Offer, from lifecycle.OfferStatus) error {
	if s.conflict {
		return sql.ErrNoRows
	}
	stored, ok := s.offers[offer.ID]
	if !ok || stored.Status != from {
		return sql.ErrNoRows
	}
	*stored = *offer
	return nil
}

func (s *offerRepoStub) List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error) {
	return nil, 0, nil
}

func (s *offerRepoStub) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Offer, error) {
	var due []models.Offer
	for _, offer := range s.offers {
		if offer.Status == lifecycle.OfferPending && offer.ExpiresAt.Before(now) {
			due = append(due, *offer)
		}
	}
	return due, nil
}

func newOfferTestService(t *testing.T, now time.Time) (*OfferService, *offerRepoStub, *applicationRepoStub, *studentReaderStub, *notifierStub) {
	t.Helper()
	offers := newOfferRepoStub()
	apps := newApplicationRepoStub()
	students := newStudentReaderStub(testStudent())
	drives := &driveReaderStub{drives: map[string]*models.Drive{"drive-1": testDrive(now)}}
	notifier := &notifierStub{}
	svc := NewOfferService(offers, apps, students, drives, notifier, &cacheStub{}, nil, nil, 72*time.Hour)
	svc.now = func() time.Time { return now }
	return svc, offers, apps, students, notifier
}

func TestOfferServiceIssue(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, apps, _, notifier := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationSelected}

	actor := models.Actor{UserID: "hr-1", Role: models.RoleCompany}
	offer, err := svc.Issue(context.Background(), actor, IssueOfferRequest{
		ApplicationID: "app-1",
		Package:       1200000,
		Currency:      "INR",
		JobRole:       "Software Engineer",
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferPending, offer.Status)
	assert.Equal(t, now.Add(72*time.Hour), offer.ExpiresAt)

	// The owning application moved with the issuance.
	app, err := apps.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.ApplicationOfferIssued, app.Status)
	require.Len(t, offers.offers, 1)
	assert.Len(t, notifier.offerEvents, 1)
}

func TestOfferServiceIssueRequiresSelected(t *testing.T) {
	now := time.Now().UTC()
	svc, _, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationShortlisted}

	_, err := svc.Issue(context.Background(), models.Actor{UserID: "hr-1", Role: models.RoleCompany}, IssueOfferRequest{
		ApplicationID: "app-1", Package: 900000, Currency: "INR", JobRole: "Analyst",
	})
	require.ErrorIs(t, err, appErrors.ErrApplicationNotSelected)
}

func TestOfferServiceIssueRejectsDuplicatePending(t *testing.T) {
	now := time.Now().UTC()
	svc, offers, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationSelected}
	offers.offers["offer-1"] = &models.Offer{ID: "offer-1", ApplicationID: "app-1", Status: lifecycle.OfferPending}

	_, err := svc.Issue(context.Background(), models.Actor{UserID: "hr-1", Role: models.RoleCompany}, IssueOfferRequest{
		ApplicationID: "app-1", Package: 900000, Currency: "INR", JobRole: "Analyst",
	})
	require.ErrorIs(t, err, appErrors.ErrDuplicatePendingOffer)
}

func TestOfferServiceAccept(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, apps, students, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationOfferIssued}
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, Package: 1200000, ExpiresAt: now.Add(24 * time.Hour),
	}

	actor := models.Actor{UserID: "user-1", Role: models.RoleStudent}
	offer, err := svc.Respond(context.Background(), actor, "offer-1", RespondOfferRequest{Action: lifecycle.OfferActionAccept})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferAccepted, offer.Status)
	require.NotNil(t, offer.RespondedAt)

	app, err := apps.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ApplicationOfferAccepted, app.Status)
	assert.Equal(t, []string{"student-1"}, students.placedAt)
}

func TestOfferServiceReject(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, apps, students, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationOfferIssued}
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, ExpiresAt: now.Add(24 * time.Hour),
	}

	message := "joining elsewhere"
	offer, err := svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, "offer-1",
		RespondOfferRequest{Action: lifecycle.OfferActionReject, Message: message})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferRejected, offer.Status)
	require.Equal(t, message, *offer.ResponseMessage)

	app, err := apps.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ApplicationOfferDeclined, app.Status)
	assert.Empty(t, students.placedAt)
}

func TestOfferServiceCounter(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationOfferIssued}
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, ExpiresAt: now.Add(24 * time.Hour),
	}

	amount := 1500000.0
	offer, err := svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, "offer-1",
		RespondOfferRequest{Action: lifecycle.OfferActionCounter, CounterAmount: &amount})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferCountered, offer.Status)
	require.Equal(t, amount, *offer.CounterAmount)

	// The application stays put until the company resolves the counter.
	app, err := apps.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ApplicationOfferIssued, app.Status)

	// A counter without an amount never reaches the repository.
	_, err = svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, "offer-1",
		RespondOfferRequest{Action: lifecycle.OfferActionCounter})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestOfferServiceReissueAfterCounter(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationSelected}

	actor := models.Actor{UserID: "hr-1", Role: models.RoleCompany}
	first, err := svc.Issue(context.Background(), actor, IssueOfferRequest{
		ApplicationID: "app-1", Package: 1200000, Currency: "INR", JobRole: "Software Engineer",
	})
	require.NoError(t, err)

	amount := 1500000.0
	_, err = svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, first.ID,
		RespondOfferRequest{Action: lifecycle.OfferActionCounter, CounterAmount: &amount})
	require.NoError(t, err)

	// The company resolves the counter with a sweetened fresh offer even
	// though the application already sits at OFFER_ISSUED.
	second, err := svc.Issue(context.Background(), actor, IssueOfferRequest{
		ApplicationID: "app-1", Package: 1400000, Currency: "INR", JobRole: "Software Engineer",
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferPending, second.Status)
	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, offers.offers, 2)
	assert.Equal(t, lifecycle.OfferCountered, offers.offers[first.ID].Status)

	app, err := apps.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ApplicationOfferIssued, app.Status)

	// Only one live offer at a time: a third issue is blocked while the
	// fresh one is still pending.
	_, err = svc.Issue(context.Background(), actor, IssueOfferRequest{
		ApplicationID: "app-1", Package: 1450000, Currency: "INR", JobRole: "Software Engineer",
	})
	require.ErrorIs(t, err, appErrors.ErrDuplicatePendingOffer)
}

func TestOfferServiceReissueAfterExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := issued.Add(96 * time.Hour)
	svc, offers, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationOfferIssued}

	offers.offers["offer-expired"] = &models.Offer{
		ID: "offer-expired", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferExpired, IssuedAt: issued, ExpiresAt: issued.Add(72 * time.Hour),
	}

	offer, err := svc.Issue(context.Background(), models.Actor{UserID: "hr-1", Role: models.RoleCompany}, IssueOfferRequest{
		ApplicationID: "app-1", Package: 1200000, Currency: "INR", JobRole: "Software Engineer",
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferPending, offer.Status)
	assert.Equal(t, now.Add(72*time.Hour), offer.ExpiresAt)
}

func TestOfferServiceRespondAfterExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := issued.Add(73 * time.Hour)
	svc, offers, apps, _, _ := newOfferTestService(t, now)
	apps.apps["app-1"] = &models.Application{ID: "app-1", StudentID: "student-1", DriveID: "drive-1", Status: lifecycle.ApplicationOfferIssued}
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, IssuedAt: issued, ExpiresAt: issued.Add(72 * time.Hour),
	}

	_, err := svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, "offer-1",
		RespondOfferRequest{Action: lifecycle.OfferActionAccept})
	require.ErrorIs(t, err, appErrors.ErrOfferExpired)

	// The attempt resolved the offer to its terminal status.
	require.Equal(t, lifecycle.OfferExpired, offers.offers["offer-1"].Status)
}

func TestOfferServiceGetPersistsLazyExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := issued.Add(73 * time.Hour)
	svc, offers, _, _, _ := newOfferTestService(t, now)
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, IssuedAt: issued, ExpiresAt: issued.Add(72 * time.Hour),
	}

	offer, err := svc.Get(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.OfferExpired, offer.Status)
	require.Equal(t, lifecycle.OfferExpired, offers.offers["offer-1"].Status)
}

func TestOfferServiceRespondConflict(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, offers, _, _, _ := newOfferTestService(t, now)
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", StudentID: "student-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, ExpiresAt: now.Add(24 * time.Hour),
	}
	offers.conflict = true

	_, err := svc.Respond(context.Background(), models.Actor{UserID: "user-1", Role: models.RoleStudent}, "offer-1",
		RespondOfferRequest{Action: lifecycle.OfferActionAccept})
	require.ErrorIs(t, err, appErrors.ErrConcurrentModification)
}

func TestOfferServiceExpireDue(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := issued.Add(96 * time.Hour)
	svc, offers, _, _, _ := newOfferTestService(t, now)
	offers.offers["offer-1"] = &models.Offer{
		ID: "offer-1", ApplicationID: "app-1", DriveID: "drive-1",
		Status: lifecycle.OfferPending, ExpiresAt: issued.Add(72 * time.Hour),
	}
	offers.offers["offer-2"] = &models.Offer{
		ID: "offer-2", ApplicationID: "app-2", DriveID: "drive-1",
		Status: lifecycle.OfferPending, ExpiresAt: now.Add(24 * time.Hour),
	}

	expired, err := svc.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	assert.Equal(t, lifecycle.OfferExpired, offers.offers["offer-1"].Status)
	assert.Equal(t, lifecycle.OfferPending, offers.offers["offer-2"].Status)
}
