package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
)

func TestOfferRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO offers")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	offer := &models.Offer{
		ApplicationID: "app-1",
		StudentID:     "student-1",
		DriveID:       "drive-1",
		Status:        lifecycle.OfferPending,
		Package:       1200000,
		Currency:      "INR",
		JobRole:       "Graduate Engineer",
		IssuedBy:      "hr-1",
		ExpiresAt:     time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), offer))
	require.NotEmpty(t, offer.ID)
	require.False(t, offer.IssuedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepositoryHasPendingForApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	pending, err := repo.HasPendingForApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.True(t, pending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepositoryUpdateStatusGuardsPriorStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	respondedAt := time.Now()
	offer := &models.Offer{
		ID:          "offer-1",
		Status:      lifecycle.OfferAccepted,
		RespondedAt: &respondedAt,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE offers SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), offer, lifecycle.OfferPending))

	// A concurrent response or the expiry sweep won the race: the zero-row
	// result comes back as sql.ErrNoRows for the service to map.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE offers SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), offer, lifecycle.OfferPending)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepositoryListExpirable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOfferRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "application_id", "student_id", "drive_id", "status", "package", "currency", "job_role",
		"issued_by", "issued_at", "expires_at", "counter_amount", "counter_note", "response_message", "responded_at",
		"created_at", "updated_at"}).
		AddRow("offer-1", "app-1", "student-1", "drive-1", "PENDING", 900000.0, "INR", "Analyst",
			"hr-1", now.Add(-96*time.Hour), now.Add(-time.Hour), nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM offers WHERE status = 'PENDING' AND expires_at <")).
		WillReturnRows(rows)

	expirable, err := repo.ListExpirable(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, expirable, 1)
	require.Equal(t, lifecycle.OfferPending, expirable[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
