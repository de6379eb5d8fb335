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

func TestDriveRepositoryUpdateStatusGuardsPriorStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDriveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE drives SET status")).
		WithArgs("drive-1", "DRAFT", "ACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "drive-1", models.DriveStatusDraft, models.DriveStatusActive))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE drives SET status")).
		WithArgs("drive-1", "DRAFT", "ACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "drive-1", models.DriveStatusDraft, models.DriveStatusActive)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriveRepositoryUpdateApprovalOnlyDecidesPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDriveRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE drives SET approval_status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateApproval(context.Background(), "drive-1", models.ApprovalApproved, "ok", "coord-1", now))

	// Already decided by another coordinator.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE drives SET approval_status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateApproval(context.Background(), "drive-1", models.ApprovalRejected, "late", "coord-2", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriveRepositoryStatisticsInputs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDriveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM drive_candidates WHERE drive_id")).
		WithArgs("drive-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "invited", "status"}).
			AddRow("s1", true, nil).
			AddRow("s2", false, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE drive_id")).
		WithArgs("drive-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "invited", "status"}).
			AddRow("s1", false, "SELECTED"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM offers WHERE drive_id")).
		WithArgs("drive-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "invited", "status"}).
			AddRow("s1", false, "ACCEPTED"))

	candidates, applications, offers, err := repo.StatisticsInputs(context.Background(), "drive-1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Len(t, applications, 1)
	require.Len(t, offers, 1)

	stats := lifecycle.ComputeStatistics(candidates, applications, offers)
	require.Equal(t, 2, stats.Eligible)
	require.Equal(t, 1, stats.Invited)
	require.Equal(t, 1, stats.Selected)
	require.Equal(t, 1, stats.OffersAccepted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriveRepositoryUpdateOnlyEditsDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDriveRepository(db)
	drive := &models.Drive{ID: "drive-1", Title: "Campus Drive", Currency: "INR"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE drives SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), drive)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
