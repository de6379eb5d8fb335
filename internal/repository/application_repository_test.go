package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.Application{
		StudentID: "student-1",
		DriveID:   "drive-1",
		Status:    lifecycle.ApplicationApplied,
		History:   []byte(`[{"status":"APPLIED"}]`),
	}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)

	rows := sqlmock.NewRows([]string{"id", "student_id", "drive_id", "status", "history", "round_outcomes",
		"withdrawn_by", "withdrawn_at", "withdrawal_reason", "applied_at", "updated_at"}).
		AddRow(app.ID, "student-1", "drive-1", "APPLIED", []byte(`[]`), nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, drive_id, status")).
		WithArgs(app.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.ApplicationApplied, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusGuardsPriorStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	app := &models.Application{
		ID:      "app-1",
		Status:  lifecycle.ApplicationShortlisted,
		History: []byte(`[]`),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), app, lifecycle.ApplicationUnderReview))

	// Another writer already moved the row: zero rows affected must surface
	// as sql.ErrNoRows, never a silent success.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), app, lifecycle.ApplicationUnderReview)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateRoundsGuardsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	app := &models.Application{ID: "app-1", RoundOutcomes: []byte(`[{"round":1,"outcome":"cleared"}]`)}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET round_outcomes")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateRounds(context.Background(), app, lifecycle.ApplicationShortlisted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "drive_id", "status", "history", "round_outcomes",
		"withdrawn_by", "withdrawn_at", "withdrawal_reason", "applied_at", "updated_at",
		"student_name", "drive_title", "company_name"}).
		AddRow("app-1", "student-1", "drive-1", "SHORTLISTED", []byte(`[]`), nil, nil, nil, nil,
			time.Now(), time.Now(), "Asha Rao", "Graduate Engineer 2026", "Initech")
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications a")).
		WithArgs("drive-1", "SHORTLISTED").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications a")).
		WithArgs("drive-1", "SHORTLISTED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ApplicationFilter{
		DriveID: "drive-1",
		Status:  lifecycle.ApplicationShortlisted,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "Asha Rao", list[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
