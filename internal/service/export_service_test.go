package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/pkg/storage"
)

type exportDriveStub struct {
	detail     *models.DriveDetail
	candidates []lifecycle.CandidateEntry
	appEntries []lifecycle.ApplicationEntry
	offEntries []lifecycle.OfferEntry
}

func (s *exportDriveStub) FindDetailByID(ctx context.Context, id string) (*models.DriveDetail, error) {
	if s.detail == nil || s.detail.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.detail, nil
}

func (s *exportDriveStub) StatisticsInputs(ctx context.Context, driveID string) ([]lifecycle.CandidateEntry, []lifecycle.ApplicationEntry, []lifecycle.OfferEntry, error) {
	return s.candidates, s.appEntries, s.offEntries, nil
}

type exportAppListStub struct {
	apps []models.ApplicationDetail
}

func (s *exportAppListStub) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return s.apps, len(s.apps), nil
}

type exportOfferListStub struct {
	offers []models.OfferDetail
}

func (s *exportOfferListStub) List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error) {
	return s.offers, len(s.offers), nil
}

func newExportTestService(t *testing.T, drives *exportDriveStub, apps *exportAppListStub, offers *exportOfferListStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	svc := NewExportService(drives, apps, offers, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop())
	return svc, store
}

func readStoredReport(t *testing.T, store *storage.LocalStorage, relPath string) string {
	t.Helper()
	file, err := store.Open(relPath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return string(data)
}

func TestExportServiceDriveReportCSV(t *testing.T) {
	appliedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	withdrawnAt := time.Date(2026, 3, 12, 15, 30, 0, 0, time.UTC)
	reason := "accepted another offer"

	drives := &exportDriveStub{
		detail: &models.DriveDetail{
			Drive:       models.Drive{ID: "drive-1", Title: "Backend Engineer 2026"},
			CompanyName: "Acme Corp",
		},
		candidates: []lifecycle.CandidateEntry{
			{StudentID: "student-1", Invited: true},
			{StudentID: "student-2"},
		},
		appEntries: []lifecycle.ApplicationEntry{
			{Status: lifecycle.ApplicationShortlisted},
			{Status: lifecycle.ApplicationWithdrawn},
		},
		offEntries: []lifecycle.OfferEntry{},
	}
	apps := &exportAppListStub{apps: []models.ApplicationDetail{
		{
			Application: models.Application{
				ID:        "app-1",
				Status:    lifecycle.ApplicationShortlisted,
				AppliedAt: appliedAt,
			},
			StudentName: "Asha Rao",
		},
		{
			Application: models.Application{
				ID:               "app-2",
				Status:           lifecycle.ApplicationWithdrawn,
				AppliedAt:        appliedAt,
				WithdrawnAt:      &withdrawnAt,
				WithdrawalReason: &reason,
			},
			StudentName: "Vikram Nair",
		},
	}}

	svc, store := newExportTestService(t, drives, apps, &exportOfferListStub{})

	result, err := svc.DriveReport(context.Background(), "drive-1", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ReportFormatCSV, result.Format)
	assert.Contains(t, result.URL, "/api/v1/reports/download?token=")

	content := readStoredReport(t, store, result.RelativePath)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 9)

	assert.Equal(t, "Student,Status,Applied At,Withdrawn,Reason", lines[0])
	assert.Equal(t, "Asha Rao,SHORTLISTED,2026-03-10T09:00:00Z,,", lines[1])
	assert.Equal(t, "Vikram Nair,WITHDRAWN,2026-03-10T09:00:00Z,2026-03-12T15:30:00Z,accepted another offer", lines[2])
	// Blank separator, then the summary block under the first two columns.
	assert.Equal(t, ",,,,", lines[3])
	assert.Equal(t, "Eligible,2,,,", lines[4])
	assert.Equal(t, "Applied,2,,,", lines[5])
	assert.Equal(t, "Shortlisted,1,,,", lines[6])
}

func TestExportServiceOfferReportCSV(t *testing.T) {
	issuedAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := issuedAt.Add(72 * time.Hour)

	drives := &exportDriveStub{
		detail: &models.DriveDetail{
			Drive:       models.Drive{ID: "drive-1", Title: "Backend Engineer 2026"},
			CompanyName: "Acme Corp",
		},
	}
	offers := &exportOfferListStub{offers: []models.OfferDetail{
		{
			Offer: models.Offer{
				ID:        "offer-1",
				Status:    lifecycle.OfferPending,
				Package:   1200000,
				Currency:  "INR",
				JobRole:   "Backend Engineer",
				IssuedAt:  issuedAt,
				ExpiresAt: expiresAt,
			},
			StudentName: "Asha Rao",
		},
	}}

	svc, store := newExportTestService(t, drives, &exportAppListStub{}, offers)

	result, err := svc.OfferReport(context.Background(), "drive-1", ReportFormatCSV)
	require.NoError(t, err)

	content := readStoredReport(t, store, result.RelativePath)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Student,Role,Package,Status,Issued At,Expires At", lines[0])
	assert.Equal(t, "Asha Rao,Backend Engineer,1200000.00 INR,PENDING,2026-04-01T10:00:00Z,2026-04-04T10:00:00Z", lines[1])
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	drives := &exportDriveStub{
		detail: &models.DriveDetail{Drive: models.Drive{ID: "drive-1", Title: "Backend Engineer 2026"}},
	}
	svc, _ := newExportTestService(t, drives, &exportAppListStub{}, &exportOfferListStub{})

	_, err := svc.DriveReport(context.Background(), "drive-1", ReportFormat("xlsx"))
	require.Error(t, err)
}
