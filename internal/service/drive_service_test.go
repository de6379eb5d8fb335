package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type driveRepoStub struct {
	drives     map[string]*models.Drive
	candidates map[string]*models.DriveCandidate
	stats      struct {
		candidates   []lifecycle.CandidateEntry
		applications []lifecycle.ApplicationEntry
		offers       []lifecycle.OfferEntry
		calls        int
	}
}

func newDriveRepoStub(drives ...*models.Drive) *driveRepoStub {
	s := &driveRepoStub{
		drives:     make(map[string]*models.Drive),
		candidates: make(map[string]*models.DriveCandidate),
	}
	for _, drive := range drives {
		s.drives[drive.ID] = drive
	}
	return s
}

func (s *driveRepoStub) FindByID(ctx context.Context, id string) (*models.Drive, error) {
	if drive, ok := s.drives[id]; ok {
		copied := *drive
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *driveRepoStub) FindDetailByID(ctx context.Context, id string) (*models.DriveDetail, error) {
	drive, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.DriveDetail{Drive: *drive, CompanyName: "Acme", UniversityName: "State Tech"}, nil
}

func (s *driveRepoStub) Create(ctx context.Context, drive *models.Drive) error {
	if drive.ID == "" {
		drive.ID = "drive-" + drive.Title
	}
	stored := *drive
	s.drives[drive.ID] = &stored
	return nil
}

func (s *driveRepoStub) Update(ctx context.Context, drive *models.Drive) error {
	stored, ok := s.drives[drive.ID]
	if !ok || stored.Status != models.DriveStatusDraft {
		return sql.ErrNoRows
	}
	*stored = *drive
	return nil
}

func (s *driveRepoStub) UpdateStatus(ctx context.Context, id string, from, to models.DriveStatus) error {
	stored, ok := s.drives[id]
	if !ok || stored.Status != from {
		return sql.ErrNoRows
	}
	stored.Status = to
	return nil
}

func (s *driveRepoStub) UpdateApproval(ctx context.Context, id string, status models.ApprovalStatus, notes, decidedBy string, decidedAt time.Time) error {
	stored, ok := s.drives[id]
	if !ok || stored.ApprovalStatus != models.ApprovalPending {
		return sql.ErrNoRows
	}
	stored.ApprovalStatus = status
	return nil
}

func (s *driveRepoStub) List(ctx context.Context, filter models.DriveFilter) ([]models.Drive, int, error) {
	return nil, 0, nil
}

func (s *driveRepoStub) UpsertCandidate(ctx context.Context, candidate *models.DriveCandidate) error {
	key := candidate.DriveID + "/" + candidate.StudentID
	stored := *candidate
	s.candidates[key] = &stored
	return nil
}

func (s *driveRepoStub) ListCandidates(ctx context.Context, driveID string) ([]models.DriveCandidate, error) {
	var out []models.DriveCandidate
	for _, candidate := range s.candidates {
		if candidate.DriveID == driveID {
			out = append(out, *candidate)
		}
	}
	return out, nil
}

func (s *driveRepoStub) MarkInvited(ctx context.Context, driveID, studentID string, at time.Time) error {
	return nil
}

func (s *driveRepoStub) StatisticsInputs(ctx context.Context, driveID string) ([]lifecycle.CandidateEntry, []lifecycle.ApplicationEntry, []lifecycle.OfferEntry, error) {
	s.stats.calls++
	return s.stats.candidates, s.stats.applications, s.stats.offers, nil
}

type studentListerStub struct {
	students []models.Student
}

func (s *studentListerStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	if filter.Page > 1 {
		return nil, len(s.students), nil
	}
	return s.students, len(s.students), nil
}

func (s *studentListerStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range s.students {
		if s.students[i].ID == id {
			copied := s.students[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

// recordingCache caches the last Set value and replays it on Get.
type recordingCache struct {
	values map[string][]byte
	sets   int
	hits   int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{values: make(map[string][]byte)}
}

func (c *recordingCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	stats, ok := dest.(*lifecycle.Statistics)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*stats = lifecycle.Statistics{Eligible: int(raw[0])}
	return nil
}

func (c *recordingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	stats, ok := value.(lifecycle.Statistics)
	if !ok {
		return nil
	}
	c.values[key] = []byte{byte(stats.Eligible)}
	c.sets++
	return nil
}

func (c *recordingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range c.values {
		delete(c.values, key)
	}
	return nil
}

func TestDriveServiceCreate(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	repo := newDriveRepoStub()
	svc := NewDriveService(repo, &studentListerStub{}, nil, nil, nil, nil, 0)

	drive, err := svc.Create(context.Background(), models.Actor{UserID: "hr-1", Role: models.RoleCompany}, CreateDriveRequest{
		Title:             "Campus 2026",
		CompanyID:         "company-1",
		UniversityID:      "uni-1",
		JobRole:           "Software Engineer",
		JobType:           "FULL_TIME",
		Currency:          "INR",
		MinimumCGPA:       7.0,
		RegistrationStart: now,
		RegistrationEnd:   now.Add(48 * time.Hour),
		DriveDate:         now.Add(96 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, models.DriveStatusDraft, drive.Status)
	require.Equal(t, models.ApprovalPending, drive.ApprovalStatus)
	assert.Equal(t, string(lifecycle.GenderAny), drive.GenderPreference)
}

func TestDriveServiceCreateRejectsDriveBeforeRegistrationEnd(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := NewDriveService(newDriveRepoStub(), &studentListerStub{}, nil, nil, nil, nil, 0)

	_, err := svc.Create(context.Background(), models.Actor{UserID: "hr-1", Role: models.RoleCompany}, CreateDriveRequest{
		Title:             "Campus 2026",
		CompanyID:         "company-1",
		UniversityID:      "uni-1",
		JobRole:           "Software Engineer",
		JobType:           "FULL_TIME",
		Currency:          "INR",
		RegistrationStart: now,
		RegistrationEnd:   now.Add(96 * time.Hour),
		DriveDate:         now.Add(48 * time.Hour),
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDriveServicePublishRequiresApproval(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	drive.Status = models.DriveStatusDraft
	drive.ApprovalStatus = models.ApprovalPending
	repo := newDriveRepoStub(drive)
	svc := NewDriveService(repo, &studentListerStub{}, nil, nil, nil, nil, 0)

	_, err := svc.Publish(context.Background(), models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, drive.ID)
	require.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	repo.drives[drive.ID].ApprovalStatus = models.ApprovalApproved
	published, err := svc.Publish(context.Background(), models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, drive.ID)
	require.NoError(t, err)
	require.Equal(t, models.DriveStatusActive, published.Status)
}

func TestDriveServiceApprove(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	drive.Status = models.DriveStatusDraft
	drive.ApprovalStatus = models.ApprovalPending
	repo := newDriveRepoStub(drive)
	svc := NewDriveService(repo, &studentListerStub{}, nil, nil, nil, nil, 0)

	actor := models.Actor{UserID: "coord-1", Role: models.RoleUniversity}
	approved, err := svc.Approve(context.Background(), actor, drive.ID, ApprovalRequest{Approve: true, Notes: "ok"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)

	// A second decision is refused.
	_, err = svc.Approve(context.Background(), actor, drive.ID, ApprovalRequest{Approve: false})
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDriveServiceCompleteRequiresActive(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	drive.Status = models.DriveStatusDraft
	repo := newDriveRepoStub(drive)
	svc := NewDriveService(repo, &studentListerStub{}, nil, nil, nil, nil, 0)

	_, err := svc.Complete(context.Background(), models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, drive.ID)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestDriveServiceBuildRoster(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	repo := newDriveRepoStub(drive)

	eligible := *testStudent()
	ineligible := *testStudent()
	ineligible.ID = "student-2"
	ineligible.UserID = "user-2"
	ineligible.CGPA = 5.0
	inactive := *testStudent()
	inactive.ID = "student-3"
	inactive.UserID = "user-3"
	inactive.Active = false

	students := &studentListerStub{students: []models.Student{eligible, ineligible, inactive}}
	svc := NewDriveService(repo, students, nil, nil, nil, nil, 0)

	added, err := svc.BuildRoster(context.Background(), models.Actor{UserID: "coord-1", Role: models.RoleUniversity}, drive.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	candidate := repo.candidates[drive.ID+"/student-1"]
	require.NotNil(t, candidate)
	assert.True(t, candidate.Invited)
	assert.NotNil(t, candidate.InvitedAt)

	// Rebuilding the roster is idempotent.
	added, err = svc.BuildRoster(context.Background(), models.Actor{UserID: "coord-1", Role: models.RoleUniversity}, drive.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Len(t, repo.candidates, 1)
}

func TestDriveServiceStatisticsCacheAside(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	repo := newDriveRepoStub(drive)
	repo.stats.candidates = []lifecycle.CandidateEntry{
		{StudentID: "student-1", Invited: true},
		{StudentID: "student-2"},
	}
	repo.stats.applications = []lifecycle.ApplicationEntry{
		{Status: lifecycle.ApplicationOfferAccepted},
		{Status: lifecycle.ApplicationRejected},
	}
	repo.stats.offers = []lifecycle.OfferEntry{
		{Status: lifecycle.OfferAccepted},
	}
	cache := newRecordingCache()
	svc := NewDriveService(repo, &studentListerStub{}, cache, nil, nil, nil, time.Minute)

	stats, err := svc.Statistics(context.Background(), drive.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Eligible)
	require.Equal(t, 1, stats.Invited)
	require.Equal(t, 2, stats.Applied)
	require.Equal(t, 1, stats.OffersAccepted)
	require.Equal(t, 1, repo.stats.calls)
	require.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	_, err = svc.Statistics(context.Background(), drive.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.stats.calls)
	require.Equal(t, 1, cache.hits)

	// Invalidation forces a recompute with identical results.
	require.NoError(t, cache.DeleteByPattern(context.Background(), "drives:stats:"+drive.ID))
	recomputed, err := svc.Statistics(context.Background(), drive.ID)
	require.NoError(t, err)
	require.Equal(t, 2, repo.stats.calls)
	require.Equal(t, stats.Eligible, recomputed.Eligible)
}

func TestDriveServiceGetDerivesPhase(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	drive := testDrive(now)
	repo := newDriveRepoStub(drive)
	svc := NewDriveService(repo, &studentListerStub{}, nil, nil, nil, nil, 0)
	svc.now = func() time.Time { return now }

	detail, err := svc.Get(context.Background(), drive.ID)
	require.NoError(t, err)
	require.Equal(t, lifecycle.RegistrationOpen, detail.RegistrationPhase)
	require.Equal(t, lifecycle.PhaseRegistration, detail.Phase)
}
