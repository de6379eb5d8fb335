package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

type fakeGenerator struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	idx := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx < len(g.replies) {
		return g.replies[idx], nil
	}
	return "", errors.New("no scripted reply")
}

type aiDriveStub struct {
	*driveRepoStub
	annotations map[string]float64
}

func (s *aiDriveStub) AnnotateCandidate(ctx context.Context, driveID, studentID string, score float64, reasons []string, at time.Time) error {
	if s.annotations == nil {
		s.annotations = make(map[string]float64)
	}
	s.annotations[studentID] = score
	return nil
}

func TestAIServiceUnconfigured(t *testing.T) {
	svc := NewAIService(&aiDriveStub{driveRepoStub: newDriveRepoStub()}, newStudentReaderStub(), nil, AIConfig{})
	require.False(t, svc.Configured())

	_, err := svc.MatchResume(context.Background(), "resume", "jd")
	require.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = svc.ScreenCandidates(context.Background(), "drive-1")
	require.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestAIServiceMatchResume(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		"```json\n{\"compatibility_score\": 140, \"keyword_matches\": [\"go\"], \"summary\": \"strong\"}\n```",
	}}
	svc := NewAIService(&aiDriveStub{driveRepoStub: newDriveRepoStub()}, newStudentReaderStub(), nil, AIConfig{APIKey: "k"})
	svc.generator = gen

	result, err := svc.MatchResume(context.Background(), "resume text", "job description")
	require.NoError(t, err)
	// Code fences are tolerated and out-of-range scores clamped.
	require.Equal(t, float64(100), result.CompatibilityScore)
	assert.Equal(t, []string{"go"}, result.KeywordMatches)
	assert.Equal(t, "strong", result.Summary)
}

func TestAIServiceMatchResumeRetriesOnBadReply(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		"sorry, I cannot help with that",
		`{"compatibility_score": 62, "summary": "ok"}`,
	}}
	svc := NewAIService(&aiDriveStub{driveRepoStub: newDriveRepoStub()}, newStudentReaderStub(), nil,
		AIConfig{APIKey: "k", MaxAttempts: 2})
	svc.generator = gen

	result, err := svc.MatchResume(context.Background(), "resume", "jd")
	require.NoError(t, err)
	require.Equal(t, float64(62), result.CompatibilityScore)
	require.Equal(t, 2, gen.calls)
}

func TestAIServiceMatchResumeExhaustsRetries(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("rate limited"), errors.New("rate limited")}}
	svc := NewAIService(&aiDriveStub{driveRepoStub: newDriveRepoStub()}, newStudentReaderStub(), nil,
		AIConfig{APIKey: "k", MaxAttempts: 2})
	svc.generator = gen

	_, err := svc.MatchResume(context.Background(), "resume", "jd")
	require.ErrorIs(t, err, appErrors.ErrInternal)
	require.Equal(t, 2, gen.calls)
}

func TestAIServiceScreenCandidatesSkipsFailures(t *testing.T) {
	now := time.Now().UTC()
	drive := testDrive(now)
	drives := &aiDriveStub{driveRepoStub: newDriveRepoStub(drive)}
	drives.candidates[drive.ID+"/student-1"] = &models.DriveCandidate{DriveID: drive.ID, StudentID: "student-1"}
	drives.candidates[drive.ID+"/student-2"] = &models.DriveCandidate{DriveID: drive.ID, StudentID: "student-2"}

	other := *testStudent()
	other.ID = "student-2"
	other.UserID = "user-2"
	students := newStudentReaderStub(testStudent(), &other)

	gen := &fakeGenerator{replies: []string{
		`{"fit_score": 81, "reasons": ["good cgpa"]}`,
		"not json at all",
		"still not json",
	}}
	svc := NewAIService(drives, students, nil, AIConfig{APIKey: "k", MaxAttempts: 1})
	svc.generator = gen

	screened, err := svc.ScreenCandidates(context.Background(), drive.ID)
	require.NoError(t, err)
	// One candidate annotated, the bad generation skipped.
	require.Equal(t, 1, screened)
	require.Len(t, drives.annotations, 1)
}

func TestAIServiceRecommend(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`{"text": "solid candidate", "highlights": ["8.1 CGPA"]}`,
	}}
	svc := NewAIService(&aiDriveStub{driveRepoStub: newDriveRepoStub()}, newStudentReaderStub(testStudent()), nil,
		AIConfig{APIKey: "k"})
	svc.generator = gen

	result, err := svc.Recommend(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, "student-1", result.StudentID)
	require.Equal(t, "solid candidate", result.Text)
	require.False(t, result.GeneratedAt.IsZero())
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestGeminiGeneratorClientCreatedOnce(t *testing.T) {
	var creations int32
	gen := &geminiGenerator{
		config: AIConfig{APIKey: "k", Model: "gemini-2.0-flash"},
		newClient: func(ctx context.Context, config AIConfig) (*genai.Client, error) {
			atomic.AddInt32(&creations, 1)
			return nil, errors.New("backend unreachable")
		},
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gen.Generate(context.Background(), "ping")
		}(i)
	}
	wg.Wait()

	// One initialization regardless of how many callers raced it; the
	// failure is sticky so every caller sees it.
	assert.EqualValues(t, 1, atomic.LoadInt32(&creations))
	for _, err := range errs {
		require.ErrorContains(t, err, "create genai client")
	}
}
