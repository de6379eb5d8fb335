package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/campushire/placement-api/internal/models"
	appErrors "github.com/campushire/placement-api/pkg/errors"
)

// contentGenerator abstracts the model call so tests can fake it.
type contentGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type aiDriveRepository interface {
	FindByID(ctx context.Context, id string) (*models.Drive, error)
	ListCandidates(ctx context.Context, driveID string) ([]models.DriveCandidate, error)
	AnnotateCandidate(ctx context.Context, driveID, studentID string, score float64, reasons []string, at time.Time) error
}

type aiStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AIConfig configures the assistance service.
type AIConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// AIService produces advisory annotations: resume/job-description matching,
// candidate screening scores and recommendation text. Its output never
// feeds eligibility or lifecycle decisions; everything it writes lands in
// clearly marked advisory columns.
type AIService struct {
	generator contentGenerator
	drives    aiDriveRepository
	students  aiStudentReader
	logger    *zap.Logger
	config    AIConfig
	now       func() time.Time
}

// NewAIService constructs the service. A missing API key leaves the
// generator nil and every operation degrades to a precondition error
// instead of failing at startup.
func NewAIService(drives aiDriveRepository, students aiStudentReader, logger *zap.Logger, config AIConfig) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 2
	}
	s := &AIService{
		drives:   drives,
		students: students,
		logger:   logger,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if config.APIKey != "" {
		s.generator = &geminiGenerator{config: config}
	}
	return s
}

// Configured reports whether a model backend is wired up.
func (s *AIService) Configured() bool {
	return s.generator != nil
}

// MatchResume compares resume text against a job description and returns a
// structured compatibility report.
func (s *AIService) MatchResume(ctx context.Context, resumeText, jobDescription string) (*models.ResumeMatchResult, error) {
	if s.generator == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "AI assistance is not configured")
	}
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobDescription) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resume text and job description are required")
	}

	prompt := fmt.Sprintf(`You are an assistant for a campus placement portal.
Compare the resume against the job description and reply with ONLY a JSON object:
{"compatibility_score": <0-100>, "keyword_matches": [...], "missing_keywords": [...],
"strengths": [...], "gaps": [...], "recommendations": [...], "summary": "...", "reasoning": "..."}

RESUME:
%s

JOB DESCRIPTION:
%s`, resumeText, jobDescription)

	var result models.ResumeMatchResult
	if err := s.generateJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	if result.CompatibilityScore < 0 {
		result.CompatibilityScore = 0
	}
	if result.CompatibilityScore > 100 {
		result.CompatibilityScore = 100
	}
	return &result, nil
}

// ScreenCandidates scores each roster entry of a drive against its job
// profile and stores the annotations. Individual failures are logged and
// skipped so one bad generation does not abort the batch.
func (s *AIService) ScreenCandidates(ctx context.Context, driveID string) (int, error) {
	if s.generator == nil {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "AI assistance is not configured")
	}

	drive, err := s.drives.FindByID(ctx, driveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drive")
	}
	candidates, err := s.drives.ListCandidates(ctx, driveID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}

	screened := 0
	for _, candidate := range candidates {
		student, err := s.students.FindByID(ctx, candidate.StudentID)
		if err != nil {
			s.logger.Warn("skipping candidate, student load failed",
				zap.String("student_id", candidate.StudentID), zap.Error(err))
			continue
		}
		result, err := s.screenOne(ctx, student, drive)
		if err != nil {
			s.logger.Warn("candidate screening failed",
				zap.String("student_id", candidate.StudentID), zap.Error(err))
			continue
		}
		if err := s.drives.AnnotateCandidate(ctx, driveID, candidate.StudentID, result.FitScore, result.Reasons, result.GeneratedAt); err != nil {
			s.logger.Warn("failed to store screening annotation",
				zap.String("student_id", candidate.StudentID), zap.Error(err))
			continue
		}
		screened++
	}
	return screened, nil
}

// Recommend generates short recommendation text for a student profile.
func (s *AIService) Recommend(ctx context.Context, studentID string) (*models.RecommendationResult, error) {
	if s.generator == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "AI assistance is not configured")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	prompt := fmt.Sprintf(`You are an assistant for a campus placement portal.
Write a short recommendation for this student profile and reply with ONLY a JSON object:
{"text": "...", "highlights": [...]}

PROFILE:
course: %s, specialization: %s, batch: %s, cgpa: %.2f, backlogs: %d current / %d historical`,
		student.Course, student.Specialization, student.Batch, student.CGPA,
		student.CurrentBacklogs, student.HistoryBacklogs)

	var result models.RecommendationResult
	if err := s.generateJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	result.StudentID = studentID
	result.GeneratedAt = s.now()
	return &result, nil
}

func (s *AIService) screenOne(ctx context.Context, student *models.Student, drive *models.Drive) (*models.CandidateScreeningResult, error) {
	prompt := fmt.Sprintf(`You are an assistant for a campus placement portal.
Rate how well this candidate fits the role and reply with ONLY a JSON object:
{"fit_score": <0-100>, "reasons": [...]}

CANDIDATE:
course: %s, specialization: %s, batch: %s, cgpa: %.2f, backlogs: %d current / %d historical

ROLE:
%s — %s
required skills: %s`,
		student.Course, student.Specialization, student.Batch, student.CGPA,
		student.CurrentBacklogs, student.HistoryBacklogs,
		drive.JobRole, drive.JobDescription, strings.Join(drive.SkillsRequired, ", "))

	var result models.CandidateScreeningResult
	if err := s.generateJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	result.StudentID = student.ID
	result.GeneratedAt = s.now()
	if result.FitScore < 0 {
		result.FitScore = 0
	}
	if result.FitScore > 100 {
		result.FitScore = 100
	}
	return &result, nil
}

// generateJSON calls the model with bounded retries and parses the reply,
// tolerating markdown code fences around the JSON body.
func (s *AIService) generateJSON(ctx context.Context, prompt string, dest interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		raw, err := s.generator.Generate(callCtx, prompt)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		cleaned := stripCodeFence(raw)
		if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
			lastErr = fmt.Errorf("parse model reply: %w", err)
			continue
		}
		return nil
	}
	return appErrors.Wrap(lastErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "AI generation failed")
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}

// geminiGenerator is the production contentGenerator backed by the Gemini
// API. The client is created lazily on first use; sync.Once makes that safe
// for concurrent Generate calls coming off the jobs queue.
type geminiGenerator struct {
	config AIConfig
	// newClient is swappable for tests; nil means the real Gemini backend.
	newClient func(ctx context.Context, config AIConfig) (*genai.Client, error)
	initOnce  sync.Once
	initErr   error
	client    *genai.Client
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.initOnce.Do(func() {
		create := g.newClient
		if create == nil {
			create = func(ctx context.Context, config AIConfig) (*genai.Client, error) {
				return genai.NewClient(ctx, &genai.ClientConfig{
					APIKey:  config.APIKey,
					Backend: genai.BackendGeminiAPI,
				})
			}
		}
		g.client, g.initErr = create(ctx, g.config)
	})
	if g.initErr != nil {
		return "", fmt.Errorf("create genai client: %w", g.initErr)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
