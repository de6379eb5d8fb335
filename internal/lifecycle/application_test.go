package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campushire/placement-api/pkg/errors"
)

var allApplicationStatuses = []ApplicationStatus{
	ApplicationApplied, ApplicationUnderReview, ApplicationShortlisted,
	ApplicationRejected, ApplicationSelected, ApplicationOfferIssued,
	ApplicationOfferAccepted, ApplicationOfferDeclined, ApplicationWithdrawn,
}

func TestApplicationTransitionTable(t *testing.T) {
	allowed := map[ApplicationStatus][]ApplicationStatus{
		ApplicationApplied:     {ApplicationUnderReview, ApplicationRejected, ApplicationWithdrawn},
		ApplicationUnderReview: {ApplicationShortlisted, ApplicationRejected, ApplicationWithdrawn},
		ApplicationShortlisted: {ApplicationSelected, ApplicationRejected, ApplicationWithdrawn},
		ApplicationSelected:    {ApplicationOfferIssued, ApplicationWithdrawn},
		ApplicationOfferIssued: {ApplicationOfferAccepted, ApplicationOfferDeclined},
	}

	for _, from := range allApplicationStatuses {
		for _, to := range allApplicationStatuses {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			got := CanTransitionApplication(from, to)
			assert.Equalf(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestValidateApplicationTransitionCarriesPair(t *testing.T) {
	err := ValidateApplicationTransition(ApplicationRejected, ApplicationSelected)
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Contains(t, typed.Message, "REJECTED")
	assert.Contains(t, typed.Message, "SELECTED")
}

func TestWithdrawalNotPermittedAfterOfferIssued(t *testing.T) {
	err := ValidateApplicationTransition(ApplicationOfferIssued, ApplicationWithdrawn)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []ApplicationStatus{
		ApplicationRejected, ApplicationWithdrawn, ApplicationOfferAccepted, ApplicationOfferDeclined,
	} {
		assert.Truef(t, ApplicationTerminal(status), "%s should be terminal", status)
	}
	for _, status := range []ApplicationStatus{
		ApplicationApplied, ApplicationUnderReview, ApplicationShortlisted, ApplicationSelected, ApplicationOfferIssued,
	} {
		assert.Falsef(t, ApplicationTerminal(status), "%s should not be terminal", status)
	}
}

func openTimeline(now time.Time) Timeline {
	return Timeline{
		RegistrationStart: now.Add(-24 * time.Hour),
		RegistrationEnd:   now.Add(24 * time.Hour),
		DriveDate:         now.Add(72 * time.Hour),
	}
}

func TestValidateApplicationCreation(t *testing.T) {
	now := time.Now().UTC()

	t.Run("eligible and open", func(t *testing.T) {
		result, err := ValidateApplicationCreation(baseStudent(), baseCriteria(), openTimeline(now), now)
		require.NoError(t, err)
		assert.True(t, result.Eligible)
	})

	t.Run("not eligible", func(t *testing.T) {
		student := baseStudent()
		student.CGPA = 1.0
		result, err := ValidateApplicationCreation(student, baseCriteria(), openTimeline(now), now)
		require.ErrorIs(t, err, appErrors.ErrNotEligible)
		assert.Contains(t, result.FailedRules, RuleMinimumCGPA)
	})

	t.Run("registration closed", func(t *testing.T) {
		timeline := openTimeline(now)
		timeline.RegistrationEnd = now.Add(-time.Hour)
		_, err := ValidateApplicationCreation(baseStudent(), baseCriteria(), timeline, now)
		require.ErrorIs(t, err, appErrors.ErrRegistrationClosed)
	})

	t.Run("registration not yet started", func(t *testing.T) {
		timeline := openTimeline(now)
		timeline.RegistrationStart = now.Add(time.Hour)
		_, err := ValidateApplicationCreation(baseStudent(), baseCriteria(), timeline, now)
		require.ErrorIs(t, err, appErrors.ErrRegistrationClosed)
	})
}

func TestValidateHistory(t *testing.T) {
	now := time.Now().UTC()
	entry := func(s ApplicationStatus, offset time.Duration) StatusHistoryEntry {
		return StatusHistoryEntry{Status: s, Timestamp: now.Add(offset), Actor: "system"}
	}

	t.Run("valid walk", func(t *testing.T) {
		history := []StatusHistoryEntry{
			entry(ApplicationApplied, 0),
			entry(ApplicationUnderReview, time.Minute),
			entry(ApplicationShortlisted, 2*time.Minute),
			entry(ApplicationSelected, 3*time.Minute),
			entry(ApplicationOfferIssued, 4*time.Minute),
			entry(ApplicationOfferAccepted, 5*time.Minute),
		}
		require.NoError(t, ValidateHistory(history))
	})

	t.Run("backward move rejected", func(t *testing.T) {
		history := []StatusHistoryEntry{
			entry(ApplicationApplied, 0),
			entry(ApplicationUnderReview, time.Minute),
			entry(ApplicationApplied, 2*time.Minute),
		}
		require.ErrorIs(t, ValidateHistory(history), appErrors.ErrInvalidTransition)
	})

	t.Run("must start at applied", func(t *testing.T) {
		history := []StatusHistoryEntry{entry(ApplicationSelected, 0)}
		require.ErrorIs(t, ValidateHistory(history), appErrors.ErrInvalidTransition)
	})
}
