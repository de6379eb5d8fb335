package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTimeline() Timeline {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resultDate := start.Add(21 * 24 * time.Hour)
	return Timeline{
		RegistrationStart: start,
		RegistrationEnd:   start.Add(7 * 24 * time.Hour),
		DriveDate:         start.Add(14 * 24 * time.Hour),
		ResultDate:        &resultDate,
	}
}

func TestTimelinePhase(t *testing.T) {
	timeline := sampleTimeline()
	tests := []struct {
		name string
		at   time.Time
		want DrivePhase
	}{
		{"before registration", timeline.RegistrationStart.Add(-time.Hour), PhaseUpcoming},
		{"registration opens", timeline.RegistrationStart, PhaseRegistration},
		{"registration last moment", timeline.RegistrationEnd, PhaseRegistration},
		{"after registration", timeline.RegistrationEnd.Add(time.Minute), PhasePreDrive},
		{"drive day", timeline.DriveDate.Add(2 * time.Hour), PhaseDriveDay},
		{"day after drive", timeline.DriveDate.Add(23 * time.Hour), PhaseDriveDay},
		{"evaluation window", timeline.DriveDate.Add(48 * time.Hour), PhaseEvaluation},
		{"past result date", timeline.ResultDate.Add(time.Hour), PhaseCompleted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timeline.Phase(tc.at))
		})
	}
}

func TestTimelinePhaseWithoutResultDate(t *testing.T) {
	timeline := sampleTimeline()
	timeline.ResultDate = nil
	assert.Equal(t, PhaseCompleted, timeline.Phase(timeline.DriveDate.Add(25*time.Hour)))
}

func TestTimelineRegistrationPhase(t *testing.T) {
	timeline := sampleTimeline()
	assert.Equal(t, RegistrationNotStarted, timeline.RegistrationPhase(timeline.RegistrationStart.Add(-time.Second)))
	assert.Equal(t, RegistrationOpen, timeline.RegistrationPhase(timeline.RegistrationStart))
	assert.Equal(t, RegistrationOpen, timeline.RegistrationPhase(timeline.RegistrationEnd))
	assert.Equal(t, RegistrationClosed, timeline.RegistrationPhase(timeline.RegistrationEnd.Add(time.Second)))
}

func TestComputeStatistics(t *testing.T) {
	candidates := []CandidateEntry{
		{StudentID: "s1", Invited: true},
		{StudentID: "s2", Invited: true},
		{StudentID: "s3"},
		{StudentID: "s4"},
	}
	applications := []ApplicationEntry{
		{Status: ApplicationApplied},
		{Status: ApplicationUnderReview},
		{Status: ApplicationShortlisted},
		{Status: ApplicationSelected},
		{Status: ApplicationOfferIssued},
		{Status: ApplicationOfferAccepted},
		{Status: ApplicationRejected},
		{Status: ApplicationWithdrawn},
	}
	offers := []OfferEntry{
		{Status: OfferAccepted},
		{Status: OfferPending},
		{Status: OfferExpired},
	}

	stats := ComputeStatistics(candidates, applications, offers)
	assert.Equal(t, Statistics{
		Eligible:       4,
		Invited:        2,
		Applied:        8,
		Shortlisted:    4, // shortlisted + the three that progressed beyond
		Selected:       3,
		OffersIssued:   3,
		OffersAccepted: 1,
	}, stats)
}

func TestComputeStatisticsExitedApplications(t *testing.T) {
	// Exited applications keep only their current status: a withdrawal or
	// rejection after shortlisting counts in Applied alone.
	applications := []ApplicationEntry{
		{Status: ApplicationWithdrawn},
		{Status: ApplicationRejected},
	}

	stats := ComputeStatistics(nil, applications, nil)
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 0, stats.Shortlisted)
	assert.Equal(t, 0, stats.Selected)
}

func TestComputeStatisticsIdempotent(t *testing.T) {
	candidates := []CandidateEntry{{StudentID: "s1", Invited: true}}
	applications := []ApplicationEntry{{Status: ApplicationSelected}, {Status: ApplicationApplied}}
	offers := []OfferEntry{{Status: OfferPending}}

	first := ComputeStatistics(candidates, applications, offers)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ComputeStatistics(candidates, applications, offers))
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	assert.Equal(t, Statistics{}, ComputeStatistics(nil, nil, nil))
}
