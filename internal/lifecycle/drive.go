package lifecycle

import "time"

// DrivePhase is the derived position of a drive on its timeline. It is a
// pure function of the current time and is recomputed on every read; it is
// never stored, so it cannot go stale.
type DrivePhase string

const (
	PhaseUpcoming     DrivePhase = "UPCOMING"
	PhaseRegistration DrivePhase = "REGISTRATION"
	PhasePreDrive     DrivePhase = "PRE_DRIVE"
	PhaseDriveDay     DrivePhase = "DRIVE_DAY"
	PhaseEvaluation   DrivePhase = "EVALUATION"
	PhaseCompleted    DrivePhase = "COMPLETED"
)

// RegistrationPhase is the derived registration window state.
type RegistrationPhase string

const (
	RegistrationNotStarted RegistrationPhase = "NOT_STARTED"
	RegistrationOpen       RegistrationPhase = "OPEN"
	RegistrationClosed     RegistrationPhase = "CLOSED"
)

// Timeline holds a drive's scheduled milestones.
type Timeline struct {
	RegistrationStart time.Time  `json:"registration_start"`
	RegistrationEnd   time.Time  `json:"registration_end"`
	DriveDate         time.Time  `json:"drive_date"`
	ResultDate        *time.Time `json:"result_date,omitempty"`
}

// Phase derives the drive phase for the given instant. Drive day spans the
// 24 hours following DriveDate; the evaluation window runs until ResultDate
// when one is set.
func (t Timeline) Phase(now time.Time) DrivePhase {
	switch {
	case now.Before(t.RegistrationStart):
		return PhaseUpcoming
	case !now.After(t.RegistrationEnd):
		return PhaseRegistration
	case now.Before(t.DriveDate):
		return PhasePreDrive
	case !now.After(t.DriveDate.Add(24 * time.Hour)):
		return PhaseDriveDay
	case t.ResultDate != nil && now.Before(*t.ResultDate):
		return PhaseEvaluation
	default:
		return PhaseCompleted
	}
}

// RegistrationPhase derives the registration window state for the instant.
func (t Timeline) RegistrationPhase(now time.Time) RegistrationPhase {
	switch {
	case now.Before(t.RegistrationStart):
		return RegistrationNotStarted
	case now.After(t.RegistrationEnd):
		return RegistrationClosed
	default:
		return RegistrationOpen
	}
}

// CandidateEntry is the roster view needed for statistics: an eligible
// student and whether they were invited.
type CandidateEntry struct {
	StudentID string
	Invited   bool
}

// ApplicationEntry is the application view needed for statistics.
type ApplicationEntry struct {
	Status ApplicationStatus
}

// OfferEntry is the offer view needed for statistics.
type OfferEntry struct {
	Status OfferStatus
}

// Statistics are roll-up counts for a drive. They are always derived from
// the candidate/application/offer collections at the moment of computation:
// a cache, not a source of truth. Callers must recompute, never increment.
type Statistics struct {
	Eligible       int `json:"eligible"`
	Invited        int `json:"invited"`
	Applied        int `json:"applied"`
	Shortlisted    int `json:"shortlisted"`
	Selected       int `json:"selected"`
	OffersIssued   int `json:"offers_issued"`
	OffersAccepted int `json:"offers_accepted"`
}

// ComputeStatistics derives drive statistics from the authoritative
// collections. Idempotent: identical inputs yield identical output.
// Shortlisted and Selected count applications whose CURRENT status is at or
// past that stage, so a student who moved on to an offer still counts in
// both. Applications that exited via REJECTED or WITHDRAWN count only in
// Applied: the input carries no history, so stages they passed through
// earlier are not reconstructed.
func ComputeStatistics(candidates []CandidateEntry, applications []ApplicationEntry, offers []OfferEntry) Statistics {
	stats := Statistics{Eligible: len(candidates), Applied: len(applications)}

	for _, c := range candidates {
		if c.Invited {
			stats.Invited++
		}
	}

	for _, a := range applications {
		switch a.Status {
		case ApplicationShortlisted:
			stats.Shortlisted++
		case ApplicationSelected, ApplicationOfferIssued, ApplicationOfferAccepted, ApplicationOfferDeclined:
			stats.Shortlisted++
			stats.Selected++
		}
	}

	for _, o := range offers {
		stats.OffersIssued++
		if o.Status == OfferAccepted {
			stats.OffersAccepted++
		}
	}

	return stats
}
