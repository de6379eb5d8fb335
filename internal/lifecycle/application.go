package lifecycle

import (
	"time"

	appErrors "github.com/campushire/placement-api/pkg/errors"
)

// ApplicationStatus is the lifecycle state of a student's application.
type ApplicationStatus string

const (
	ApplicationApplied       ApplicationStatus = "APPLIED"
	ApplicationUnderReview   ApplicationStatus = "UNDER_REVIEW"
	ApplicationShortlisted   ApplicationStatus = "SHORTLISTED"
	ApplicationRejected      ApplicationStatus = "REJECTED"
	ApplicationSelected      ApplicationStatus = "SELECTED"
	ApplicationOfferIssued   ApplicationStatus = "OFFER_ISSUED"
	ApplicationOfferAccepted ApplicationStatus = "OFFER_ACCEPTED"
	ApplicationOfferDeclined ApplicationStatus = "OFFER_DECLINED"
	ApplicationWithdrawn     ApplicationStatus = "WITHDRAWN"
)

// applicationTransitions is the authoritative transition table. Statuses are
// monotonic along this graph; withdrawal is the only sideways exit and is
// terminal. Withdrawal is not permitted once an offer has been issued —
// declining the offer is the remaining exit.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationApplied:     {ApplicationUnderReview, ApplicationRejected, ApplicationWithdrawn},
	ApplicationUnderReview: {ApplicationShortlisted, ApplicationRejected, ApplicationWithdrawn},
	ApplicationShortlisted: {ApplicationSelected, ApplicationRejected, ApplicationWithdrawn},
	ApplicationSelected:    {ApplicationOfferIssued, ApplicationWithdrawn},
	ApplicationOfferIssued: {ApplicationOfferAccepted, ApplicationOfferDeclined},
}

// StatusHistoryEntry is one immutable step in an application's audit trail.
type StatusHistoryEntry struct {
	Status    ApplicationStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor"`
	Note      string            `json:"note,omitempty"`
}

// CanTransitionApplication reports whether from→to is a legal move.
func CanTransitionApplication(from, to ApplicationStatus) bool {
	for _, next := range applicationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateApplicationTransition returns InvalidTransition carrying the
// attempted pair when the move is not in the table.
func ValidateApplicationTransition(from, to ApplicationStatus) error {
	if !CanTransitionApplication(from, to) {
		return appErrors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// ApplicationTerminal reports whether the status admits no further moves.
func ApplicationTerminal(status ApplicationStatus) bool {
	return len(applicationTransitions[status]) == 0
}

// ValidApplicationStatus reports whether the value is a known status.
func ValidApplicationStatus(status ApplicationStatus) bool {
	switch status {
	case ApplicationApplied, ApplicationUnderReview, ApplicationShortlisted,
		ApplicationRejected, ApplicationSelected, ApplicationOfferIssued,
		ApplicationOfferAccepted, ApplicationOfferDeclined, ApplicationWithdrawn:
		return true
	}
	return false
}

// ValidateApplicationCreation gates application creation: the student must
// pass eligibility and the drive's derived registration phase must be open.
// The two causes are distinguished for caller-facing messaging.
func ValidateApplicationCreation(student StudentSnapshot, criteria Criteria, timeline Timeline, now time.Time) (EligibilityResult, error) {
	result := Evaluate(student, criteria)
	if !result.Eligible {
		return result, appErrors.Clone(appErrors.ErrNotEligible, "")
	}
	if timeline.RegistrationPhase(now) != RegistrationOpen {
		return result, appErrors.Clone(appErrors.ErrRegistrationClosed, "")
	}
	return result, nil
}

// ValidateHistory checks that consecutive history entries form a valid walk
// of the transition table, starting at APPLIED.
func ValidateHistory(history []StatusHistoryEntry) error {
	if len(history) == 0 {
		return nil
	}
	if history[0].Status != ApplicationApplied {
		return appErrors.InvalidTransition("", string(history[0].Status))
	}
	for i := 1; i < len(history); i++ {
		if err := ValidateApplicationTransition(history[i-1].Status, history[i].Status); err != nil {
			return err
		}
	}
	return nil
}
