package lifecycle

import (
	"time"

	appErrors "github.com/campushire/placement-api/pkg/errors"
)

// OfferStatus is the lifecycle state of an issued offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferCountered OfferStatus = "COUNTERED"
	OfferExpired   OfferStatus = "EXPIRED"
)

// OfferAction is a student response to a pending offer.
type OfferAction string

const (
	OfferActionAccept  OfferAction = "ACCEPT"
	OfferActionReject  OfferAction = "REJECT"
	OfferActionCounter OfferAction = "COUNTER"
)

// OfferTerminal reports whether the status admits no further student action.
// COUNTERED is terminal from the student side: the company resolves it with
// a fresh offer or a rejection.
func OfferTerminal(status OfferStatus) bool {
	return status != OfferPending
}

// ValidateOfferCreation gates offer issuance. A SELECTED application may
// receive its first offer; an OFFER_ISSUED application may receive a fresh
// one once the previous offer resolved (countered, expired or rejected).
// At most one pending offer may exist per application either way.
func ValidateOfferCreation(applicationStatus ApplicationStatus, hasPendingOffer bool) error {
	switch applicationStatus {
	case ApplicationSelected, ApplicationOfferIssued:
	default:
		return appErrors.Clone(appErrors.ErrApplicationNotSelected, "")
	}
	if hasPendingOffer {
		return appErrors.Clone(appErrors.ErrDuplicatePendingOffer, "")
	}
	return nil
}

// OfferResponseOutcome describes the status an offer should move to for a
// given action, or why the action is refused.
type OfferResponseOutcome struct {
	Next OfferStatus
	// Expired is set when the attempt found the offer past its expiry; the
	// offer must be persisted as EXPIRED even though the action failed.
	Expired bool
}

// ValidateOfferResponse applies the response rules for a pending offer.
// Expiry is evaluated lazily here, at attempt time: a pending offer past its
// expiry auto-resolves to EXPIRED and the action fails with OfferExpired.
// Rejection is allowed up to the moment of expiry resolution.
func ValidateOfferResponse(status OfferStatus, action OfferAction, expiresAt, now time.Time) (OfferResponseOutcome, error) {
	if status != OfferPending {
		return OfferResponseOutcome{}, appErrors.InvalidTransition(string(status), string(actionTarget(action)))
	}
	if !expiresAt.IsZero() && now.After(expiresAt) {
		return OfferResponseOutcome{Next: OfferExpired, Expired: true}, appErrors.Clone(appErrors.ErrOfferExpired, "")
	}
	return OfferResponseOutcome{Next: actionTarget(action)}, nil
}

func actionTarget(action OfferAction) OfferStatus {
	switch action {
	case OfferActionAccept:
		return OfferAccepted
	case OfferActionReject:
		return OfferRejected
	case OfferActionCounter:
		return OfferCountered
	default:
		return OfferStatus(action)
	}
}

// ValidOfferAction reports whether the value is a known response action.
func ValidOfferAction(action OfferAction) bool {
	switch action {
	case OfferActionAccept, OfferActionReject, OfferActionCounter:
		return true
	}
	return false
}
