package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campushire/placement-api/pkg/errors"
)

func TestValidateOfferCreationRequiresSelected(t *testing.T) {
	for _, status := range allApplicationStatuses {
		err := ValidateOfferCreation(status, false)
		if status == ApplicationSelected || status == ApplicationOfferIssued {
			require.NoErrorf(t, err, "status %s", status)
			continue
		}
		require.ErrorIsf(t, err, appErrors.ErrApplicationNotSelected, "status %s", status)
	}
}

func TestValidateOfferCreationDuplicatePending(t *testing.T) {
	err := ValidateOfferCreation(ApplicationSelected, true)
	require.ErrorIs(t, err, appErrors.ErrDuplicatePendingOffer)

	// The duplicate guard also blocks re-issuing over a live pending offer.
	err = ValidateOfferCreation(ApplicationOfferIssued, true)
	require.ErrorIs(t, err, appErrors.ErrDuplicatePendingOffer)
}

func TestValidateOfferResponseAcceptBeforeExpiry(t *testing.T) {
	issued := time.Now().UTC()
	expiry := issued.Add(72 * time.Hour)

	outcome, err := ValidateOfferResponse(OfferPending, OfferActionAccept, expiry, issued.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferAccepted, outcome.Next)
	assert.False(t, outcome.Expired)
}

func TestValidateOfferResponseExpiryIsLazy(t *testing.T) {
	issued := time.Now().UTC()
	expiry := issued.Add(72 * time.Hour)

	// attempt at T+73h: fails with OfferExpired and the offer resolves to
	// EXPIRED as a side effect of the attempt
	outcome, err := ValidateOfferResponse(OfferPending, OfferActionAccept, expiry, issued.Add(73*time.Hour))
	require.ErrorIs(t, err, appErrors.ErrOfferExpired)
	assert.True(t, outcome.Expired)
	assert.Equal(t, OfferExpired, outcome.Next)

	// rejection past expiry resolves the same way
	outcome, err = ValidateOfferResponse(OfferPending, OfferActionReject, expiry, issued.Add(73*time.Hour))
	require.ErrorIs(t, err, appErrors.ErrOfferExpired)
	assert.True(t, outcome.Expired)
}

func TestValidateOfferResponseRejectAndCounter(t *testing.T) {
	expiry := time.Now().UTC().Add(time.Hour)
	now := time.Now().UTC()

	outcome, err := ValidateOfferResponse(OfferPending, OfferActionReject, expiry, now)
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, outcome.Next)

	outcome, err = ValidateOfferResponse(OfferPending, OfferActionCounter, expiry, now)
	require.NoError(t, err)
	assert.Equal(t, OfferCountered, outcome.Next)
}

func TestValidateOfferResponseNonPendingRefused(t *testing.T) {
	expiry := time.Now().UTC().Add(time.Hour)
	now := time.Now().UTC()

	for _, status := range []OfferStatus{OfferAccepted, OfferRejected, OfferCountered, OfferExpired} {
		_, err := ValidateOfferResponse(status, OfferActionAccept, expiry, now)
		require.ErrorIsf(t, err, appErrors.ErrInvalidTransition, "status %s", status)
	}
}

func TestOfferTerminal(t *testing.T) {
	assert.False(t, OfferTerminal(OfferPending))
	for _, status := range []OfferStatus{OfferAccepted, OfferRejected, OfferCountered, OfferExpired} {
		assert.Truef(t, OfferTerminal(status), "%s", status)
	}
}
