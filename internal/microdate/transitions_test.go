package microdate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dater/backend/internal/microdate"
	"dater/backend/internal/models"
)

// TestCanWriteRequestPhase verifies the role split on a pending request:
// the Target answers, the Requester may only withdraw.
func TestCanWriteRequestPhase(t *testing.T) {
	assert.True(t, microdate.CanWrite(models.StatusRequest, models.StatusAccept, models.RoleTarget))
	assert.True(t, microdate.CanWrite(models.StatusRequest, models.StatusDecline, models.RoleTarget))
	assert.True(t, microdate.CanWrite(models.StatusRequest, models.StatusCancelRequest, models.RoleRequester))

	assert.False(t, microdate.CanWrite(models.StatusRequest, models.StatusAccept, models.RoleRequester))
	assert.False(t, microdate.CanWrite(models.StatusRequest, models.StatusDecline, models.RoleRequester))
	assert.False(t, microdate.CanWrite(models.StatusRequest, models.StatusCancelRequest, models.RoleTarget))
}

// TestCanWriteActivePhase verifies either side may stop or upload a selfie
// once the date is running.
func TestCanWriteActivePhase(t *testing.T) {
	for _, role := range []models.Role{models.RoleRequester, models.RoleTarget} {
		assert.True(t, microdate.CanWrite(models.StatusAccept, models.StatusStop, role))
		assert.True(t, microdate.CanWrite(models.StatusAccept, models.StatusSelfieUploaded, role))
	}
}

// TestCanWriteSelfieDeclinedReopens verifies a declined selfie behaves like
// the active phase again.
func TestCanWriteSelfieDeclinedReopens(t *testing.T) {
	for _, role := range []models.Role{models.RoleRequester, models.RoleTarget} {
		assert.True(t, microdate.CanWrite(models.StatusSelfieDeclined, models.StatusSelfieUploaded, role))
		assert.True(t, microdate.CanWrite(models.StatusSelfieDeclined, models.StatusStop, role))
	}
}

// TestCanWriteNoExitFromTerminal verifies terminal statuses have no edges.
func TestCanWriteNoExitFromTerminal(t *testing.T) {
	terminals := []models.Status{
		models.StatusDecline, models.StatusCancelRequest,
		models.StatusStop, models.StatusFinished,
	}
	targets := []models.Status{
		models.StatusRequest, models.StatusAccept,
		models.StatusSelfieUploaded, models.StatusFinished,
	}
	for _, from := range terminals {
		for _, to := range targets {
			assert.False(t, microdate.CanWrite(from, to, models.RoleRequester),
				"no edge %s -> %s", from, to)
			assert.False(t, microdate.CanWrite(from, to, models.RoleTarget),
				"no edge %s -> %s", from, to)
		}
	}
}

// TestValidIntentsRequestPhase verifies the handler sets forked on a
// pending request.
func TestValidIntentsRequestPhase(t *testing.T) {
	md := record(models.StatusRequest)

	assert.Equal(t,
		[]models.IntentKind{models.IntentCancel},
		microdate.ValidIntents(md, models.RoleRequester))
	assert.Equal(t,
		[]models.IntentKind{models.IntentAccept, models.IntentDecline},
		microdate.ValidIntents(md, models.RoleTarget))
}

// TestValidIntentsActivePhase verifies both sides get stop + upload while
// the date runs.
func TestValidIntentsActivePhase(t *testing.T) {
	md := record(models.StatusAccept)
	want := []models.IntentKind{models.IntentStop, models.IntentSelfieUploaded}

	assert.Equal(t, want, microdate.ValidIntents(md, models.RoleRequester))
	assert.Equal(t, want, microdate.ValidIntents(md, models.RoleTarget))
}

// TestValidIntentsSelfieReview verifies only the uploader's counterpart may
// review the pending selfie.
func TestValidIntentsSelfieReview(t *testing.T) {
	md := record(models.StatusSelfieUploaded)
	md.Selfie = &models.Selfie{UploadedBy: "user_A"}

	assert.Equal(t,
		[]models.IntentKind{models.IntentStop},
		microdate.ValidIntents(md, models.RoleRequester),
		"the uploader may only stop while the review is pending")
	assert.Equal(t,
		[]models.IntentKind{models.IntentStop, models.IntentSelfieDecline, models.IntentSelfieApprove},
		microdate.ValidIntents(md, models.RoleTarget))
}

// TestValidIntentsTerminalAndNil verifies dead records fork nothing.
func TestValidIntentsTerminalAndNil(t *testing.T) {
	assert.Nil(t, microdate.ValidIntents(nil, models.RoleRequester))

	md := record(models.StatusStop)
	assert.Nil(t, microdate.ValidIntents(md, models.RoleRequester))
	assert.Nil(t, microdate.ValidIntents(md, models.RoleTarget))

	inactive := record(models.StatusAccept)
	inactive.Active = false
	assert.Nil(t, microdate.ValidIntents(inactive, models.RoleTarget))
}
