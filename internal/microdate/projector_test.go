package microdate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dater/backend/internal/microdate"
	"dater/backend/internal/models"
)

func record(status models.Status) *models.MicroDate {
	return &models.MicroDate{
		ID:         "md_1",
		RequestBy:  "user_A",
		RequestFor: "user_B",
		Status:     status,
		Active:     !status.Terminal(),
	}
}

// TestProjectRequested verifies both roles see a fresh request.
func TestProjectRequested(t *testing.T) {
	md := record(models.StatusRequest)

	for _, role := range []models.Role{models.RoleRequester, models.RoleTarget} {
		ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, role)
		assert.True(t, ok)
		assert.Equal(t, models.EventRequested, ev.Kind)
		assert.Equal(t, md, ev.MicroDate)
	}
}

// TestProjectStarted verifies ACCEPT projects as started for both roles.
func TestProjectStarted(t *testing.T) {
	md := record(models.StatusAccept)

	for _, role := range []models.Role{models.RoleRequester, models.RoleTarget} {
		ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, role)
		assert.True(t, ok)
		assert.Equal(t, models.EventStarted, ev.Kind)
	}
}

// TestProjectDecline verifies only the Requester is told about a decline:
// the Target wrote it and already knows through its local confirmation.
func TestProjectDecline(t *testing.T) {
	md := record(models.StatusDecline)

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventDeclinedByTarget, ev.Kind)

	_, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.False(t, ok, "the decline writer must not observe its own write")
}

// TestProjectCancel verifies the mirror rule for a cancelled request.
func TestProjectCancel(t *testing.T) {
	md := record(models.StatusCancelRequest)

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventCancelledByRequester, ev.Kind)

	_, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.False(t, ok)
}

// TestProjectStopDisambiguatesByActorStamp verifies STOP events are routed
// by the stopBy stamp, not by role: either side may stop.
func TestProjectStopDisambiguatesByActorStamp(t *testing.T) {
	md := record(models.StatusStop)
	md.StopBy = "user_A"

	_, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.False(t, ok, "the stopper must not observe its own stop")

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventStoppedByTarget, ev.Kind)

	md.StopBy = "user_B"
	ev, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventStoppedByTarget, ev.Kind)
}

// TestProjectSelfieUploaded verifies uploader/counterpart disambiguation.
func TestProjectSelfieUploaded(t *testing.T) {
	md := record(models.StatusSelfieUploaded)
	md.Selfie = &models.Selfie{UploadedBy: "user_A", PhotoURI: "ref://selfie.jpg"}

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventSelfieUploadedByMe, ev.Kind)

	ev, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventSelfieUploadedByTarget, ev.Kind)
}

// TestProjectSelfieUploadedWithoutSelfie verifies a malformed record in the
// selfie phase surfaces as a diagnosable unknown-status event.
func TestProjectSelfieUploadedWithoutSelfie(t *testing.T) {
	md := record(models.StatusSelfieUploaded)

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventUnknownStatus, ev.Kind)
	assert.Equal(t, models.StatusSelfieUploaded, ev.RawStatus)
}

// TestProjectSelfieDeclined verifies the decliner/uploader disambiguation
// on the reopened exchange.
func TestProjectSelfieDeclined(t *testing.T) {
	md := record(models.StatusSelfieDeclined)
	md.DeclinedSelfieBy = "user_B"

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventSelfieDeclinedByMe, ev.Kind)

	ev, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventSelfieDeclinedByTarget, ev.Kind)
}

// TestProjectFinished verifies only the non-finisher observes the finish.
func TestProjectFinished(t *testing.T) {
	md := record(models.StatusFinished)
	md.FinishBy = "user_B"

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventFinished, ev.Kind)

	_, ok = microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget)
	assert.False(t, ok)
}

// TestProjectRemoved verifies an empty snapshot projects as removal.
func TestProjectRemoved(t *testing.T) {
	ev, ok := microdate.Project(models.Snapshot{HasNoData: true}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventRemoved, ev.Kind)

	ev, ok = microdate.Project(models.Snapshot{}, models.RoleTarget)
	assert.True(t, ok)
	assert.Equal(t, models.EventRemoved, ev.Kind)
}

// TestProjectUnknownStatus verifies an unrecognized status is surfaced, not
// dropped.
func TestProjectUnknownStatus(t *testing.T) {
	md := record(models.Status("SOMETHING_NEW"))

	ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester)
	assert.True(t, ok)
	assert.Equal(t, models.EventUnknownStatus, ev.Kind)
	assert.Equal(t, models.Status("SOMETHING_NEW"), ev.RawStatus)
}

// TestProjectIsIdempotent verifies re-projecting the same snapshot yields
// the same event, so redelivered notifications are harmless.
func TestProjectIsIdempotent(t *testing.T) {
	md := record(models.StatusAccept)
	snap := models.Snapshot{MicroDate: md}

	first, ok1 := microdate.Project(snap, models.RoleTarget)
	second, ok2 := microdate.Project(snap, models.RoleTarget)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}
