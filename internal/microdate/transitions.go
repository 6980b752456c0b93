// Package microdate holds the pure protocol core of a micro-date
// negotiation: the transition table and the snapshot projector. It performs
// no I/O so both supervisors share one set of rules.
package microdate

import "dater/backend/internal/models"

// transition names one edge of the negotiation state machine together with
// the role allowed to write it.
type transition struct {
	from   models.Status
	to     models.Status
	writer models.Role // empty means either role
}

// The authority table. Creation (-> REQUEST) is not listed: it happens
// together with the record itself and is always the Requester's.
var transitions = []transition{
	{models.StatusRequest, models.StatusAccept, models.RoleTarget},
	{models.StatusRequest, models.StatusDecline, models.RoleTarget},
	{models.StatusRequest, models.StatusCancelRequest, models.RoleRequester},
	{models.StatusAccept, models.StatusStop, ""},
	{models.StatusAccept, models.StatusSelfieUploaded, ""},
	{models.StatusSelfieUploaded, models.StatusStop, ""},
	{models.StatusSelfieUploaded, models.StatusSelfieDeclined, ""},
	{models.StatusSelfieUploaded, models.StatusFinished, ""},
	// A declined selfie behaves like ACCEPT again: the exchange may retry.
	{models.StatusSelfieDeclined, models.StatusStop, ""},
	{models.StatusSelfieDeclined, models.StatusSelfieUploaded, ""},
}

// CanWrite reports whether the given role may move the record from one
// status to another. It backs tests and the handler-forking table; handlers
// themselves never re-check it before writing (no CAS, see UpdateMicroDate).
func CanWrite(from, to models.Status, role models.Role) bool {
	for _, t := range transitions {
		if t.from == from && t.to == to && (t.writer == "" || t.writer == role) {
			return true
		}
	}
	return false
}

// ValidIntents returns the local triggers a supervisor should keep an
// action handler alive for, given the record's current phase and the local
// role. Selfie review intents only apply to the counterpart of the uploader.
func ValidIntents(md *models.MicroDate, role models.Role) []models.IntentKind {
	if md == nil || md.Status.Terminal() || !md.Active {
		return nil
	}
	myID := md.ParticipantID(role)

	switch md.Status {
	case models.StatusRequest:
		if role == models.RoleRequester {
			return []models.IntentKind{models.IntentCancel}
		}
		return []models.IntentKind{models.IntentAccept, models.IntentDecline}
	case models.StatusAccept, models.StatusSelfieDeclined:
		return []models.IntentKind{models.IntentStop, models.IntentSelfieUploaded}
	case models.StatusSelfieUploaded:
		intents := []models.IntentKind{models.IntentStop}
		if md.Selfie != nil && md.Selfie.UploadedBy != myID {
			intents = append(intents, models.IntentSelfieDecline, models.IntentSelfieApprove)
		}
		return intents
	}
	return nil
}
