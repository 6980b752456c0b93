package microdate

import "dater/backend/internal/models"

// Project maps one raw snapshot plus the local role to a disambiguated
// domain event. It is a pure function; re-projecting the same snapshot
// yields the same event. The second return is false when the snapshot
// produces no event for this role (the writer of a transition already knows
// about it through its local confirmation).
//
// Both supervisors use this single projector so the self/counterpart rules
// cannot drift between the outgoing and incoming views.
func Project(snap models.Snapshot, role models.Role) (models.Event, bool) {
	if snap.HasNoData || snap.MicroDate == nil {
		return models.Event{Kind: models.EventRemoved}, true
	}

	md := snap.MicroDate
	myID := md.ParticipantID(role)

	switch md.Status {
	case models.StatusRequest:
		return models.Event{Kind: models.EventRequested, MicroDate: md}, true

	case models.StatusAccept, models.StatusSelfieDeclined:
		if md.Status == models.StatusSelfieDeclined {
			// A declined selfie reopens the exchange; the decline itself is
			// still reported so the uploader can retake the photo.
			if md.DeclinedSelfieBy == myID {
				return models.Event{Kind: models.EventSelfieDeclinedByMe, MicroDate: md}, true
			}
			return models.Event{Kind: models.EventSelfieDeclinedByTarget, MicroDate: md}, true
		}
		return models.Event{Kind: models.EventStarted, MicroDate: md}, true

	case models.StatusDecline:
		// Only the Target may decline, so the Requester is the one to tell.
		if role == models.RoleRequester {
			return models.Event{Kind: models.EventDeclinedByTarget, MicroDate: md}, true
		}
		return models.Event{}, false

	case models.StatusCancelRequest:
		if role == models.RoleTarget {
			return models.Event{Kind: models.EventCancelledByRequester, MicroDate: md}, true
		}
		return models.Event{}, false

	case models.StatusStop:
		if md.StopBy != myID {
			return models.Event{Kind: models.EventStoppedByTarget, MicroDate: md}, true
		}
		return models.Event{}, false

	case models.StatusSelfieUploaded:
		if md.Selfie == nil || md.Selfie.UploadedBy == "" {
			// Malformed: the phase promises a selfie sub-record.
			return models.Event{Kind: models.EventUnknownStatus, MicroDate: md, RawStatus: md.Status}, true
		}
		if md.Selfie.UploadedBy == myID {
			return models.Event{Kind: models.EventSelfieUploadedByMe, MicroDate: md}, true
		}
		return models.Event{Kind: models.EventSelfieUploadedByTarget, MicroDate: md}, true

	case models.StatusFinished:
		if md.FinishBy != myID {
			return models.Event{Kind: models.EventFinished, MicroDate: md}, true
		}
		return models.Event{}, false

	default:
		return models.Event{Kind: models.EventUnknownStatus, MicroDate: md, RawStatus: md.Status}, true
	}
}
