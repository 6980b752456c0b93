package engine

import (
	"context"
	"log"
	"time"

	"dater/backend/internal/bus"
	"dater/backend/internal/feed"
	"dater/backend/internal/geo"
	"dater/backend/internal/microdate"
	"dater/backend/internal/models"
	"dater/backend/internal/storage"
)

// Incoming supervises the Target side: it discovers new requests through
// the limit-1 query feed, replays an unacknowledged finished date on cold
// start, and drives one session at a time through the change feed.
type Incoming struct {
	UID      string
	Storage  storage.Storage
	Bus      *bus.Service
	Location geo.Provider
}

// NewIncoming Constructor
func NewIncoming(uid string, s storage.Storage, b *bus.Service, loc geo.Provider) *Incoming {
	return &Incoming{UID: uid, Storage: s, Bus: b, Location: loc}
}

// Run is the supervisor loop for the Target role.
func (e *Incoming) Run(ctx context.Context) {
	log.Println("Incoming micro date engine started.")

	// A finished date the user never saw must be replayed exactly once
	// before any new session is accepted.
	if md, err := e.Storage.FindUnacknowledgedFinished(e.UID); err != nil {
		log.Printf("ERROR: incoming: finished-replay read failed: %v", err)
	} else if md != nil {
		log.Printf("Replaying unacknowledged finished micro date %s", md.ID)
		finishObserved(e.Storage, e.Bus, e.UID, md)
	}

	requests := e.Storage.SubscribeToIncomingRequests(e.UID)
	defer requests.Close()

	// Crash recovery: resume a record left active for this role. An
	// "added" event racing with this read is tolerated in runSession.
	if md, err := e.Storage.FindActiveMicroDateFor(e.UID, models.RoleTarget); err != nil {
		log.Printf("ERROR: incoming: recovery read failed: %v", err)
	} else if md != nil {
		log.Printf("Resuming incoming micro date %s", md.ID)
		e.runSession(ctx, md, requests)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-requests.Snapshots():
			if !ok {
				return
			}
			if snap.Err != nil {
				log.Printf("ERROR: incoming: request feed failed: %v", snap.Err)
				return
			}
			if snap.MicroDate == nil {
				continue
			}
			e.runSession(ctx, snap.MicroDate, requests)
		}
	}
}

func (e *Incoming) runSession(ctx context.Context, md *models.MicroDate, requests *feed.Feed) {
	sess := newSession(ctx, md.ID, e.Storage.SubscribeToMicroDate(md.ID))
	defer sess.close()

	// Re-read after subscribing: pub/sub replays nothing, so a requester
	// write landing between the query notification and the SUBSCRIBE would
	// otherwise never be observed.
	if fresh, err := e.Storage.GetMicroDate(md.ID); err != nil {
		log.Printf("ERROR: incoming: post-subscribe read of %s failed: %v", md.ID, err)
	} else {
		md = fresh
	}

	if ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleTarget); ok {
		if e.handleEvent(sess, ev) {
			return
		}
	}
	e.syncHandlers(sess, md)

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-requests.Snapshots():
			if !ok {
				return
			}
			if snap.Err != nil {
				log.Printf("ERROR: incoming: request feed failed during session %s: %v", sess.id, snap.Err)
				return
			}
			// The same record racing with cold-start recovery is expected;
			// a different record while a session is live is not.
			if snap.MicroDate != nil && snap.MicroDate.ID != sess.id {
				log.Printf("ERROR: incoming: protocol violation: request %s while session %s is active", snap.MicroDate.ID, sess.id)
			}

		case snap, ok := <-sess.feed.Snapshots():
			if !ok {
				return
			}
			if snap.Err != nil {
				log.Printf("ERROR: incoming: change feed for %s failed: %v", sess.id, snap.Err)
				return
			}
			ev, project := microdate.Project(snap, models.RoleTarget)
			if !project {
				continue
			}
			if e.handleEvent(sess, ev) {
				return
			}
			e.syncHandlers(sess, snap.MicroDate)

		case c := <-sess.confirms:
			if e.handleConfirm(sess, c) {
				return
			}
			if c.md != nil {
				e.syncHandlers(sess, c.md)
			}
		}
	}
}

func (e *Incoming) syncHandlers(sess *session, md *models.MicroDate) {
	sess.sync(microdate.ValidIntents(md, models.RoleTarget), func(kind models.IntentKind) {
		switch kind {
		case models.IntentAccept:
			sess.fork(e.Bus, kind, false, e.acceptHandler(sess.id, md.RequestBy))
		case models.IntentDecline:
			sess.fork(e.Bus, kind, false, e.declineHandler(sess.id))
		case models.IntentStop:
			sess.fork(e.Bus, kind, false, stopHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieUploaded:
			sess.fork(e.Bus, kind, true, selfieUploadHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieDecline:
			sess.fork(e.Bus, kind, true, selfieDeclineHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieApprove:
			sess.fork(e.Bus, kind, false, selfieApproveHandler(e.Storage, sess.id, e.UID))
		default:
			log.Printf("ERROR: incoming: no handler for intent %s", kind)
		}
	})
}

// acceptHandler writes the ACCEPT transition, freezing both geo points and
// the start distance on the record. Missing location data degrades to an
// acceptance without distance rather than failing the transition.
func (e *Incoming) acceptHandler(id, requesterUID string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		fields := map[string]any{
			"status":    models.StatusAccept,
			"accept_ts": time.Now().UTC(),
		}

		myCoords, haveMine := e.Location.Current()
		if haveMine {
			fields["request_for_geo_latitude"] = myCoords.Latitude
			fields["request_for_geo_longitude"] = myCoords.Longitude
		}

		var requesterGeo *models.GeoPoint
		requester, err := e.Storage.GetUser(requesterUID)
		if err != nil {
			log.Printf("ERROR: incoming: accept without requester geo, lookup of %s failed: %v", requesterUID, err)
		} else if requester.GeoPoint != nil {
			requesterGeo = requester.GeoPoint
			fields["request_by_geo_latitude"] = requesterGeo.Latitude
			fields["request_by_geo_longitude"] = requesterGeo.Longitude
		}

		if haveMine && requesterGeo != nil {
			fields["start_distance"] = geo.Distance(*requesterGeo, myCoords)
		}

		md, err := e.Storage.UpdateMicroDate(id, fields)
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmAccepted, md: md}, nil
	}
}

func (e *Incoming) declineHandler(id string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		md, err := e.Storage.UpdateMicroDate(id, map[string]any{
			"status":     models.StatusDecline,
			"active":     false,
			"decline_ts": time.Now().UTC(),
		})
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmDeclined, md: md}, nil
	}
}

func (e *Incoming) handleEvent(sess *session, ev models.Event) bool {
	switch ev.Kind {
	case models.EventRequested:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelIncomingRequest,
			CanHide:   false,
			MicroDate: ev.MicroDate,
		})
		return false

	case models.EventStarted:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelActiveMicroDate,
			CanHide:   true,
			MicroDate: ev.MicroDate,
			Distance:  e.distanceTo(ev.MicroDate),
		})
		// Recenter the map on the freshly started date.
		e.Bus.Publish(models.Intent{Kind: models.IntentMapShowMyLocation})
		return false

	case models.EventCancelledByRequester:
		e.Bus.Directive(models.Directive{Kind: models.DirectiveHidePanel})
		return true

	case models.EventStoppedByTarget:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelMicroDateStopped,
			CanHide:   true,
			MicroDate: ev.MicroDate,
		})
		return true

	case models.EventSelfieUploadedByMe:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelSelfieUploadedByMe,
			MicroDate: ev.MicroDate,
		})
		return false

	case models.EventSelfieUploadedByTarget:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelSelfieUploadedByTarget,
			MicroDate: ev.MicroDate,
		})
		return false

	case models.EventSelfieDeclinedByMe:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelActiveMicroDate,
			CanHide: true, MicroDate: ev.MicroDate, Distance: e.distanceTo(ev.MicroDate),
		})
		return false

	case models.EventSelfieDeclinedByTarget:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelMakeSelfie,
			MicroDate: ev.MicroDate,
		})
		return false

	case models.EventFinished:
		finishObserved(e.Storage, e.Bus, e.UID, ev.MicroDate)
		return true

	case models.EventDeclinedByTarget:
		// Never projected for the Target; terminal if it ever arrives.
		return true

	case models.EventRemoved:
		e.Bus.Directive(models.Directive{Kind: models.DirectiveHidePanel})
		return true

	case models.EventUnknownStatus:
		log.Printf("ERROR: incoming: unknown micro date status %q on %s", ev.RawStatus, sess.id)
		return false
	}
	return false
}

func (e *Incoming) handleConfirm(sess *session, c confirm) bool {
	switch c.kind {
	case confirmAccepted:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelActiveMicroDate,
			CanHide:   true,
			MicroDate: c.md,
			Distance:  e.distanceTo(c.md),
		})
		e.Bus.Publish(models.Intent{Kind: models.IntentMapShowMyLocation})
		return false

	case confirmDeclined, confirmStopped:
		e.Bus.Directive(models.Directive{Kind: models.DirectiveHidePanel})
		return true

	case confirmSelfieUploaded:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelSelfieUploadedByMe,
			MicroDate: c.md,
		})
		return false

	case confirmSelfieDeclined:
		e.Bus.Directive(models.Directive{
			Kind: models.DirectiveShowPanel, Mode: models.PanelMakeSelfie,
			MicroDate: c.md,
		})
		return false

	case confirmSelfieApproved:
		e.Bus.Directive(models.Directive{Kind: models.DirectiveNavigate, Screen: "MicroDateScreen", MicroDate: c.md})
		e.Bus.Directive(models.Directive{Kind: models.DirectiveHidePanel})
		return true
	}
	return false
}

func (e *Incoming) distanceTo(md *models.MicroDate) float64 {
	if md == nil {
		return 0
	}
	if md.StartDistance > 0 {
		return md.StartDistance
	}
	mine, ok := e.Location.Current()
	if !ok || md.RequestByGeoPoint == nil {
		return 0
	}
	return geo.Distance(mine, *md.RequestByGeoPoint)
}
