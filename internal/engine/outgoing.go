package engine

import (
	"context"
	"log"
	"time"

	"dater/backend/internal/bus"
	"dater/backend/internal/geo"
	"dater/backend/internal/microdate"
	"dater/backend/internal/models"
	"dater/backend/internal/storage"
)

// Outgoing supervises the Requester side: it creates the shared record on a
// request intent, follows it through the change feed, and keeps exactly the
// action handlers alive that the current phase allows the Requester.
type Outgoing struct {
	UID      string
	Storage  storage.Storage
	Bus      *bus.Service
	Location geo.Provider
}

// NewOutgoing Constructor
func NewOutgoing(uid string, s storage.Storage, b *bus.Service, loc geo.Provider) *Outgoing {
	return &Outgoing{UID: uid, Storage: s, Bus: b, Location: loc}
}

// Run is the supervisor loop: crash-recovery first, then one session at a
// time until the context ends. Transport and protocol errors never escape;
// they fall back to the idle state.
func (e *Outgoing) Run(ctx context.Context) {
	log.Println("Outgoing micro date engine started.")

	initSub := e.Bus.Subscribe(models.IntentRequestDate)
	defer initSub.Cancel()

	// Crash recovery: resume a record left active by a previous run.
	if md, err := e.Storage.FindActiveMicroDateFor(e.UID, models.RoleRequester); err != nil {
		log.Printf("ERROR: outgoing: recovery read failed: %v", err)
	} else if md != nil {
		log.Printf("Resuming outgoing micro date %s", md.ID)
		e.runSession(ctx, md, initSub)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case intent, ok := <-initSub.C():
			if !ok {
				return
			}
			md, err := e.createRequest(intent.TargetUID)
			if err != nil {
				log.Printf("ERROR: outgoing: failed to create request for %s: %v", intent.TargetUID, err)
				continue
			}
			e.runSession(ctx, md, initSub)
		}
	}
}

// createRequest creates the shared record in its initial REQUEST state. If
// an active record already exists the existing session is resumed instead:
// only one live session per role is allowed.
func (e *Outgoing) createRequest(targetUID string) (*models.MicroDate, error) {
	if existing, err := e.Storage.FindActiveMicroDateFor(e.UID, models.RoleRequester); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("ERROR: outgoing: protocol violation: request for %s while %s is active", targetUID, existing.ID)
		return existing, nil
	}

	md := &models.MicroDate{
		RequestBy:  e.UID,
		RequestFor: targetUID,
	}
	if err := e.Storage.CreateMicroDate(md); err != nil {
		return nil, err
	}
	return md, nil
}

func (e *Outgoing) runSession(ctx context.Context, md *models.MicroDate, initSub *bus.Subscription) {
	sess := newSession(ctx, md.ID, e.Storage.SubscribeToMicroDate(md.ID))
	defer sess.close()

	// Re-read after subscribing: pub/sub replays nothing, so a counterpart
	// write landing between the initial read and the SUBSCRIBE would
	// otherwise never be observed.
	if fresh, err := e.Storage.GetMicroDate(md.ID); err != nil {
		log.Printf("ERROR: outgoing: post-subscribe read of %s failed: %v", md.ID, err)
	} else {
		md = fresh
	}

	// Project the starting snapshot so a resumed session lands on the right
	// panel without waiting for a remote write.
	if ev, ok := microdate.Project(models.Snapshot{MicroDate: md}, models.RoleRequester); ok {
		if e.handleEvent(sess, ev) {
			return
		}
	}
	e.syncHandlers(sess, md)

	for {
		select {
		case <-ctx.Done():
			return

		case intent, ok := <-initSub.C():
			if !ok {
				return
			}
			log.Printf("ERROR: outgoing: protocol violation: request for %s while session %s is active", intent.TargetUID, sess.id)

		case snap, ok := <-sess.feed.Snapshots():
			if !ok {
				return
			}
			if snap.Err != nil {
				log.Printf("ERROR: outgoing: change feed for %s failed: %v", sess.id, snap.Err)
				return
			}
			ev, project := microdate.Project(snap, models.RoleRequester)
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

// syncHandlers forks the Requester handlers valid for the record's phase
// and cancels the rest.
func (e *Outgoing) syncHandlers(sess *session, md *models.MicroDate) {
	sess.sync(microdate.ValidIntents(md, models.RoleRequester), func(kind models.IntentKind) {
		switch kind {
		case models.IntentCancel:
			sess.fork(e.Bus, kind, false, e.cancelHandler(sess.id))
		case models.IntentStop:
			sess.fork(e.Bus, kind, false, stopHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieUploaded:
			sess.fork(e.Bus, kind, true, selfieUploadHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieDecline:
			sess.fork(e.Bus, kind, true, selfieDeclineHandler(e.Storage, sess.id, e.UID))
		case models.IntentSelfieApprove:
			sess.fork(e.Bus, kind, false, selfieApproveHandler(e.Storage, sess.id, e.UID))
		default:
			log.Printf("ERROR: outgoing: no handler for intent %s", kind)
		}
	})
}

func (e *Outgoing) cancelHandler(id string) handlerFunc {
	return func(ctx context.Context, _ models.Intent) (confirm, error) {
		md, err := e.Storage.UpdateMicroDate(id, map[string]any{
			"status":            models.StatusCancelRequest,
			"active":            false,
			"cancel_request_ts": time.Now().UTC(),
		})
		if err != nil {
			return confirm{}, err
		}
		return confirm{kind: confirmCancelled, md: md}, nil
	}
}

// handleEvent reacts to one projected domain event. Returns true when the
// event is terminal for the session.
func (e *Outgoing) handleEvent(sess *session, ev models.Event) bool {
	switch ev.Kind {
	case models.EventRequested:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelOutgoingAwaitingAccept,
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
		return false

	case models.EventDeclinedByTarget:
		e.Bus.Directive(models.Directive{
			Kind:      models.DirectiveShowPanel,
			Mode:      models.PanelOutgoingDeclined,
			CanHide:   true,
			MicroDate: ev.MicroDate,
		})
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
		// I rejected the target's selfie; back to the active-date panel
		// while they retake it.
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

	case models.EventCancelledByRequester:
		// Never projected for the Requester; terminal if it ever arrives.
		return true

	case models.EventRemoved:
		e.Bus.Directive(models.Directive{Kind: models.DirectiveHidePanel})
		return true

	case models.EventUnknownStatus:
		log.Printf("ERROR: outgoing: unknown micro date status %q on %s", ev.RawStatus, sess.id)
		return false
	}
	return false
}

// handleConfirm reacts to a local confirmation from one of this session's
// handlers. Returns true when the confirmed transition is terminal.
func (e *Outgoing) handleConfirm(sess *session, c confirm) bool {
	switch c.kind {
	case confirmCancelled, confirmStopped:
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

// distanceTo prefers the distance frozen at acceptance, falling back to a
// live computation from the counterpart's last geo point.
func (e *Outgoing) distanceTo(md *models.MicroDate) float64 {
	if md == nil {
		return 0
	}
	if md.StartDistance > 0 {
		return md.StartDistance
	}
	mine, ok := e.Location.Current()
	if !ok || md.RequestForGeoPoint == nil {
		return 0
	}
	return geo.Distance(mine, *md.RequestForGeoPoint)
}
