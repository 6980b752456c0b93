// Package engine contains the two session supervisors that drive a
// micro-date negotiation: Outgoing for the Requester role and Incoming for
// the Target role. Each owns at most one live session at a time, forks the
// action handlers valid for the current phase, and tears everything down on
// a terminal event.
package engine

import (
	"context"
	"log"
	"sync"

	"dater/backend/internal/bus"
	"dater/backend/internal/feed"
	"dater/backend/internal/models"
)

// confirmKind labels the local confirmation a handler emits after its
// guarded write lands. The writer's supervisor transitions on these, not on
// the change-feed echo of its own write.
type confirmKind int

const (
	confirmRequested confirmKind = iota
	confirmAccepted
	confirmDeclined
	confirmCancelled
	confirmStopped
	confirmSelfieUploaded
	confirmSelfieDeclined
	confirmSelfieApproved
)

type confirm struct {
	kind confirmKind
	md   *models.MicroDate
}

// handlerFunc performs the single guarded write for one intent and returns
// the local confirmation. Errors leave the handler armed so the trigger can
// fire again.
type handlerFunc func(ctx context.Context, intent models.Intent) (confirm, error)

// session ties one MicroDate id to its live document feed and the set of
// currently forked action handlers. Only the owning supervisor goroutine
// mutates it.
type session struct {
	id   string
	feed *feed.Feed

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	confirms chan confirm
	handlers map[models.IntentKind]context.CancelFunc

	closeOnce sync.Once
}

func newSession(parent context.Context, id string, f *feed.Feed) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:       id,
		feed:     f,
		ctx:      ctx,
		cancel:   cancel,
		confirms: make(chan confirm, 8),
		handlers: make(map[models.IntentKind]context.CancelFunc),
	}
}

// close cancels every still-pending handler, stops the feed and waits until
// all handler goroutines have drained. Idempotent; cancelling a handler
// that already completed is a no-op. A write already in flight when close
// begins may still land (documented best-effort, see storage.UpdateMicroDate).
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.feed.Close()
		s.wg.Wait()
	})
}

// deliver queues a confirmation without ever blocking the handler. After a
// terminal event the supervisor stops reading; leftovers are dropped.
func (s *session) deliver(c confirm) {
	select {
	case s.confirms <- c:
	default:
	}
}

// fork starts one action handler: a goroutine blocked on its trigger
// subscription that performs one guarded write per firing. One-shot
// handlers terminate after a successful write; looping handlers stay armed
// for repeatable transitions. No-op when the handler is already running.
func (s *session) fork(b *bus.Service, kind models.IntentKind, loop bool, fire handlerFunc) {
	if _, running := s.handlers[kind]; running {
		return
	}

	hctx, hcancel := context.WithCancel(s.ctx)
	s.handlers[kind] = hcancel

	sub := b.Subscribe(kind)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer sub.Cancel()

		for {
			select {
			case <-hctx.Done():
				return
			case intent, ok := <-sub.C():
				if !ok {
					return
				}
				if hctx.Err() != nil {
					// Session already declared cancelled: no write.
					return
				}
				c, err := fire(hctx, intent)
				if err != nil {
					log.Printf("ERROR: engine: %s write failed for session %s: %v", kind, s.id, err)
					continue
				}
				s.deliver(c)
				if !loop {
					return
				}
			}
		}
	}()
}

// sync reconciles the running handler set against the intents valid for the
// record's current phase: newly valid handlers are forked, no-longer-valid
// ones are cancelled.
func (s *session) sync(valid []models.IntentKind, fork func(kind models.IntentKind)) {
	want := make(map[models.IntentKind]bool, len(valid))
	for _, k := range valid {
		want[k] = true
		if _, running := s.handlers[k]; !running {
			fork(k)
		}
	}
	for k, cancel := range s.handlers {
		if !want[k] {
			cancel()
			delete(s.handlers, k)
		}
	}
}
