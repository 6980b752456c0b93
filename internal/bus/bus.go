// Package bus is the local trigger fabric: typed user intents fan out to
// whichever action handlers are currently subscribed, and UI directives
// stream out to the connected client.
package bus

import (
	"log"
	"sync"

	"dater/backend/internal/models"
)

// Service fans intents out to subscribers and buffers outbound directives.
type Service struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription

	directives chan models.Directive
}

// NewService Constructor
func NewService() *Service {
	return &Service{
		subs:       make(map[int]*Subscription),
		directives: make(chan models.Directive, 64),
	}
}

// Subscription receives every published intent whose kind matches.
type Subscription struct {
	id    int
	kinds map[models.IntentKind]bool
	ch    chan models.Intent
	bus   *Service
	once  sync.Once
}

// Subscribe registers interest in the given intent kinds. The returned
// subscription must be cancelled when its owner stops listening.
func (b *Service) Subscribe(kinds ...models.IntentKind) *Subscription {
	sub := &Subscription{
		kinds: make(map[models.IntentKind]bool, len(kinds)),
		ch:    make(chan models.Intent, 8),
		bus:   b,
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// C is the intent stream for this subscription. It is closed by Cancel.
func (s *Subscription) C() <-chan models.Intent {
	return s.ch
}

// Cancel unregisters the subscription and closes its channel. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Publish delivers the intent to every matching subscriber. A subscriber
// that cannot keep up loses the intent rather than blocking the publisher.
func (b *Service) Publish(intent models.Intent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.kinds[intent.Kind] {
			continue
		}
		select {
		case sub.ch <- intent:
		default:
			log.Printf("ERROR: bus: dropping %s intent for slow subscriber %d", intent.Kind, sub.id)
		}
	}
}

// Directive queues an outbound UI directive. Drops on overflow so a gone
// client cannot stall a supervisor.
func (b *Service) Directive(d models.Directive) {
	select {
	case b.directives <- d:
	default:
		log.Printf("ERROR: bus: dropping %s directive, stream full", d.Kind)
	}
}

// Directives is the outbound stream consumed by the websocket client.
// It is a single shared channel, sized for exactly one consumer: the
// process is a per-user companion agent with one UI connection, so a
// second reader would steal directives from the first. A multi-client
// deployment needs per-connection fan-out here.
func (b *Service) Directives() <-chan models.Directive {
	return b.directives
}
