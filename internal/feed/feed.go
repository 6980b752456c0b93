// Package feed adapts a raw Redis pub/sub subscription into the typed,
// backpressured snapshot stream the session supervisors consume.
package feed

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"dater/backend/internal/models"
)

// ErrClosed is delivered as the terminal snapshot when the underlying
// subscription ends before the feed is closed locally.
var ErrClosed = errors.New("feed: subscription closed")

// Subscription is the part of *redis.PubSub the feed needs. Tests substitute
// an in-memory implementation.
type Subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// Feed delivers successive snapshots of one record (document feed) or of a
// filtered query (query feed). After a terminal error snapshot the channel
// is closed and the feed is dead.
type Feed struct {
	snapshots chan models.Snapshot
	sub       Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// NewDocumentFeed follows every change to a single record.
func NewDocumentFeed(sub Subscription) *Feed {
	return newFeed(sub, false)
}

// NewQueryFeed follows a limit-1 query and forwards only "added" changes,
// matching the at-most-one-active-match-at-a-time contract.
func NewQueryFeed(sub Subscription) *Feed {
	return newFeed(sub, true)
}

func newFeed(sub Subscription, addedOnly bool) *Feed {
	f := &Feed{
		snapshots: make(chan models.Snapshot, 8),
		sub:       sub,
		done:      make(chan struct{}),
	}
	go f.pump(addedOnly)
	return f
}

// Snapshots is the stream the supervisor selects on.
func (f *Feed) Snapshots() <-chan models.Snapshot {
	return f.snapshots
}

// Close stops the feed. Idempotent; pending snapshots are dropped.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		if err := f.sub.Close(); err != nil {
			log.Printf("ERROR: feed: closing subscription: %v", err)
		}
	})
}

func (f *Feed) pump(addedOnly bool) {
	defer close(f.snapshots)

	ch := f.sub.Channel()
	for {
		select {
		case <-f.done:
			return
		case msg, ok := <-ch:
			if !ok {
				// The adapter reconnects transparently; a closed channel
				// means the subscription is gone for good.
				select {
				case <-f.done:
				default:
					f.deliver(models.Snapshot{Err: ErrClosed})
				}
				return
			}

			var change models.DocumentChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Printf("ERROR: feed: malformed change payload on %s: %v", msg.Channel, err)
				continue
			}
			if addedOnly && change.Kind != models.ChangeAdded {
				continue
			}

			f.deliver(models.Snapshot{
				MicroDate: change.MicroDate,
				HasNoData: change.Kind == models.ChangeRemoved || change.MicroDate == nil,
			})
		}
	}
}

func (f *Feed) deliver(snap models.Snapshot) {
	select {
	case f.snapshots <- snap:
	case <-f.done:
	}
}
