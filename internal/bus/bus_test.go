package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dater/backend/internal/bus"
	"dater/backend/internal/models"
)

// TestPublishReachesMatchingSubscriber verifies kind-filtered fan-out.
func TestPublishReachesMatchingSubscriber(t *testing.T) {
	b := bus.NewService()
	stops := b.Subscribe(models.IntentStop)
	cancels := b.Subscribe(models.IntentCancel)
	defer stops.Cancel()
	defer cancels.Cancel()

	b.Publish(models.Intent{Kind: models.IntentStop})

	select {
	case intent := <-stops.C():
		assert.Equal(t, models.IntentStop, intent.Kind)
	case <-time.After(time.Second):
		t.Fatal("stop subscriber did not receive the intent")
	}

	select {
	case intent := <-cancels.C():
		t.Fatalf("cancel subscriber received unrelated %s intent", intent.Kind)
	default:
	}
}

// TestPublishFansOutToAllMatching verifies every matching subscriber gets
// its own copy.
func TestPublishFansOutToAllMatching(t *testing.T) {
	b := bus.NewService()
	first := b.Subscribe(models.IntentSelfieApprove)
	second := b.Subscribe(models.IntentSelfieApprove)
	defer first.Cancel()
	defer second.Cancel()

	b.Publish(models.Intent{Kind: models.IntentSelfieApprove})

	for _, sub := range []*bus.Subscription{first, second} {
		select {
		case <-sub.C():
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the intent")
		}
	}
}

// TestCancelClosesChannel verifies Cancel closes the stream and is
// idempotent.
func TestCancelClosesChannel(t *testing.T) {
	b := bus.NewService()
	sub := b.Subscribe(models.IntentAccept)

	sub.Cancel()
	sub.Cancel()

	_, open := <-sub.C()
	assert.False(t, open)

	// Publishing after cancel must not panic or deliver.
	b.Publish(models.Intent{Kind: models.IntentAccept})
}

// TestPublishDropsForSlowSubscriber verifies a full subscriber buffer never
// blocks the publisher.
func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := bus.NewService()
	sub := b.Subscribe(models.IntentStop)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Overrun the buffer without draining.
		for i := 0; i < 32; i++ {
			b.Publish(models.Intent{Kind: models.IntentStop})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

// TestDirectiveStream verifies directives come out in order.
func TestDirectiveStream(t *testing.T) {
	b := bus.NewService()

	b.Directive(models.Directive{Kind: models.DirectiveShowPanel, Mode: models.PanelIncomingRequest})
	b.Directive(models.Directive{Kind: models.DirectiveHidePanel})

	first := <-b.Directives()
	second := <-b.Directives()
	assert.Equal(t, models.DirectiveShowPanel, first.Kind)
	assert.Equal(t, models.PanelIncomingRequest, first.Mode)
	assert.Equal(t, models.DirectiveHidePanel, second.Kind)
}
