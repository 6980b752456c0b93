package feed_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dater/backend/internal/feed"
	"dater/backend/internal/models"
)

// fakeSub is an in-memory stand-in for *redis.PubSub.
type fakeSub struct {
	msgs chan *redis.Message
	once sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{msgs: make(chan *redis.Message, 16)}
}

func (f *fakeSub) Channel(opts ...redis.ChannelOption) <-chan *redis.Message {
	return f.msgs
}

func (f *fakeSub) Close() error {
	f.once.Do(func() { close(f.msgs) })
	return nil
}

func (f *fakeSub) publish(t *testing.T, kind string, md *models.MicroDate) {
	t.Helper()
	payload, err := json.Marshal(models.DocumentChange{Kind: kind, MicroDate: md})
	require.NoError(t, err)
	f.msgs <- &redis.Message{Payload: string(payload)}
}

func awaitSnapshot(t *testing.T, f *feed.Feed) models.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-f.Snapshots():
		require.True(t, ok, "snapshot stream closed unexpectedly")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return models.Snapshot{}
	}
}

// TestDocumentFeedForwardsUpdates verifies every change kind flows through
// a document feed as a typed snapshot.
func TestDocumentFeedForwardsUpdates(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewDocumentFeed(sub)
	defer f.Close()

	md := &models.MicroDate{ID: "md_1", Status: models.StatusAccept}
	sub.publish(t, models.ChangeUpdated, md)

	snap := awaitSnapshot(t, f)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.HasNoData)
	require.NotNil(t, snap.MicroDate)
	assert.Equal(t, "md_1", snap.MicroDate.ID)
	assert.Equal(t, models.StatusAccept, snap.MicroDate.Status)
}

// TestDocumentFeedRemoval verifies a removal arrives as an empty snapshot.
func TestDocumentFeedRemoval(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewDocumentFeed(sub)
	defer f.Close()

	sub.publish(t, models.ChangeRemoved, nil)

	snap := awaitSnapshot(t, f)
	assert.True(t, snap.HasNoData)
	assert.Nil(t, snap.MicroDate)
}

// TestQueryFeedFiltersToAdded verifies the limit-1 query feed only emits
// "added" changes.
func TestQueryFeedFiltersToAdded(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewQueryFeed(sub)
	defer f.Close()

	sub.publish(t, models.ChangeUpdated, &models.MicroDate{ID: "md_noise"})
	sub.publish(t, models.ChangeRemoved, nil)
	sub.publish(t, models.ChangeAdded, &models.MicroDate{ID: "md_fresh", Status: models.StatusRequest})

	snap := awaitSnapshot(t, f)
	require.NotNil(t, snap.MicroDate)
	assert.Equal(t, "md_fresh", snap.MicroDate.ID)
}

// TestFeedSkipsMalformedPayload verifies garbage on the channel is dropped
// without killing the feed.
func TestFeedSkipsMalformedPayload(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewDocumentFeed(sub)
	defer f.Close()

	sub.msgs <- &redis.Message{Payload: "{not json"}
	sub.publish(t, models.ChangeUpdated, &models.MicroDate{ID: "md_ok"})

	snap := awaitSnapshot(t, f)
	require.NotNil(t, snap.MicroDate)
	assert.Equal(t, "md_ok", snap.MicroDate.ID)
}

// TestFeedTerminalErrorOnSubscriptionLoss verifies a subscription that dies
// underneath the feed yields one terminal error snapshot, then closes.
func TestFeedTerminalErrorOnSubscriptionLoss(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewDocumentFeed(sub)

	sub.Close()

	snap := awaitSnapshot(t, f)
	assert.ErrorIs(t, snap.Err, feed.ErrClosed)

	select {
	case _, open := <-f.Snapshots():
		assert.False(t, open, "stream must close after the terminal snapshot")
	case <-time.After(time.Second):
		t.Fatal("stream did not close after the terminal snapshot")
	}
}

// TestFeedCloseIsIdempotent verifies local close drops pending snapshots
// and may be called repeatedly.
func TestFeedCloseIsIdempotent(t *testing.T) {
	sub := newFakeSub()
	f := feed.NewDocumentFeed(sub)

	f.Close()
	f.Close()

	select {
	case snap, open := <-f.Snapshots():
		if open {
			assert.NoError(t, snap.Err, "local close must not produce an error snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
}
