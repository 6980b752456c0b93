package engine_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dater/backend/internal/bus"
	"dater/backend/internal/feed"
	"dater/backend/internal/models"
)

// MockStorage is a mock implementation of the storage.Storage interface.
// It uses testify/mock to allow flexible expectation setting in tests.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateMicroDate(md *models.MicroDate) error {
	args := m.Called(md)
	return args.Error(0)
}

func (m *MockStorage) UpdateMicroDate(id string, fields map[string]any) (*models.MicroDate, error) {
	args := m.Called(id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MicroDate), args.Error(1)
}

func (m *MockStorage) GetMicroDate(id string) (*models.MicroDate, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MicroDate), args.Error(1)
}

func (m *MockStorage) FindActiveMicroDateFor(uid string, role models.Role) (*models.MicroDate, error) {
	args := m.Called(uid, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MicroDate), args.Error(1)
}

func (m *MockStorage) FindUnacknowledgedFinished(uid string) (*models.MicroDate, error) {
	args := m.Called(uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MicroDate), args.Error(1)
}

func (m *MockStorage) AcknowledgeFinished(id, uid string) error {
	args := m.Called(id, uid)
	return args.Error(0)
}

func (m *MockStorage) RecordPastMicroDate(uid, partnerID string, finishedAt time.Time) error {
	args := m.Called(uid, partnerID, finishedAt)
	return args.Error(0)
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUser(uid string) (*models.User, error) {
	args := m.Called(uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) UpdateUserLocation(uid string, coords models.GeoPoint) error {
	args := m.Called(uid, coords)
	return args.Error(0)
}

func (m *MockStorage) SubscribeToMicroDate(id string) *feed.Feed {
	args := m.Called(id)
	return args.Get(0).(*feed.Feed)
}

func (m *MockStorage) SubscribeToIncomingRequests(uid string) *feed.Feed {
	args := m.Called(uid)
	return args.Get(0).(*feed.Feed)
}

// fakeSub is an in-memory stand-in for the Redis pub/sub subscription
// underneath a feed; tests push document changes through it.
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

// stubLocation is a fixed-answer geo.Provider.
type stubLocation struct {
	coords models.GeoPoint
	has    bool
}

func (s *stubLocation) Current() (models.GeoPoint, bool) {
	return s.coords, s.has
}

// awaitDirective drains the outbound stream until a directive of the given
// kind arrives.
func awaitDirective(t *testing.T, b *bus.Service, kind models.DirectiveKind) models.Directive {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case d := <-b.Directives():
			if d.Kind == kind {
				return d
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s directive", kind)
			return models.Directive{}
		}
	}
}

// awaitPanel waits for a show-panel directive in the given mode.
func awaitPanel(t *testing.T, b *bus.Service, mode string) models.Directive {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case d := <-b.Directives():
			if d.Kind == models.DirectiveShowPanel && d.Mode == mode {
				return d
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s panel", mode)
			return models.Directive{}
		}
	}
}

// settle gives the supervisor goroutines time to wire their subscriptions.
func settle() {
	time.Sleep(50 * time.Millisecond)
}
