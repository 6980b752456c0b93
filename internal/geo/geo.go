// Package geo holds coordinate math and the local last-known-location
// service that mirrors every fix into the user record.
package geo

import (
	"log"
	"math"
	"sync"

	"dater/backend/internal/models"
)

const earthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingTo returns the initial bearing from a to b in degrees [0, 360).
func BearingTo(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// Provider exposes the last-known local coordinates to the engines.
type Provider interface {
	Current() (models.GeoPoint, bool)
}

// LocationStore is the slice of storage the geo service writes through.
type LocationStore interface {
	UpdateUserLocation(uid string, coords models.GeoPoint) error
}

// Service keeps the device's last fix and mirrors it into storage so the
// counterpart can compute distances from the shared record side.
type Service struct {
	uid   string
	store LocationStore

	mu     sync.RWMutex
	coords models.GeoPoint
	has    bool
}

// NewService Constructor
func NewService(uid string, store LocationStore) *Service {
	return &Service{uid: uid, store: store}
}

// Update records a new fix and mirrors it into the user row. Mirror
// failures are logged, not fatal: the local copy stays authoritative for
// this process.
func (s *Service) Update(coords models.GeoPoint) {
	s.mu.Lock()
	s.coords = coords
	s.has = true
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.UpdateUserLocation(s.uid, coords); err != nil {
		log.Printf("ERROR: geo: failed to mirror location for %s: %v", s.uid, err)
	}
}

// Current returns the last fix, false when no fix has arrived yet.
func (s *Service) Current() (models.GeoPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coords, s.has
}
