// Package mapview drives the external map camera from local intents. It is
// structurally the same fork/cancel supervisor as the negotiation engines:
// one command in, exactly one handle call out, a typed failure directive on
// error and no retry.
package mapview

import "dater/backend/internal/models"

// CameraParams is one camera placement. Zero Zoom leaves zoom unchanged.
type CameraParams struct {
	Center     models.GeoPoint
	Zoom       float64
	Heading    float64
	DurationMs int
}

// Handle is the external map/camera collaborator. The saga only issues
// calls and observes success or failure.
type Handle interface {
	SetCamera(params CameraParams) error
	AnimateToHeading(heading float64, durationMs int) error
	MoveTo(coords models.GeoPoint, durationMs int) error
	FitBounds(a, b models.GeoPoint, paddingPx, durationMs int) error
}
