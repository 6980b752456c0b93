package mapview

import (
	"dater/backend/internal/bus"
	"dater/backend/internal/models"
)

// DirectiveHandle forwards camera moves to the device map as outbound
// directives. The actual camera lives in the mobile client; delivery is
// fire-and-forget, so calls never fail here.
type DirectiveHandle struct {
	Bus *bus.Service
}

// NewDirectiveHandle Constructor
func NewDirectiveHandle(b *bus.Service) *DirectiveHandle {
	return &DirectiveHandle{Bus: b}
}

func (h *DirectiveHandle) SetCamera(params CameraParams) error {
	center := params.Center
	h.Bus.Directive(models.Directive{
		Kind:     models.DirectiveMapCamera,
		Command:  "setCamera",
		Center:   &center,
		Zoom:     params.Zoom,
		Heading:  params.Heading,
		Duration: params.DurationMs,
	})
	return nil
}

func (h *DirectiveHandle) AnimateToHeading(heading float64, durationMs int) error {
	h.Bus.Directive(models.Directive{
		Kind:     models.DirectiveMapCamera,
		Command:  "animateToHeading",
		Heading:  heading,
		Duration: durationMs,
	})
	return nil
}

func (h *DirectiveHandle) MoveTo(coords models.GeoPoint, durationMs int) error {
	h.Bus.Directive(models.Directive{
		Kind:     models.DirectiveMapCamera,
		Command:  "moveTo",
		Center:   &coords,
		Duration: durationMs,
	})
	return nil
}

func (h *DirectiveHandle) FitBounds(a, b models.GeoPoint, paddingPx, durationMs int) error {
	h.Bus.Directive(models.Directive{
		Kind:     models.DirectiveMapCamera,
		Command:  "fitBounds",
		Bounds:   []models.GeoPoint{a, b},
		Padding:  paddingPx,
		Duration: durationMs,
	})
	return nil
}
