package mapview

import (
	"context"
	"log"
	"time"

	"dater/backend/internal/bus"
	"dater/backend/internal/config"
	"dater/backend/internal/geo"
	"dater/backend/internal/models"
)

// Service is the map camera saga. Commands arrive as map intents on the
// bus; each becomes exactly one Handle call. Failures are reported as a
// typed directive and never retried.
type Service struct {
	Bus      *bus.Service
	Location geo.Provider
	Handle   Handle

	// SettleDelay masks the camera animation before a view-mode switch is
	// reported complete. UX contract, not correctness.
	SettleDelay time.Duration

	zoomedOut bool
}

// NewService Constructor
func NewService(b *bus.Service, loc geo.Provider, handle Handle, settle time.Duration) *Service {
	return &Service{Bus: b, Location: loc, Handle: handle, SettleDelay: settle}
}

// Run consumes map intents until the context ends.
func (s *Service) Run(ctx context.Context) {
	log.Println("Map view saga started.")

	sub := s.Bus.Subscribe(
		models.IntentMapSetCamera,
		models.IntentMapMoveTo,
		models.IntentMapAnimateToHeading,
		models.IntentMapShowMyLocation,
		models.IntentMapShowMeAndTarget,
		models.IntentMapSwitchViewMode,
	)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case intent, ok := <-sub.C():
			if !ok {
				return
			}
			s.dispatch(ctx, intent)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, intent models.Intent) {
	switch intent.Kind {
	case models.IntentMapSetCamera:
		if intent.Coords == nil {
			return
		}
		s.call("setCamera", s.Handle.SetCamera(CameraParams{
			Center:     *intent.Coords,
			Zoom:       intent.Zoom,
			Heading:    intent.Heading,
			DurationMs: duration(intent),
		}))

	case models.IntentMapMoveTo:
		if intent.Coords == nil {
			return
		}
		s.call("moveTo", s.Handle.MoveTo(*intent.Coords, duration(intent)))

	case models.IntentMapAnimateToHeading:
		heading := intent.Heading
		// When the intent carries coordinates instead of an explicit
		// heading, turn the camera toward them.
		if intent.Coords != nil {
			mine, ok := s.Location.Current()
			if !ok {
				return
			}
			heading = geo.BearingTo(mine, *intent.Coords)
		}
		s.call("animateToHeading", s.Handle.AnimateToHeading(heading, duration(intent)))

	case models.IntentMapShowMyLocation:
		coords, ok := s.Location.Current()
		if !ok {
			return
		}
		zoom := intent.Zoom
		if zoom == 0 {
			zoom = config.ZoomClose
		}
		s.call("setCamera", s.Handle.SetCamera(CameraParams{
			Center:     coords,
			Zoom:       zoom,
			DurationMs: config.ShowLocationAnimationDuration,
		}))

	case models.IntentMapShowMeAndTarget:
		s.showMeAndTarget(intent)

	case models.IntentMapSwitchViewMode:
		s.switchViewMode(ctx, intent)
	}
}

// showMeAndTarget fits the camera around both participants. The UI sends
// the counterpart's last known coordinates with the intent.
func (s *Service) showMeAndTarget(intent models.Intent) {
	mine, ok := s.Location.Current()
	if !ok || intent.Coords == nil {
		return
	}
	s.call("fitBounds", s.Handle.FitBounds(mine, *intent.Coords,
		config.FitBoundsPadding, config.DefaultAnimationDuration))
}

// switchViewMode is the two-phase toggle: the first trigger zooms out on
// the user (or fits bounds on both parties when the intent carries target
// coordinates, i.e. during an active micro-date), the next one zooms back
// in. Completion is reported only after the settle delay so the UI does not
// race the camera animation.
func (s *Service) switchViewMode(ctx context.Context, intent models.Intent) {
	if intent.Coords != nil {
		// Active micro-date branch: show both parties instead of toggling.
		s.showMeAndTarget(intent)
		s.finishSwitch(ctx, "showTargetMicroDate")
		return
	}

	mine, ok := s.Location.Current()
	if !ok {
		return
	}

	if !s.zoomedOut {
		if !s.call("setCamera", s.Handle.SetCamera(CameraParams{
			Center:     mine,
			Zoom:       config.ZoomFar,
			Heading:    intent.Heading,
			DurationMs: config.DefaultAnimationDuration,
		})) {
			return
		}
		s.zoomedOut = true
		s.finishSwitch(ctx, "zoomOut")
		return
	}

	if !s.call("setCamera", s.Handle.SetCamera(CameraParams{
		Center:     mine,
		Zoom:       config.ZoomClose,
		Heading:    intent.Heading,
		DurationMs: config.DefaultAnimationDuration,
	})) {
		return
	}
	s.zoomedOut = false
	s.finishSwitch(ctx, "zoomIn")
}

// finishSwitch waits out the settle delay, then reports the phase.
func (s *Service) finishSwitch(ctx context.Context, mode string) {
	if s.SettleDelay > 0 {
		timer := time.NewTimer(s.SettleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	s.Bus.Directive(models.Directive{Kind: models.DirectiveMapViewMode, Mode: mode})
}

// call reports a failed handle call as a typed directive. Returns true on
// success.
func (s *Service) call(command string, err error) bool {
	if err == nil {
		return true
	}
	log.Printf("ERROR: mapview: %s failed: %v", command, err)
	s.Bus.Directive(models.Directive{
		Kind:    models.DirectiveMapCommandFailed,
		Command: command,
		Error:   err.Error(),
	})
	return false
}

func duration(intent models.Intent) int {
	if intent.Duration > 0 {
		return intent.Duration
	}
	return config.DefaultAnimationDuration
}
