package models

// EventKind is the closed set of domain events a projected snapshot can
// produce. Supervisors switch over it exhaustively; an unrecognized record
// status maps to EventUnknownStatus instead of being silently dropped.
type EventKind int

const (
	EventRequested EventKind = iota
	EventStarted
	EventDeclinedByTarget
	EventCancelledByRequester
	EventStoppedByTarget
	EventSelfieUploadedByMe
	EventSelfieUploadedByTarget
	EventSelfieDeclinedByMe
	EventSelfieDeclinedByTarget
	EventFinished
	EventRemoved
	EventUnknownStatus
)

var eventKindNames = map[EventKind]string{
	EventRequested:              "REQUESTED",
	EventStarted:                "STARTED",
	EventDeclinedByTarget:       "DECLINED_BY_TARGET",
	EventCancelledByRequester:   "CANCELLED_BY_REQUESTER",
	EventStoppedByTarget:        "STOPPED_BY_TARGET",
	EventSelfieUploadedByMe:     "SELFIE_UPLOADED_BY_ME",
	EventSelfieUploadedByTarget: "SELFIE_UPLOADED_BY_TARGET",
	EventSelfieDeclinedByMe:     "SELFIE_DECLINED_BY_ME",
	EventSelfieDeclinedByTarget: "SELFIE_DECLINED_BY_TARGET",
	EventFinished:               "FINISHED",
	EventRemoved:                "REMOVED",
	EventUnknownStatus:          "UNKNOWN_STATUS",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "INVALID"
}

// Event is a disambiguated domain event produced by projecting a raw
// snapshot from one role's point of view.
type Event struct {
	Kind      EventKind
	MicroDate *MicroDate
	// RawStatus carries the unrecognized status for EventUnknownStatus.
	RawStatus Status
}

// IntentKind is the closed set of local user triggers.
type IntentKind int

const (
	// Negotiation intents.
	IntentRequestDate IntentKind = iota
	IntentAccept
	IntentDecline
	IntentCancel
	IntentStop
	IntentSelfieDecline
	IntentSelfieApprove
	// IntentSelfieCaptured carries the local ref of a freshly taken selfie
	// and starts the upload.
	IntentSelfieCaptured
	// IntentSelfieUploaded fires when the upload collaborator reports the
	// terminal success for a selfie; it is not user-initiated.
	IntentSelfieUploaded
	// Map view intents.
	IntentMapSetCamera
	IntentMapMoveTo
	IntentMapAnimateToHeading
	IntentMapShowMyLocation
	IntentMapShowMeAndTarget
	IntentMapSwitchViewMode
)

var intentKindNames = map[IntentKind]string{
	IntentRequestDate:         "request_date",
	IntentAccept:              "accept",
	IntentDecline:             "decline",
	IntentCancel:              "cancel",
	IntentStop:                "stop",
	IntentSelfieDecline:       "selfie_decline",
	IntentSelfieApprove:       "selfie_approve",
	IntentSelfieCaptured:      "selfie_captured",
	IntentSelfieUploaded:      "selfie_uploaded",
	IntentMapSetCamera:        "map_set_camera",
	IntentMapMoveTo:           "map_move_to",
	IntentMapAnimateToHeading: "map_animate_to_heading",
	IntentMapShowMyLocation:   "map_show_my_location",
	IntentMapShowMeAndTarget:  "map_show_me_and_target",
	IntentMapSwitchViewMode:   "map_switch_view_mode",
}

func (k IntentKind) String() string {
	if name, ok := intentKindNames[k]; ok {
		return name
	}
	return "invalid"
}

// ParseIntentKind maps the wire name used by websocket clients back to the
// enum. The bool is false for unknown names.
func ParseIntentKind(name string) (IntentKind, bool) {
	for k, n := range intentKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Intent is one local trigger published on the bus. Optional fields carry
// the payload relevant to the kind.
type Intent struct {
	Kind IntentKind `json:"kind"`
	// TargetUID is the requested partner for IntentRequestDate.
	TargetUID string `json:"targetUID,omitempty"`
	// SessionID names the micro date an IntentSelfieCaptured belongs to.
	SessionID string `json:"sessionID,omitempty"`
	// PhotoURI is the local ref for IntentSelfieCaptured and the remote
	// ref for IntentSelfieUploaded.
	PhotoURI string `json:"photoURI,omitempty"`
	// Map command payload.
	Coords   *GeoPoint `json:"coords,omitempty"`
	Zoom     float64   `json:"zoom,omitempty"`
	Heading  float64   `json:"heading,omitempty"`
	Duration int       `json:"duration,omitempty"`
}

// Panel modes shown to the UI during a negotiation.
const (
	PanelOutgoingAwaitingAccept = "outgoingMicroDateAwaitingAccept"
	PanelOutgoingDeclined       = "outgoingMicroDateDeclined"
	PanelIncomingRequest        = "incomingMicroDateRequest"
	PanelActiveMicroDate        = "activeMicroDate"
	PanelMakeSelfie             = "makeSelfie"
	PanelSelfieUploadedByMe     = "selfieUploadedByMe"
	PanelSelfieUploadedByTarget = "selfieUploadedByTarget"
	PanelMicroDateStopped       = "microDateStopped"
)

// DirectiveKind is the closed set of outbound UI directives.
type DirectiveKind int

const (
	DirectiveShowPanel DirectiveKind = iota
	DirectiveHidePanel
	DirectiveNavigate
	// DirectiveMapCamera forwards one camera command to the device map;
	// Command names the move, the camera fields carry its parameters.
	DirectiveMapCamera
	DirectiveMapCommandFailed
	// DirectiveMapViewMode reports completion of a switch-view-mode phase;
	// Mode is one of "zoomOut", "zoomIn", "showTargetMicroDate".
	DirectiveMapViewMode
)

var directiveKindNames = map[DirectiveKind]string{
	DirectiveShowPanel:        "show_panel",
	DirectiveHidePanel:        "hide_panel",
	DirectiveNavigate:         "navigate",
	DirectiveMapCamera:        "map_camera",
	DirectiveMapCommandFailed: "map_command_failed",
	DirectiveMapViewMode:      "map_view_mode",
}

func (k DirectiveKind) String() string {
	if name, ok := directiveKindNames[k]; ok {
		return name
	}
	return "invalid"
}

// MarshalJSON writes the wire name so websocket clients see stable strings.
func (k DirectiveKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Directive is one outbound instruction to the UI layer.
type Directive struct {
	Kind DirectiveKind `json:"kind"`
	// Panel payload.
	Mode      string     `json:"mode,omitempty"`
	CanHide   bool       `json:"canHide,omitempty"`
	MicroDate *MicroDate `json:"microDate,omitempty"`
	Distance  float64    `json:"distance,omitempty"`
	// Navigate payload.
	Screen string `json:"screen,omitempty"`
	// Camera payload for DirectiveMapCamera; Command doubles as the failed
	// command name in DirectiveMapCommandFailed.
	Command  string     `json:"command,omitempty"`
	Center   *GeoPoint  `json:"center,omitempty"`
	Bounds   []GeoPoint `json:"bounds,omitempty"`
	Zoom     float64    `json:"zoom,omitempty"`
	Heading  float64    `json:"heading,omitempty"`
	Duration int        `json:"duration,omitempty"`
	Padding  int        `json:"padding,omitempty"`
	Error    string     `json:"error,omitempty"`
}
