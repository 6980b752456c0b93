package models

import "time"

// Status is the authoritative phase indicator of a MicroDate negotiation.
type Status string

const (
	StatusRequest        Status = "REQUEST"
	StatusAccept         Status = "ACCEPT"
	StatusDecline        Status = "DECLINE"
	StatusCancelRequest  Status = "CANCEL_REQUEST"
	StatusStop           Status = "STOP"
	StatusSelfieUploaded Status = "SELFIE_UPLOADED"
	StatusSelfieDeclined Status = "SELFIE_DECLINED"
	StatusFinished       Status = "FINISHED"
)

// Terminal reports whether the status ends the negotiation. Entering a
// terminal status always clears the record's Active flag.
func (s Status) Terminal() bool {
	switch s {
	case StatusDecline, StatusCancelRequest, StatusStop, StatusFinished:
		return true
	}
	return false
}

// Role identifies which side of a micro-date this process plays.
// The Requester created the record; the Target responds to it.
type Role string

const (
	RoleRequester Role = "requester"
	RoleTarget    Role = "target"
)

// GeoPoint is a plain WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Selfie is the sub-record present only during the selfie exchange phase.
type Selfie struct {
	UploadedBy string `json:"uploadedBy"`
	PhotoURI   string `json:"photoURI"`
}

// MicroDate is the shared record for one negotiation between two users.
// It is the single source of truth: both parties mutate it with blind
// partial-field updates and learn about each other's writes only through
// the change feed.
type MicroDate struct {
	ID string `gorm:"primaryKey" json:"id"`

	// RequestBy and RequestFor are immutable after creation and define the
	// two roles: Requester = RequestBy, Target = RequestFor.
	RequestBy  string `gorm:"index;not null" json:"requestBy"`
	RequestFor string `gorm:"index;not null" json:"requestFor"`

	Status Status `gorm:"type:text;not null" json:"status"`
	Active bool   `gorm:"index" json:"active"`

	// Geo fields are set once on acceptance and immutable afterwards.
	RequestByGeoPoint  *GeoPoint `gorm:"embedded;embeddedPrefix:request_by_geo_" json:"requestByGeoPoint,omitempty"`
	RequestForGeoPoint *GeoPoint `gorm:"embedded;embeddedPrefix:request_for_geo_" json:"requestForGeoPoint,omitempty"`
	StartDistance      float64   `json:"startDistance,omitempty"`

	// Actor stamps. Required to tell "done by me" from "done by the other
	// party" when projecting snapshots.
	StopBy           string `json:"stopBy,omitempty"`
	DeclinedSelfieBy string `json:"declinedSelfieBy,omitempty"`
	FinishBy         string `json:"finishBy,omitempty"`

	Selfie *Selfie `gorm:"embedded;embeddedPrefix:selfie_" json:"selfie,omitempty"`

	// ModerationStatus is set on finish and consumed downstream only.
	ModerationStatus string `json:"moderationStatus,omitempty"`

	// First-alert flags record whether each participant has already seen the
	// finished date, enabling idempotent replay after a cold start.
	RequestByFirstAlert  bool `json:"requestByFirstAlert"`
	RequestForFirstAlert bool `json:"requestForFirstAlert"`

	// Timestamps are display/ordering only, never used for correctness.
	RequestTS       time.Time  `gorm:"index" json:"requestTS"`
	AcceptTS        *time.Time `json:"acceptTS,omitempty"`
	DeclineTS       *time.Time `json:"declineTS,omitempty"`
	StopTS          *time.Time `json:"stopTS,omitempty"`
	FinishTS        *time.Time `json:"finishTS,omitempty"`
	CancelRequestTS *time.Time `json:"cancelRequestTS,omitempty"`
}

// ParticipantID returns the uid playing the given role on this record.
func (m *MicroDate) ParticipantID(role Role) string {
	if role == RoleRequester {
		return m.RequestBy
	}
	return m.RequestFor
}

// CounterpartID returns the other participant's uid.
func (m *MicroDate) CounterpartID(uid string) string {
	if uid == m.RequestBy {
		return m.RequestFor
	}
	return m.RequestBy
}

// RoleOf returns the role the uid plays on this record, false if the uid is
// not a participant.
func (m *MicroDate) RoleOf(uid string) (Role, bool) {
	switch uid {
	case m.RequestBy:
		return RoleRequester, true
	case m.RequestFor:
		return RoleTarget, true
	}
	return "", false
}

// FirstAlertFor reports whether the given participant has acknowledged the
// finished date.
func (m *MicroDate) FirstAlertFor(uid string) bool {
	if uid == m.RequestBy {
		return m.RequestByFirstAlert
	}
	return m.RequestForFirstAlert
}

// Change kinds carried by document and query notifications.
const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// DocumentChange is the payload published on a Redis change channel after
// every store write. Query channels only ever carry "added" changes.
type DocumentChange struct {
	Kind      string     `json:"kind"`
	MicroDate *MicroDate `json:"microDate,omitempty"`
}

// Snapshot is one observation of the shared record as delivered to a
// supervisor by the change feed. Err is terminal for the feed that emitted it.
type Snapshot struct {
	MicroDate *MicroDate
	HasNoData bool
	Err       error
}
