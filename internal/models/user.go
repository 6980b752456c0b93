package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // needed for pq.StringArray
	"gorm.io/gorm"
)

// User is a participant profile. The negotiation core only reads the ID and
// the last-known geo point; the rest is profile data shown on panels.
type User struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Gender    string         `json:"gender,omitempty"`
	BirthYear int            `json:"birthYear,omitempty"`
	Interests pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	Photos    pq.StringArray `gorm:"type:text[]" json:"photos,omitempty"`

	// GeoPoint is the last reported location, mirrored on every geo fix.
	GeoPoint     *GeoPoint `gorm:"embedded;embeddedPrefix:geo_" json:"geoPoint,omitempty"`
	GeoUpdatedAt time.Time `json:"geoUpdatedAt"`
}

// ShortID is the four-character display handle used on panels.
func (u *User) ShortID() string {
	if len(u.ID) < 4 {
		return u.ID
	}
	return u.ID[:4]
}

// BeforeCreate is a GORM hook generating a fresh UUID when the ID is unset.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// PastMicroDate is the journal row written once per finished date for the
// acknowledging participant. It feeds the "people you already dated" filter.
type PastMicroDate struct {
	gorm.Model

	UserID     string `gorm:"type:text;not null;index:idx_past_pair"`
	PartnerID  string `gorm:"type:text;not null;index:idx_past_pair"`
	FinishedAt time.Time
}
