package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"dater/backend/internal/feed"
	"dater/backend/internal/models"
)

// ErrNotFound is returned for point reads of records that do not exist.
var ErrNotFound = errors.New("storage: record not found")

// Storage is the shared-record-store capability the engines consume:
// point reads, blind partial-field updates, the recovery queries, and the
// change-notification subscriptions.
type Storage interface {
	CreateMicroDate(md *models.MicroDate) error
	// UpdateMicroDate applies a blind partial-field merge. There is no
	// compare-and-swap: under concurrent writes from both parties the last
	// write wins per field, and both sides converge through the change feed.
	UpdateMicroDate(id string, fields map[string]any) (*models.MicroDate, error)
	GetMicroDate(id string) (*models.MicroDate, error)

	// FindActiveMicroDateFor is the crash-recovery read: the single active
	// record (if any) where uid plays the given role.
	FindActiveMicroDateFor(uid string, role models.Role) (*models.MicroDate, error)
	// FindUnacknowledgedFinished is the Target-side cold-start read: a
	// finished, inactive record the uid has not acknowledged yet.
	FindUnacknowledgedFinished(uid string) (*models.MicroDate, error)
	AcknowledgeFinished(id, uid string) error
	RecordPastMicroDate(uid, partnerID string, finishedAt time.Time) error

	SaveUser(user *models.User) error
	GetUser(uid string) (*models.User, error)
	UpdateUserLocation(uid string, coords models.GeoPoint) error

	SubscribeToMicroDate(id string) *feed.Feed
	SubscribeToIncomingRequests(uid string) *feed.Feed
}

// Service implements Storage over PostgreSQL (gorm) for the records and
// Redis pub/sub for change notifications.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Change-notification channel names.
func docChannel(id string) string       { return "microdate:doc:" + id }
func incomingChannel(uid string) string { return "microdate:incoming:" + uid }

// CreateMicroDate inserts the record and announces it on the Target's
// incoming-request channel as well as on the document channel. The caller
// provides participants; ID, status, activity and the request timestamp are
// assigned here.
func (s *Service) CreateMicroDate(md *models.MicroDate) error {
	if md.ID == "" {
		md.ID = ulid.Make().String()
	}
	md.Status = models.StatusRequest
	md.Active = true
	md.RequestTS = time.Now().UTC()

	if err := s.DB.Create(md).Error; err != nil {
		log.Printf("ERROR: Failed to create micro date %s: %v", md.ID, err)
		return err
	}

	s.publish(incomingChannel(md.RequestFor), models.DocumentChange{Kind: models.ChangeAdded, MicroDate: md})
	s.publish(docChannel(md.ID), models.DocumentChange{Kind: models.ChangeAdded, MicroDate: md})
	return nil
}

// UpdateMicroDate merges the given fields into the record, reloads it and
// publishes the fresh snapshot on the document channel. Keys are column
// names. Last write wins per field.
func (s *Service) UpdateMicroDate(id string, fields map[string]any) (*models.MicroDate, error) {
	if err := s.DB.Model(&models.MicroDate{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		log.Printf("ERROR: Failed to update micro date %s: %v", id, err)
		return nil, err
	}

	md, err := s.GetMicroDate(id)
	if err != nil {
		return nil, err
	}

	s.publish(docChannel(id), models.DocumentChange{Kind: models.ChangeUpdated, MicroDate: md})
	return md, nil
}

// GetMicroDate loads one record by id.
func (s *Service) GetMicroDate(id string) (*models.MicroDate, error) {
	var md models.MicroDate
	err := s.DB.Where("id = ?", id).First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get micro date %s: %v", id, err)
		return nil, err
	}
	return &md, nil
}

// FindActiveMicroDateFor returns the oldest active record where uid plays
// the given role, or nil without error when there is none.
func (s *Service) FindActiveMicroDateFor(uid string, role models.Role) (*models.MicroDate, error) {
	column := "request_by"
	if role == models.RoleTarget {
		column = "request_for"
	}

	var md models.MicroDate
	err := s.DB.Where(column+" = ?", uid).
		Where("active = ?", true).
		Order("request_ts asc").
		First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find active micro date for %s: %v", uid, err)
		return nil, err
	}
	return &md, nil
}

// FindUnacknowledgedFinished returns a finished, inactive record addressed
// to uid whose first-alert flag for uid is still false, or nil when none.
func (s *Service) FindUnacknowledgedFinished(uid string) (*models.MicroDate, error) {
	var md models.MicroDate
	err := s.DB.Where("request_for = ?", uid).
		Where("status = ?", models.StatusFinished).
		Where("active = ?", false).
		Where("request_for_first_alert = ?", false).
		Order("finish_ts asc").
		First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find unacknowledged finished date for %s: %v", uid, err)
		return nil, err
	}
	return &md, nil
}

// AcknowledgeFinished sets the per-user first-alert flag true.
func (s *Service) AcknowledgeFinished(id, uid string) error {
	md, err := s.GetMicroDate(id)
	if err != nil {
		return err
	}

	column := "request_for_first_alert"
	if uid == md.RequestBy {
		column = "request_by_first_alert"
	}
	_, err = s.UpdateMicroDate(id, map[string]any{column: true})
	return err
}

// RecordPastMicroDate appends the finished-date journal row for uid.
func (s *Service) RecordPastMicroDate(uid, partnerID string, finishedAt time.Time) error {
	row := models.PastMicroDate{
		UserID:     uid,
		PartnerID:  partnerID,
		FinishedAt: finishedAt,
	}
	if err := s.DB.Create(&row).Error; err != nil {
		log.Printf("ERROR: Failed to record past micro date %s/%s: %v", uid, partnerID, err)
		return err
	}
	return nil
}

// SaveUser upserts a user profile.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetUser loads one profile by uid.
func (s *Service) GetUser(uid string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get user %s: %v", uid, err)
		return nil, err
	}
	return &user, nil
}

// UpdateUserLocation mirrors the latest geo fix into the user row.
func (s *Service) UpdateUserLocation(uid string, coords models.GeoPoint) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", uid).
		Updates(map[string]any{
			"geo_latitude":   coords.Latitude,
			"geo_longitude":  coords.Longitude,
			"geo_updated_at": time.Now().UTC(),
		}).Error
}

// SubscribeToMicroDate opens a document feed for one record.
func (s *Service) SubscribeToMicroDate(id string) *feed.Feed {
	return feed.NewDocumentFeed(s.Redis.Subscribe(s.Ctx, docChannel(id)))
}

// SubscribeToIncomingRequests opens the Target's limit-1 query feed.
func (s *Service) SubscribeToIncomingRequests(uid string) *feed.Feed {
	return feed.NewQueryFeed(s.Redis.Subscribe(s.Ctx, incomingChannel(uid)))
}

func (s *Service) publish(channel string, change models.DocumentChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("ERROR: Failed to marshal change for %s: %v", channel, err)
		return
	}
	if err := s.Redis.Publish(s.Ctx, channel, payload).Err(); err != nil {
		log.Printf("ERROR: Failed to publish change on %s: %v", channel, err)
	}
}
