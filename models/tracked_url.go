package models

import (
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// TrackedURL maps one distinct destination URL discovered in campaign content
// to its stable per-campaign hash. Rows are insert-only; the hash doubles as
// the last segment of the public track-url redirect path.
type TrackedURL struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CampaignID  uint      `gorm:"not null;uniqueIndex:uk_tracked_urls_campaign_hash;index:idx_tracked_urls_campaign_id" json:"campaign_id"`
	Destination string    `gorm:"type:text;not null" json:"destination"`
	Hash        string    `gorm:"size:40;not null;uniqueIndex:uk_tracked_urls_campaign_hash" json:"hash"`
	DateAdded   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"date_added"`
}

// TableName returns the table name for the model
func (TrackedURL) TableName() string {
	return "tracked_urls"
}

// BeforeCreate is called before creating a new record
func (u *TrackedURL) BeforeCreate(tx *gorm.DB) error {
	if u.DateAdded.IsZero() {
		u.DateAdded = utils.UTCNow()
	}
	return nil
}

// TrackedURLFilter represents filter criteria for tracked URLs
type TrackedURLFilter struct {
	ID          *uint   `json:"id,omitempty"`
	CampaignID  *uint   `json:"campaign_id,omitempty"`
	Hash        *string `json:"hash,omitempty"`
	Destination *string `json:"destination,omitempty"`
}

// TrackedURLClick is the audit row written when a recipient follows a tracked
// redirect. UserAgent and IP are optional last-known values.
type TrackedURLClick struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TrackedURLID uint      `gorm:"not null;index:idx_tracked_url_clicks_url_id" json:"tracked_url_id"`
	SubscriberID uint      `gorm:"not null;index:idx_tracked_url_clicks_subscriber_id" json:"subscriber_id"`
	UserAgent    *string   `gorm:"size:500" json:"user_agent,omitempty"`
	IP           *string   `gorm:"size:45" json:"ip,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (TrackedURLClick) TableName() string {
	return "tracked_url_clicks"
}

// TrackedURLClickFilter represents filter criteria for click rows
type TrackedURLClickFilter struct {
	ID           *uint `json:"id,omitempty"`
	TrackedURLID *uint `json:"tracked_url_id,omitempty"`
	SubscriberID *uint `json:"subscriber_id,omitempty"`
}
