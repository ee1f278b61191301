package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// CampaignDelivery is the durable record of one campaign send run. The
// audience is snapshotted up front so a restarted worker resumes from
// LastSubscriberID instead of re-sending from the top, and CampaignJSON
// freezes the campaign as it looked when sending started.
type CampaignDelivery struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	CampaignID       uint            `gorm:"not null;index:idx_campaign_deliveries_campaign_id" json:"campaign_id"`
	CampaignJSON     json.RawMessage `gorm:"type:jsonb;not null" json:"campaign_json"`
	SubscriberIDs    pq.Int64Array   `gorm:"type:bigint[];not null" json:"subscriber_ids"`
	LastSubscriberID *int64          `json:"last_subscriber_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CampaignDelivery) TableName() string { return "campaign_deliveries" }

// CampaignDeliveryFilter provides filter fields for repository queries
type CampaignDeliveryFilter struct {
	ID            *uint
	CampaignID    *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
