package models

import (
	"time"
)

// RandomContent is a named content block referenced from
// [RANDOM_CONTENT:BLOCK:name|...] alternatives. Block content may itself
// contain merge tags, feed tags and anchors subject to link tracking.
type RandomContent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;uniqueIndex:uk_random_contents_campaign_name,composite:campaign;index:idx_random_contents_campaign_id" json:"campaign_id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex:uk_random_contents_campaign_name,composite:campaign" json:"name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (RandomContent) TableName() string {
	return "campaign_random_contents"
}

// RandomContentFilter represents filter criteria for random content blocks
type RandomContentFilter struct {
	ID         *uint   `json:"id,omitempty"`
	CampaignID *uint   `json:"campaign_id,omitempty"`
	Name       *string `json:"name,omitempty"`
}
