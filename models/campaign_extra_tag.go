package models

import (
	"time"
)

// CampaignExtraTag is a campaign-scoped key/value tag addressed as
// [EXTRA:NAME] in templates. Unlike customer tags there is no random mode.
type CampaignExtraTag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;uniqueIndex:uk_campaign_extra_tags_campaign_tag,composite:campaign;index:idx_campaign_extra_tags_campaign_id" json:"campaign_id"`
	Tag        string    `gorm:"size:50;not null;uniqueIndex:uk_campaign_extra_tags_campaign_tag,composite:campaign" json:"tag"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CampaignExtraTag) TableName() string {
	return "campaign_extra_tags"
}

// FullTag returns the bracketed literal as it appears in templates
func (t *CampaignExtraTag) FullTag() string {
	return "[EXTRA:" + t.Tag + "]"
}

// CampaignExtraTagFilter represents filter criteria for campaign extra tags
type CampaignExtraTagFilter struct {
	ID         *uint   `json:"id,omitempty"`
	CampaignID *uint   `json:"campaign_id,omitempty"`
	Tag        *string `json:"tag,omitempty"`
}
