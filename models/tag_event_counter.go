package models

import (
	"time"
)

// TagEvent names the triggering event for _ONCE_ numeric tag variants
type TagEvent string

const (
	TagEventSend     TagEvent = "send"
	TagEventOpen     TagEvent = "open"
	TagEventURLClick TagEvent = "url-click"
)

// TagEventCounter counts occurrences of a tracking event per campaign and
// subscriber. _ONCE_ numeric tags apply their arithmetic only when the
// triggering event is at its first occurrence. For url-click events the
// Reference field carries the tracked URL hash so each distinct URL has its
// own first occurrence.
type TagEventCounter struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CampaignID   uint      `gorm:"not null;uniqueIndex:uk_tag_event_counters_scope,composite:scope" json:"campaign_id"`
	SubscriberID uint      `gorm:"not null;uniqueIndex:uk_tag_event_counters_scope,composite:scope" json:"subscriber_id"`
	Event        TagEvent  `gorm:"size:20;not null;uniqueIndex:uk_tag_event_counters_scope,composite:scope" json:"event"`
	Reference    string    `gorm:"size:40;not null;default:'';uniqueIndex:uk_tag_event_counters_scope,composite:scope" json:"reference"`
	Occurrences  uint      `gorm:"not null;default:0" json:"occurrences"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (TagEventCounter) TableName() string {
	return "tag_event_counters"
}

// TagEventCounterFilter represents filter criteria for event counters
type TagEventCounterFilter struct {
	ID           *uint     `json:"id,omitempty"`
	CampaignID   *uint     `json:"campaign_id,omitempty"`
	SubscriberID *uint     `json:"subscriber_id,omitempty"`
	Event        *TagEvent `json:"event,omitempty"`
	Reference    *string   `json:"reference,omitempty"`
}
