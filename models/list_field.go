package models

import (
	"time"
)

// ListField defines a custom subscriber field on a list, addressed in
// templates by its uppercase Tag, e.g. [FNAME]
type ListField struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListID    uint      `gorm:"not null;uniqueIndex:uk_list_fields_list_tag,composite:list;index:idx_list_fields_list_id" json:"list_id"`
	Tag       string    `gorm:"size:50;not null;uniqueIndex:uk_list_fields_list_tag,composite:list" json:"tag"`
	Label     string    `gorm:"size:255" json:"label"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (ListField) TableName() string {
	return "list_fields"
}

// ListFieldFilter represents filter criteria for list fields
type ListFieldFilter struct {
	ID     *uint   `json:"id,omitempty"`
	ListID *uint   `json:"list_id,omitempty"`
	Tag    *string `json:"tag,omitempty"`
}

// SubscriberFieldValue stores one value of a custom field for a subscriber.
// A field may carry multiple values; tag resolution joins them with ", ".
type SubscriberFieldValue struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubscriberID uint      `gorm:"not null;index:idx_subscriber_field_values_subscriber_id" json:"subscriber_id"`
	FieldID      uint      `gorm:"not null;index:idx_subscriber_field_values_field_id" json:"field_id"`
	Value        string    `gorm:"type:text;not null" json:"value"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SubscriberFieldValue) TableName() string {
	return "subscriber_field_values"
}

// SubscriberFieldValueFilter represents filter criteria for field values
type SubscriberFieldValueFilter struct {
	ID           *uint `json:"id,omitempty"`
	SubscriberID *uint `json:"subscriber_id,omitempty"`
	FieldID      *uint `json:"field_id,omitempty"`
}
