package models

import (
	"time"
)

// CustomerTag is a customer-defined content snippet addressed as [TAG:NAME]
// in campaign templates. When Random is set, one line of Content is chosen
// uniformly at random per parse.
type CustomerTag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;index:idx_customer_tags_customer_id" json:"customer_id"`
	Tag        string    `gorm:"size:50;not null;uniqueIndex:uk_customer_tags_customer_tag,composite:customer" json:"tag"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Random     bool      `gorm:"not null;default:false" json:"random"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (CustomerTag) TableName() string {
	return "customer_tags"
}

// FullTag returns the bracketed literal as it appears in templates
func (t *CustomerTag) FullTag() string {
	return "[TAG:" + t.Tag + "]"
}

// CustomerTagFilter represents filter criteria for customer tags
type CustomerTagFilter struct {
	ID         *uint   `json:"id,omitempty"`
	CustomerID *uint   `json:"customer_id,omitempty"`
	Tag        *string `json:"tag,omitempty"`
}
