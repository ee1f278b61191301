package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// SubscriberStatus represents the status of a list subscriber
type SubscriberStatus string

const (
	SubscriberStatusUnconfirmed  SubscriberStatus = "unconfirmed"
	SubscriberStatusConfirmed    SubscriberStatus = "confirmed"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberStatusBlacklisted  SubscriberStatus = "blacklisted"
)

// String returns the string representation of the status
func (s SubscriberStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SubscriberStatus) Valid() bool {
	switch s {
	case SubscriberStatusUnconfirmed, SubscriberStatusConfirmed,
		SubscriberStatusUnsubscribed, SubscriberStatusBlacklisted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SubscriberStatus
func (s *SubscriberStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SubscriberStatus(v)
	case []byte:
		*s = SubscriberStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SubscriberStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SubscriberStatus
func (s SubscriberStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SubscriberStatus: %s", s)
	}
	return string(s), nil
}

// Subscriber represents a list member receiving campaign content
type Subscriber struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UID         string           `gorm:"size:13;not null;uniqueIndex:uk_subscribers_uid" json:"uid"`
	ListID      uint             `gorm:"not null;index:idx_subscribers_list_id" json:"list_id"`
	Email       string           `gorm:"size:150;not null;index:idx_subscribers_email" json:"email"`
	Source      string           `gorm:"size:50" json:"source"`
	Status      SubscriberStatus `gorm:"size:20;not null;default:'unconfirmed';index:idx_subscribers_status" json:"status"`
	OptinIP     *string          `gorm:"size:45" json:"optin_ip,omitempty"`
	OptinDate   *time.Time       `json:"optin_date,omitempty"`
	ConfirmIP   *string          `gorm:"size:45" json:"confirm_ip,omitempty"`
	ConfirmDate *time.Time       `json:"confirm_date,omitempty"`
	LastSentAt  *time.Time       `json:"last_sent_at,omitempty"`
	CreatedAt   time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`

	// Relations
	List        *MailList              `gorm:"foreignKey:ListID;references:ID" json:"list,omitempty"`
	FieldValues []SubscriberFieldValue `gorm:"foreignKey:SubscriberID" json:"field_values,omitempty"`
}

// TableName returns the table name for the model
func (Subscriber) TableName() string {
	return "subscribers"
}

// BeforeCreate is called before creating a new record
func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	if s.UID == "" {
		s.UID = utils.NewUID()
	}
	if s.Status == "" {
		s.Status = SubscriberStatusUnconfirmed
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *Subscriber) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// SubscriberFilter represents filter criteria for subscribers
type SubscriberFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UID           *string           `json:"uid,omitempty"`
	ListID        *uint             `json:"list_id,omitempty"`
	Email         *string           `json:"email,omitempty"`
	Status        *SubscriberStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}
