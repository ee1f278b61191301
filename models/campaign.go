package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft       CampaignStatus = "draft"
	CampaignStatusPendingSend CampaignStatus = "pending-sending"
	CampaignStatusSending     CampaignStatus = "sending"
	CampaignStatusSent        CampaignStatus = "sent"
	CampaignStatusPaused      CampaignStatus = "paused"
	CampaignStatusBlocked     CampaignStatus = "blocked"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusPendingSend, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusPaused, CampaignStatusBlocked:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CampaignOptions holds per-campaign content processing switches
type CampaignOptions struct {
	URLTracking bool `json:"url_tracking"`
	// OpenTracking appends the 1x1 beacon image before </body>
	OpenTracking bool `json:"open_tracking"`
	// StrictLocalTagURLs restricts which bracket tags inside hrefs are kept
	// for click-time resolution to the [XYZ_URL] family
	StrictLocalTagURLs bool `json:"strict_local_tag_urls"`
	PlainText          bool `json:"plain_text"`
}

// Value implements the driver.Valuer interface for CampaignOptions
func (o CampaignOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements the sql.Scanner interface for CampaignOptions
func (o *CampaignOptions) Scan(value any) error {
	if value == nil {
		*o = CampaignOptions{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignOptions", value)
	}

	return json.Unmarshal(bytes, o)
}

// Campaign represents an email campaign whose template content is run through
// the tag substitution and link tracking pipeline per subscriber
type Campaign struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UID              string          `gorm:"size:13;not null;uniqueIndex:uk_campaigns_uid" json:"uid"`
	CustomerID       uint            `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	ListID           uint            `gorm:"not null;index:idx_campaigns_list_id" json:"list_id"`
	DeliveryServerID *uint           `json:"delivery_server_id,omitempty"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	Subject          string          `gorm:"size:500" json:"subject"`
	FromName         string          `gorm:"size:255" json:"from_name"`
	FromEmail        string          `gorm:"size:150" json:"from_email"`
	ToName           string          `gorm:"size:255" json:"to_name"`
	ReplyTo          string          `gorm:"size:150" json:"reply_to"`
	Status           CampaignStatus  `gorm:"size:30;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	Options          CampaignOptions `gorm:"type:jsonb;not null" json:"options"`
	// Content is the campaign template the parsing pipeline runs per
	// subscriber
	Content   string     `gorm:"type:text" json:"content"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	List           *MailList           `gorm:"foreignKey:ListID;references:ID" json:"list,omitempty"`
	Server         *DeliveryServer     `gorm:"foreignKey:DeliveryServerID;references:ID" json:"server,omitempty"`
	ExtraTags      []CampaignExtraTag  `gorm:"foreignKey:CampaignID" json:"extra_tags,omitempty"`
	RandomContents []RandomContent     `gorm:"foreignKey:CampaignID" json:"random_contents,omitempty"`
	TrackedURLs    []TrackedURL        `gorm:"foreignKey:CampaignID" json:"tracked_urls,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UID == "" {
		c.UID = utils.NewUID()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanSend checks whether content may be generated and delivered for the campaign
func (c *Campaign) CanSend() bool {
	return c.Status == CampaignStatusPendingSend || c.Status == CampaignStatusSending
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UID           *string         `json:"uid,omitempty"`
	CustomerID    *uint           `json:"customer_id,omitempty"`
	ListID        *uint           `json:"list_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
