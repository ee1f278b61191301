package models

import (
	"strings"
	"time"
)

// DeliveryServerType enumerates supported outbound providers
type DeliveryServerType string

const (
	DeliveryServerTypeSMTP            DeliveryServerType = "smtp"
	DeliveryServerTypeSendmail        DeliveryServerType = "sendmail"
	DeliveryServerTypeElasticEmailAPI DeliveryServerType = "elasticemail-web-api"
)

// DeliveryServer represents the outbound server a campaign is relayed through.
// Only the fields surfaced through DS_* tags and provider detection live here.
type DeliveryServer struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	Name      string             `gorm:"size:255;not null" json:"name"`
	Type      DeliveryServerType `gorm:"size:50;not null" json:"type"`
	Hostname  string             `gorm:"size:255" json:"hostname"`
	FromEmail string             `gorm:"size:150" json:"from_email"`
	CreatedAt time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (DeliveryServer) TableName() string {
	return "delivery_servers"
}

// IsElasticEmail reports whether the server delivers through Elastic Email,
// either by declared type or by hostname. Elastic Email requires its native
// {unsubscribe:...} syntax instead of plain anchor hrefs.
func (s *DeliveryServer) IsElasticEmail() bool {
	if s == nil {
		return false
	}
	if s.Type == DeliveryServerTypeElasticEmailAPI {
		return true
	}
	return strings.Contains(strings.ToLower(s.Hostname), "elasticemail")
}

// DeliveryServerFilter represents filter criteria for delivery servers
type DeliveryServerFilter struct {
	ID   *uint               `json:"id,omitempty"`
	Type *DeliveryServerType `json:"type,omitempty"`
}
