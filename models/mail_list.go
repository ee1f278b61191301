package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// ListCompany holds the sender company details exposed through COMPANY_* tags
type ListCompany struct {
	Name        string `json:"name"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2"`
	City        string `json:"city"`
	Zone        string `json:"zone"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	AddressText string `json:"address_text"`
}

// Value implements the driver.Valuer interface for ListCompany
func (c ListCompany) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for ListCompany
func (c *ListCompany) Scan(value any) error {
	if value == nil {
		*c = ListCompany{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ListCompany", value)
	}

	return json.Unmarshal(bytes, c)
}

// MailList represents a subscriber list a campaign targets
type MailList struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UID         string      `gorm:"size:13;not null;uniqueIndex:uk_mail_lists_uid" json:"uid"`
	CustomerID  uint        `gorm:"not null;index:idx_mail_lists_customer_id" json:"customer_id"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	DisplayName string      `gorm:"size:255" json:"display_name"`
	Description string      `gorm:"type:text" json:"description"`
	FromName    string      `gorm:"size:255" json:"from_name"`
	FromEmail   string      `gorm:"size:150" json:"from_email"`
	Company     ListCompany `gorm:"type:jsonb;not null" json:"company"`
	CreatedAt   time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`

	// Relations
	Fields []ListField `gorm:"foreignKey:ListID" json:"fields,omitempty"`
}

// TableName returns the table name for the model
func (MailList) TableName() string {
	return "mail_lists"
}

// BeforeCreate is called before creating a new record
func (l *MailList) BeforeCreate(tx *gorm.DB) error {
	if l.UID == "" {
		l.UID = utils.NewUID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// MailListFilter represents filter criteria for mail lists
type MailListFilter struct {
	ID         *uint   `json:"id,omitempty"`
	UID        *string `json:"uid,omitempty"`
	CustomerID *uint   `json:"customer_id,omitempty"`
	Name       *string `json:"name,omitempty"`
}
