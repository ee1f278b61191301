// Package testing provides test utilities and database setup for the tracking system
package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/Kusanagi/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestList creates a mail list with sender company details filled in
func (tf *TestFixtures) CreateTestList(customerID uint) (*models.MailList, error) {
	list := &models.MailList{
		CustomerID:  customerID,
		Name:        fmt.Sprintf("Newsletter %04d", rand.Intn(10000)),
		DisplayName: "Acme Newsletter",
		FromName:    "Acme",
		FromEmail:   "news@acme.test",
		Company: models.ListCompany{
			Name:    "Acme Inc",
			Country: "US",
			Zone:    "CA",
		},
	}
	if err := tf.DB.DB.Create(list).Error; err != nil {
		return nil, fmt.Errorf("failed to create test list: %w", err)
	}
	return list, nil
}

// CreateTestSubscriber creates a confirmed subscriber on the given list
func (tf *TestFixtures) CreateTestSubscriber(listID uint) (*models.Subscriber, error) {
	subscriber := &models.Subscriber{
		ListID: listID,
		Email:  fmt.Sprintf("subscriber.%09d@example.com", rand.Intn(900000000)+100000000),
		Status: models.SubscriberStatusConfirmed,
	}
	if err := tf.DB.DB.Create(subscriber).Error; err != nil {
		return nil, fmt.Errorf("failed to create test subscriber: %w", err)
	}
	return subscriber, nil
}

// CreateTestCampaign creates a campaign on the given list with tracking
// switched on
func (tf *TestFixtures) CreateTestCampaign(customerID, listID uint, content string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		CustomerID: customerID,
		ListID:     listID,
		Name:       fmt.Sprintf("Campaign %04d", rand.Intn(10000)),
		Subject:    "Big spring savings",
		FromName:   "Acme",
		FromEmail:  "news@acme.test",
		ToName:     "[EMAIL]",
		Status:     models.CampaignStatusDraft,
		Options: models.CampaignOptions{
			URLTracking:  true,
			OpenTracking: true,
		},
		Content: content,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestTrackedURL creates a tracked URL row for the campaign
func (tf *TestFixtures) CreateTestTrackedURL(campaignID uint, destination, hash string) (*models.TrackedURL, error) {
	url := &models.TrackedURL{
		CampaignID:  campaignID,
		Destination: destination,
		Hash:        hash,
	}
	if err := tf.DB.DB.Create(url).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tracked url: %w", err)
	}
	return url, nil
}

// CreateTestListField creates a custom field definition on the list
func (tf *TestFixtures) CreateTestListField(listID uint, tag string) (*models.ListField, error) {
	field := &models.ListField{
		ListID: listID,
		Tag:    tag,
		Label:  tag,
	}
	if err := tf.DB.DB.Create(field).Error; err != nil {
		return nil, fmt.Errorf("failed to create test list field: %w", err)
	}
	return field, nil
}
