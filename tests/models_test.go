// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/amirphl/Kusanagi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatusValid(t *testing.T) {
	valid := []models.CampaignStatus{
		models.CampaignStatusDraft,
		models.CampaignStatusPendingSend,
		models.CampaignStatusSending,
		models.CampaignStatusSent,
		models.CampaignStatusPaused,
		models.CampaignStatusBlocked,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), s.String())
	}
	assert.False(t, models.CampaignStatus("archived").Valid())
}

func TestCampaignOptionsRoundTrip(t *testing.T) {
	opts := models.CampaignOptions{
		URLTracking:  true,
		OpenTracking: true,
		PlainText:    false,
	}

	value, err := opts.Value()
	require.NoError(t, err)

	var decoded models.CampaignOptions
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, opts, decoded)
}

func TestCampaignCanSend(t *testing.T) {
	c := &models.Campaign{Status: models.CampaignStatusDraft}
	assert.False(t, c.CanSend())

	c.Status = models.CampaignStatusPendingSend
	assert.True(t, c.CanSend())

	c.Status = models.CampaignStatusSending
	assert.True(t, c.CanSend())

	c.Status = models.CampaignStatusSent
	assert.False(t, c.CanSend())
}

func TestDeliveryServerIsElasticEmail(t *testing.T) {
	var nilServer *models.DeliveryServer
	assert.False(t, nilServer.IsElasticEmail())

	byType := &models.DeliveryServer{Type: models.DeliveryServerTypeElasticEmailAPI}
	assert.True(t, byType.IsElasticEmail())

	byHost := &models.DeliveryServer{Type: models.DeliveryServerTypeSMTP, Hostname: "smtp25.ElasticEmail.com"}
	assert.True(t, byHost.IsElasticEmail())

	plain := &models.DeliveryServer{Type: models.DeliveryServerTypeSMTP, Hostname: "mail.acme.test"}
	assert.False(t, plain.IsElasticEmail())
}

func TestTagLiterals(t *testing.T) {
	customerTag := &models.CustomerTag{Tag: "GREETING"}
	assert.Equal(t, "[TAG:GREETING]", customerTag.FullTag())

	extraTag := &models.CampaignExtraTag{Tag: "COUPON"}
	assert.Equal(t, "[EXTRA:COUPON]", extraTag.FullTag())
}

func TestSubscriberStatusScan(t *testing.T) {
	var status models.SubscriberStatus
	require.NoError(t, status.Scan("confirmed"))
	assert.Equal(t, models.SubscriberStatusConfirmed, status)

	require.NoError(t, status.Scan([]byte("unsubscribed")))
	assert.Equal(t, models.SubscriberStatusUnsubscribed, status)

	assert.Error(t, status.Scan(42))
}

func TestListCompanyRoundTrip(t *testing.T) {
	company := models.ListCompany{
		Name:    "Acme Inc",
		Country: "US",
		Zone:    "CA",
	}

	value, err := company.Value()
	require.NoError(t, err)

	var decoded models.ListCompany
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, company, decoded)
}
