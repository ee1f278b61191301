// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kusanagi/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUID(ctx context.Context, uid string) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, campaignID uint, status models.CampaignStatus) error
}

// CampaignDeliveryRepository defines operations for campaign send runs
type CampaignDeliveryRepository interface {
	Repository[models.CampaignDelivery, models.CampaignDeliveryFilter]
	ByCampaignID(ctx context.Context, campaignID uint) (*models.CampaignDelivery, error)
	Update(ctx context.Context, delivery *models.CampaignDelivery) error
}

// SubscriberRepository defines operations for subscribers
type SubscriberRepository interface {
	Repository[models.Subscriber, models.SubscriberFilter]
	ByUID(ctx context.Context, uid string) (*models.Subscriber, error)
	UpdateStatus(ctx context.Context, subscriberID uint, status models.SubscriberStatus) error
	UpdateLastSentAt(ctx context.Context, subscriberID uint, at time.Time) error
}

// MailListRepository defines operations for mail lists
type MailListRepository interface {
	Repository[models.MailList, models.MailListFilter]
	ByUID(ctx context.Context, uid string) (*models.MailList, error)
}

// DeliveryServerRepository defines operations for delivery servers
type DeliveryServerRepository interface {
	Repository[models.DeliveryServer, models.DeliveryServerFilter]
}

// TrackedURLRepository defines operations for per-campaign tracked URLs
type TrackedURLRepository interface {
	Repository[models.TrackedURL, models.TrackedURLFilter]
	ByCampaignAndHash(ctx context.Context, campaignID uint, hash string) (*models.TrackedURL, error)
	CountByCampaignAndHash(ctx context.Context, campaignID uint, hash string) (int64, error)
	// BulkInsert persists newly discovered URLs in one statement; rows whose
	// (campaign_id, hash) pair already exists are skipped at the database
	// level, so concurrent discoverers cannot race past the existence check
	BulkInsert(ctx context.Context, rows []*models.TrackedURL) error
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.TrackedURL, error)
}

// TrackedURLClickRepository defines operations for click audit rows
type TrackedURLClickRepository interface {
	Repository[models.TrackedURLClick, models.TrackedURLClickFilter]
	CountByTrackedURL(ctx context.Context, trackedURLID uint) (int64, error)
}

// CustomerTagRepository defines operations for customer [TAG:...] tags
type CustomerTagRepository interface {
	Repository[models.CustomerTag, models.CustomerTagFilter]
	ListByCustomer(ctx context.Context, customerID uint, limit int) ([]*models.CustomerTag, error)
}

// CampaignExtraTagRepository defines operations for campaign [EXTRA:...] tags
type CampaignExtraTagRepository interface {
	Repository[models.CampaignExtraTag, models.CampaignExtraTagFilter]
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignExtraTag, error)
}

// RandomContentRepository defines operations for named random content blocks
type RandomContentRepository interface {
	Repository[models.RandomContent, models.RandomContentFilter]
	ByCampaignAndName(ctx context.Context, campaignID uint, name string) (*models.RandomContent, error)
}

// ListFieldRepository defines operations for list custom field definitions
type ListFieldRepository interface {
	Repository[models.ListField, models.ListFieldFilter]
	ByListAndTag(ctx context.Context, listID uint, tag string) (*models.ListField, error)
	ListByList(ctx context.Context, listID uint) ([]*models.ListField, error)
}

// SubscriberFieldValueRepository defines operations for subscriber field values
type SubscriberFieldValueRepository interface {
	Repository[models.SubscriberFieldValue, models.SubscriberFieldValueFilter]
	ValuesBySubscriberAndField(ctx context.Context, subscriberID, fieldID uint) ([]string, error)
	UpdateValue(ctx context.Context, subscriberID, fieldID uint, value string) error
}

// TagEventCounterRepository defines operations for _ONCE_ tag event counters
type TagEventCounterRepository interface {
	Repository[models.TagEventCounter, models.TagEventCounterFilter]
	// Increment bumps the counter for (campaign, subscriber, event, reference)
	// and returns the new occurrence count, creating the row on first use
	Increment(ctx context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error)
	Occurrences(ctx context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error)
}
