package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagEventCounterRepositoryImpl implements TagEventCounterRepository
type TagEventCounterRepositoryImpl struct {
	*BaseRepository[models.TagEventCounter, models.TagEventCounterFilter]
}

func NewTagEventCounterRepository(db *gorm.DB) TagEventCounterRepository {
	return &TagEventCounterRepositoryImpl{BaseRepository: NewBaseRepository[models.TagEventCounter, models.TagEventCounterFilter](db)}
}

// Increment upserts on the (campaign, subscriber, event, reference) unique
// index so concurrent workers always observe a monotonically growing count
func (r *TagEventCounterRepositoryImpl) Increment(ctx context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error) {
	db := r.getDB(ctx)

	row := models.TagEventCounter{
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		Event:        event,
		Reference:    reference,
		Occurrences:  1,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "campaign_id"}, {Name: "subscriber_id"},
			{Name: "event"}, {Name: "reference"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"occurrences": gorm.Expr("tag_event_counters.occurrences + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}

	return r.Occurrences(ctx, campaignID, subscriberID, event, reference)
}

func (r *TagEventCounterRepositoryImpl) Occurrences(ctx context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error) {
	db := r.getDB(ctx)

	var row models.TagEventCounter
	err := db.Where("campaign_id = ? AND subscriber_id = ? AND event = ? AND reference = ?",
		campaignID, subscriberID, event, reference).
		Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Occurrences, nil
}

func (r *TagEventCounterRepositoryImpl) applyFilter(db *gorm.DB, f models.TagEventCounterFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.SubscriberID != nil {
		db = db.Where("subscriber_id = ?", *f.SubscriberID)
	}
	if f.Event != nil {
		db = db.Where("event = ?", *f.Event)
	}
	if f.Reference != nil {
		db = db.Where("reference = ?", *f.Reference)
	}
	return db
}

func (r *TagEventCounterRepositoryImpl) ByFilter(ctx context.Context, filter models.TagEventCounterFilter, orderBy string, limit, offset int) ([]*models.TagEventCounter, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TagEventCounter{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TagEventCounter
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TagEventCounterRepositoryImpl) Count(ctx context.Context, filter models.TagEventCounterFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TagEventCounter{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TagEventCounterRepositoryImpl) Exists(ctx context.Context, filter models.TagEventCounterFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
