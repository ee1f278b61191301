package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// SubscriberRepositoryImpl implements SubscriberRepository
type SubscriberRepositoryImpl struct {
	*BaseRepository[models.Subscriber, models.SubscriberFilter]
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &SubscriberRepositoryImpl{BaseRepository: NewBaseRepository[models.Subscriber, models.SubscriberFilter](db)}
}

func (r *SubscriberRepositoryImpl) ByUID(ctx context.Context, uid string) (*models.Subscriber, error) {
	filter := models.SubscriberFilter{UID: &uid}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *SubscriberRepositoryImpl) UpdateStatus(ctx context.Context, subscriberID uint, status models.SubscriberStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.Subscriber{}).
		Where("id = ?", subscriberID).
		Update("status", status).Error
}

func (r *SubscriberRepositoryImpl) UpdateLastSentAt(ctx context.Context, subscriberID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Subscriber{}).
		Where("id = ?", subscriberID).
		Update("last_sent_at", at).Error
}

func (r *SubscriberRepositoryImpl) applyFilter(db *gorm.DB, f models.SubscriberFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UID != nil {
		db = db.Where("uid = ?", *f.UID)
	}
	if f.ListID != nil {
		db = db.Where("list_id = ?", *f.ListID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SubscriberRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriberFilter, orderBy string, limit, offset int) ([]*models.Subscriber, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscriber{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Subscriber
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SubscriberRepositoryImpl) Count(ctx context.Context, filter models.SubscriberFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscriber{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SubscriberRepositoryImpl) Exists(ctx context.Context, filter models.SubscriberFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
