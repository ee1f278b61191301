package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// ListFieldRepositoryImpl implements ListFieldRepository
type ListFieldRepositoryImpl struct {
	*BaseRepository[models.ListField, models.ListFieldFilter]
}

func NewListFieldRepository(db *gorm.DB) ListFieldRepository {
	return &ListFieldRepositoryImpl{BaseRepository: NewBaseRepository[models.ListField, models.ListFieldFilter](db)}
}

func (r *ListFieldRepositoryImpl) ByListAndTag(ctx context.Context, listID uint, tag string) (*models.ListField, error) {
	filter := models.ListFieldFilter{ListID: &listID, Tag: &tag}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ListFieldRepositoryImpl) ListByList(ctx context.Context, listID uint) ([]*models.ListField, error) {
	return r.ByFilter(ctx, models.ListFieldFilter{ListID: &listID}, "id ASC", 0, 0)
}

func (r *ListFieldRepositoryImpl) applyFilter(db *gorm.DB, f models.ListFieldFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ListID != nil {
		db = db.Where("list_id = ?", *f.ListID)
	}
	if f.Tag != nil {
		db = db.Where("tag = ?", *f.Tag)
	}
	return db
}

func (r *ListFieldRepositoryImpl) ByFilter(ctx context.Context, filter models.ListFieldFilter, orderBy string, limit, offset int) ([]*models.ListField, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ListField{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ListField
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ListFieldRepositoryImpl) Count(ctx context.Context, filter models.ListFieldFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ListField{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ListFieldRepositoryImpl) Exists(ctx context.Context, filter models.ListFieldFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// SubscriberFieldValueRepositoryImpl implements SubscriberFieldValueRepository
type SubscriberFieldValueRepositoryImpl struct {
	*BaseRepository[models.SubscriberFieldValue, models.SubscriberFieldValueFilter]
}

func NewSubscriberFieldValueRepository(db *gorm.DB) SubscriberFieldValueRepository {
	return &SubscriberFieldValueRepositoryImpl{BaseRepository: NewBaseRepository[models.SubscriberFieldValue, models.SubscriberFieldValueFilter](db)}
}

func (r *SubscriberFieldValueRepositoryImpl) ValuesBySubscriberAndField(ctx context.Context, subscriberID, fieldID uint) ([]string, error) {
	db := r.getDB(ctx)
	var values []string
	err := db.Model(&models.SubscriberFieldValue{}).
		Where("subscriber_id = ? AND field_id = ?", subscriberID, fieldID).
		Order("id ASC").
		Pluck("value", &values).Error
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (r *SubscriberFieldValueRepositoryImpl) UpdateValue(ctx context.Context, subscriberID, fieldID uint, value string) error {
	db := r.getDB(ctx)
	res := db.Model(&models.SubscriberFieldValue{}).
		Where("subscriber_id = ? AND field_id = ?", subscriberID, fieldID).
		Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Create(&models.SubscriberFieldValue{
			SubscriberID: subscriberID,
			FieldID:      fieldID,
			Value:        value,
		}).Error
	}
	return nil
}

func (r *SubscriberFieldValueRepositoryImpl) applyFilter(db *gorm.DB, f models.SubscriberFieldValueFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SubscriberID != nil {
		db = db.Where("subscriber_id = ?", *f.SubscriberID)
	}
	if f.FieldID != nil {
		db = db.Where("field_id = ?", *f.FieldID)
	}
	return db
}

func (r *SubscriberFieldValueRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriberFieldValueFilter, orderBy string, limit, offset int) ([]*models.SubscriberFieldValue, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SubscriberFieldValue{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SubscriberFieldValue
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SubscriberFieldValueRepositoryImpl) Count(ctx context.Context, filter models.SubscriberFieldValueFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SubscriberFieldValue{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SubscriberFieldValueRepositoryImpl) Exists(ctx context.Context, filter models.SubscriberFieldValueFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
