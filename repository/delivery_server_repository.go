package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// DeliveryServerRepositoryImpl implements DeliveryServerRepository
type DeliveryServerRepositoryImpl struct {
	*BaseRepository[models.DeliveryServer, models.DeliveryServerFilter]
}

func NewDeliveryServerRepository(db *gorm.DB) DeliveryServerRepository {
	return &DeliveryServerRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryServer, models.DeliveryServerFilter](db)}
}

func (r *DeliveryServerRepositoryImpl) applyFilter(db *gorm.DB, f models.DeliveryServerFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	return db
}

func (r *DeliveryServerRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryServerFilter, orderBy string, limit, offset int) ([]*models.DeliveryServer, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DeliveryServer{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.DeliveryServer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DeliveryServerRepositoryImpl) Count(ctx context.Context, filter models.DeliveryServerFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DeliveryServer{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DeliveryServerRepositoryImpl) Exists(ctx context.Context, filter models.DeliveryServerFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
