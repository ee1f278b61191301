package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// CustomerTagRepositoryImpl implements CustomerTagRepository
type CustomerTagRepositoryImpl struct {
	*BaseRepository[models.CustomerTag, models.CustomerTagFilter]
}

func NewCustomerTagRepository(db *gorm.DB) CustomerTagRepository {
	return &CustomerTagRepositoryImpl{BaseRepository: NewBaseRepository[models.CustomerTag, models.CustomerTagFilter](db)}
}

func (r *CustomerTagRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, limit int) ([]*models.CustomerTag, error) {
	return r.ByFilter(ctx, models.CustomerTagFilter{CustomerID: &customerID}, "id ASC", limit, 0)
}

func (r *CustomerTagRepositoryImpl) applyFilter(db *gorm.DB, f models.CustomerTagFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Tag != nil {
		db = db.Where("tag = ?", *f.Tag)
	}
	return db
}

func (r *CustomerTagRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerTagFilter, orderBy string, limit, offset int) ([]*models.CustomerTag, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CustomerTag{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CustomerTag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomerTagRepositoryImpl) Count(ctx context.Context, filter models.CustomerTagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CustomerTag{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CustomerTagRepositoryImpl) Exists(ctx context.Context, filter models.CustomerTagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
