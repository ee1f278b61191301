package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// MailListRepositoryImpl implements MailListRepository
type MailListRepositoryImpl struct {
	*BaseRepository[models.MailList, models.MailListFilter]
}

func NewMailListRepository(db *gorm.DB) MailListRepository {
	return &MailListRepositoryImpl{BaseRepository: NewBaseRepository[models.MailList, models.MailListFilter](db)}
}

func (r *MailListRepositoryImpl) ByUID(ctx context.Context, uid string) (*models.MailList, error) {
	filter := models.MailListFilter{UID: &uid}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *MailListRepositoryImpl) applyFilter(db *gorm.DB, f models.MailListFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UID != nil {
		db = db.Where("uid = ?", *f.UID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	return db
}

func (r *MailListRepositoryImpl) ByFilter(ctx context.Context, filter models.MailListFilter, orderBy string, limit, offset int) ([]*models.MailList, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MailList{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.MailList
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MailListRepositoryImpl) Count(ctx context.Context, filter models.MailListFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MailList{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MailListRepositoryImpl) Exists(ctx context.Context, filter models.MailListFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
