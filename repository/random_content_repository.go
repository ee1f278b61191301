package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// RandomContentRepositoryImpl implements RandomContentRepository
type RandomContentRepositoryImpl struct {
	*BaseRepository[models.RandomContent, models.RandomContentFilter]
}

func NewRandomContentRepository(db *gorm.DB) RandomContentRepository {
	return &RandomContentRepositoryImpl{BaseRepository: NewBaseRepository[models.RandomContent, models.RandomContentFilter](db)}
}

func (r *RandomContentRepositoryImpl) ByCampaignAndName(ctx context.Context, campaignID uint, name string) (*models.RandomContent, error) {
	filter := models.RandomContentFilter{CampaignID: &campaignID, Name: &name}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *RandomContentRepositoryImpl) applyFilter(db *gorm.DB, f models.RandomContentFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	return db
}

func (r *RandomContentRepositoryImpl) ByFilter(ctx context.Context, filter models.RandomContentFilter, orderBy string, limit, offset int) ([]*models.RandomContent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RandomContent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.RandomContent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RandomContentRepositoryImpl) Count(ctx context.Context, filter models.RandomContentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RandomContent{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RandomContentRepositoryImpl) Exists(ctx context.Context, filter models.RandomContentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
