package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// CampaignExtraTagRepositoryImpl implements CampaignExtraTagRepository
type CampaignExtraTagRepositoryImpl struct {
	*BaseRepository[models.CampaignExtraTag, models.CampaignExtraTagFilter]
}

func NewCampaignExtraTagRepository(db *gorm.DB) CampaignExtraTagRepository {
	return &CampaignExtraTagRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignExtraTag, models.CampaignExtraTagFilter](db)}
}

func (r *CampaignExtraTagRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.CampaignExtraTag, error) {
	return r.ByFilter(ctx, models.CampaignExtraTagFilter{CampaignID: &campaignID}, "id ASC", 0, 0)
}

func (r *CampaignExtraTagRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignExtraTagFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Tag != nil {
		db = db.Where("tag = ?", *f.Tag)
	}
	return db
}

func (r *CampaignExtraTagRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignExtraTagFilter, orderBy string, limit, offset int) ([]*models.CampaignExtraTag, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignExtraTag{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignExtraTag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignExtraTagRepositoryImpl) Count(ctx context.Context, filter models.CampaignExtraTagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignExtraTag{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignExtraTagRepositoryImpl) Exists(ctx context.Context, filter models.CampaignExtraTagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
