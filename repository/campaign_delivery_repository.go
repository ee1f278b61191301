package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// CampaignDeliveryRepositoryImpl implements CampaignDeliveryRepository
type CampaignDeliveryRepositoryImpl struct {
	*BaseRepository[models.CampaignDelivery, models.CampaignDeliveryFilter]
}

func NewCampaignDeliveryRepository(db *gorm.DB) CampaignDeliveryRepository {
	return &CampaignDeliveryRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignDelivery, models.CampaignDeliveryFilter](db)}
}

func (r *CampaignDeliveryRepositoryImpl) ByCampaignID(ctx context.Context, campaignID uint) (*models.CampaignDelivery, error) {
	rows, err := r.ByFilter(ctx, models.CampaignDeliveryFilter{CampaignID: &campaignID}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *CampaignDeliveryRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignDeliveryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignDeliveryRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignDeliveryFilter, orderBy string, limit, offset int) ([]*models.CampaignDelivery, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignDelivery{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CampaignDelivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignDeliveryRepositoryImpl) Count(ctx context.Context, filter models.CampaignDeliveryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CampaignDelivery{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignDeliveryRepositoryImpl) Exists(ctx context.Context, filter models.CampaignDeliveryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *CampaignDeliveryRepositoryImpl) Update(ctx context.Context, delivery *models.CampaignDelivery) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}
	return db.Save(delivery).Error
}
