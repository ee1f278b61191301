package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackedURLRepositoryImpl implements TrackedURLRepository
type TrackedURLRepositoryImpl struct {
	*BaseRepository[models.TrackedURL, models.TrackedURLFilter]
}

func NewTrackedURLRepository(db *gorm.DB) TrackedURLRepository {
	return &TrackedURLRepositoryImpl{BaseRepository: NewBaseRepository[models.TrackedURL, models.TrackedURLFilter](db)}
}

func (r *TrackedURLRepositoryImpl) ByCampaignAndHash(ctx context.Context, campaignID uint, hash string) (*models.TrackedURL, error) {
	filter := models.TrackedURLFilter{CampaignID: &campaignID, Hash: &hash}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *TrackedURLRepositoryImpl) CountByCampaignAndHash(ctx context.Context, campaignID uint, hash string) (int64, error) {
	return r.Count(ctx, models.TrackedURLFilter{CampaignID: &campaignID, Hash: &hash})
}

// BulkInsert relies on the (campaign_id, hash) unique index: duplicates are
// dropped by ON CONFLICT DO NOTHING instead of failing the whole statement
func (r *TrackedURLRepositoryImpl) BulkInsert(ctx context.Context, rows []*models.TrackedURL) error {
	if len(rows) == 0 {
		return nil
	}
	db := r.getDB(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "hash"}},
		DoNothing: true,
	}).Create(rows).Error
}

func (r *TrackedURLRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.TrackedURL, error) {
	return r.ByFilter(ctx, models.TrackedURLFilter{CampaignID: &campaignID}, "id ASC", 0, 0)
}

func (r *TrackedURLRepositoryImpl) applyFilter(db *gorm.DB, f models.TrackedURLFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Hash != nil {
		db = db.Where("hash = ?", *f.Hash)
	}
	if f.Destination != nil {
		db = db.Where("destination = ?", *f.Destination)
	}
	return db
}

func (r *TrackedURLRepositoryImpl) ByFilter(ctx context.Context, filter models.TrackedURLFilter, orderBy string, limit, offset int) ([]*models.TrackedURL, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackedURL{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TrackedURL
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TrackedURLRepositoryImpl) Count(ctx context.Context, filter models.TrackedURLFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackedURL{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TrackedURLRepositoryImpl) Exists(ctx context.Context, filter models.TrackedURLFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// TrackedURLClickRepositoryImpl implements TrackedURLClickRepository
type TrackedURLClickRepositoryImpl struct {
	*BaseRepository[models.TrackedURLClick, models.TrackedURLClickFilter]
}

func NewTrackedURLClickRepository(db *gorm.DB) TrackedURLClickRepository {
	return &TrackedURLClickRepositoryImpl{BaseRepository: NewBaseRepository[models.TrackedURLClick, models.TrackedURLClickFilter](db)}
}

func (r *TrackedURLClickRepositoryImpl) CountByTrackedURL(ctx context.Context, trackedURLID uint) (int64, error) {
	return r.Count(ctx, models.TrackedURLClickFilter{TrackedURLID: &trackedURLID})
}

func (r *TrackedURLClickRepositoryImpl) applyFilter(db *gorm.DB, f models.TrackedURLClickFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TrackedURLID != nil {
		db = db.Where("tracked_url_id = ?", *f.TrackedURLID)
	}
	if f.SubscriberID != nil {
		db = db.Where("subscriber_id = ?", *f.SubscriberID)
	}
	return db
}

func (r *TrackedURLClickRepositoryImpl) ByFilter(ctx context.Context, filter models.TrackedURLClickFilter, orderBy string, limit, offset int) ([]*models.TrackedURLClick, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackedURLClick{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.TrackedURLClick
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TrackedURLClickRepositoryImpl) Count(ctx context.Context, filter models.TrackedURLClickFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.TrackedURLClick{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TrackedURLClickRepositoryImpl) Exists(ctx context.Context, filter models.TrackedURLClickFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
