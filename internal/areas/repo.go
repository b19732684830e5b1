package areas

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
)

// Repository persists areas with gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, area *models.Area) error {
	return r.db.WithContext(ctx).Create(area).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Area, error) {
	var area models.Area
	if err := r.db.WithContext(ctx).First(&area, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &area, nil
}

// ListAll returns every area. The tree and path builders need the whole set,
// which stays small for a single facility.
func (r *Repository) ListAll(ctx context.Context) ([]models.Area, error) {
	var areas []models.Area
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&areas).Error; err != nil {
		return nil, err
	}
	return areas, nil
}

func (r *Repository) Save(ctx context.Context, area *models.Area) error {
	return r.db.WithContext(ctx).Save(area).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Area{}, "id = ?", id).Error
}

func (r *Repository) CountChildren(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Area{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountFindings(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Finding{}).
		Where("area_id = ?", id).
		Count(&count).Error
	return count, err
}

// ListAllForUpdateTx reads every area inside tx with the rows locked, so a
// reparent validates against a snapshot no concurrent move can shift under it.
func (r *Repository) ListAllForUpdateTx(ctx context.Context, tx *gorm.DB) ([]models.Area, error) {
	var areas []models.Area
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("name ASC").
		Find(&areas).Error
	if err != nil {
		return nil, err
	}
	return areas, nil
}

func (r *Repository) SaveTx(ctx context.Context, tx *gorm.DB, area *models.Area) error {
	return tx.WithContext(ctx).Save(area).Error
}

func (r *Repository) UpdateLevelTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, level int) error {
	return tx.WithContext(ctx).
		Model(&models.Area{}).
		Where("id = ?", id).
		Update("level", level).Error
}
