package findings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// listFilter carries the resolved, conjunctive listing filters.
type listFilter struct {
	AreaIDs    []uuid.UUID
	Severity   *enums.Severity
	Status     *enums.FindingStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	ReporterID *uuid.UUID
	AssigneeID *uuid.UUID
	Offset     int
	Limit      int
}

// statusUpdate is the write applied by an accepted lifecycle transition.
type statusUpdate struct {
	From           enums.FindingStatus
	To             enums.FindingStatus
	ClosedAt       *time.Time
	ResolvedAt     *time.Time
	ResolutionNote *string
}

// groupCount is one aggregate bucket keyed by column value.
type groupCount struct {
	Key   string
	Count int64
}

// Repository persists findings, photos, and status history with gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, finding *models.Finding) error {
	return tx.WithContext(ctx).Create(finding).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Finding, error) {
	var finding models.Finding
	if err := r.db.WithContext(ctx).First(&finding, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &finding, nil
}

// MaxReportID returns the lexicographically largest report id sharing the
// prefix. Sequence numbers are zero padded, so string order is numeric order.
func (r *Repository) MaxReportID(ctx context.Context, prefix string) (string, error) {
	var finding models.Finding
	err := r.db.WithContext(ctx).
		Where("report_id LIKE ?", prefix+"%").
		Order("report_id DESC").
		First(&finding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return finding.ReportID, nil
}

// UpdateStatusTx applies the transition guarded by the expected current
// status. Zero rows affected means a concurrent writer won.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, update statusUpdate) (int64, error) {
	values := map[string]any{
		"status":     update.To,
		"closed_at":  update.ClosedAt,
		"updated_at": time.Now().UTC(),
	}
	if update.To != enums.FindingStatusClosed {
		values["resolved_at"] = update.ResolvedAt
	}
	if update.ResolutionNote != nil {
		values["resolution_note"] = update.ResolutionNote
	}

	result := tx.WithContext(ctx).
		Model(&models.Finding{}).
		Where("id = ? AND status = ?", id, update.From).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (r *Repository) UpdateAssigneeTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, assigneeID *uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&models.Finding{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"assignee_id": assigneeID,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *Repository) AddHistoryTx(ctx context.Context, tx *gorm.DB, row *models.StatusHistory) error {
	return tx.WithContext(ctx).Create(row).Error
}

func (r *Repository) AddPhotosTx(ctx context.Context, tx *gorm.DB, photos []models.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&photos).Error
}

func (r *Repository) AddPhoto(ctx context.Context, photo *models.Photo) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

func (r *Repository) Photos(ctx context.Context, findingID uuid.UUID) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.db.WithContext(ctx).
		Where("finding_id = ?", findingID).
		Order("uploaded_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *Repository) History(ctx context.Context, findingID uuid.UUID) ([]models.StatusHistory, error) {
	var rows []models.StatusHistory
	err := r.db.WithContext(ctx).
		Where("finding_id = ?", findingID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns a page of findings plus the unpaged total for the filters.
func (r *Repository) List(ctx context.Context, filter listFilter) ([]models.Finding, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Finding{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Finding
	err := query.
		Order("reported_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) applyFilter(query *gorm.DB, filter listFilter) *gorm.DB {
	if len(filter.AreaIDs) > 0 {
		query = query.Where("area_id IN ?", filter.AreaIDs)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("reported_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("reported_at <= ?", *filter.DateTo)
	}
	if filter.ReporterID != nil {
		query = query.Where("reporter_id = ?", *filter.ReporterID)
	}
	if filter.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *filter.AssigneeID)
	}
	return query
}

func (r *Repository) CountByColumn(ctx context.Context, column string, from, to *time.Time) ([]groupCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Finding{}).
		Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Order("count DESC")
	query = r.applyDateWindow(query, from, to)

	var out []groupCount
	if err := query.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountByArea(ctx context.Context, from, to *time.Time) ([]groupCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Finding{}).
		Select("areas.name AS key, COUNT(*) AS count").
		Joins("JOIN areas ON areas.id = findings.area_id").
		Group("areas.name").
		Order("count DESC")
	query = r.applyDateWindow(query, from, to)

	var out []groupCount
	if err := query.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CountTotal(ctx context.Context, from, to *time.Time) (int64, error) {
	query := r.applyDateWindow(r.db.WithContext(ctx).Model(&models.Finding{}), from, to)
	var total int64
	err := query.Count(&total).Error
	return total, err
}

func (r *Repository) applyDateWindow(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("reported_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("reported_at <= ?", *to)
	}
	return query
}
