package areas

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

func setupAreasTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	areasTable := `
CREATE TABLE IF NOT EXISTS areas (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  parent_id TEXT,
  level INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	findingsTable := `
CREATE TABLE IF NOT EXISTS findings (
  id TEXT PRIMARY KEY,
  report_id TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  severity TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  location TEXT,
  area_id TEXT NOT NULL,
  reporter_id TEXT NOT NULL,
  assignee_id TEXT,
  resolution_note TEXT,
  reported_at DATETIME NOT NULL,
  resolved_at DATETIME,
  closed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(areasTable).Error)
	require.NoError(t, db.Exec(findingsTable).Error)
	return db
}

func seedArea(t *testing.T, db *gorm.DB, name string, parent *models.Area) *models.Area {
	t.Helper()

	area := &models.Area{
		ID:       uuid.New(),
		Name:     name,
		IsActive: true,
	}
	if parent != nil {
		area.ParentID = &parent.ID
		area.Level = parent.Level + 1
	}
	require.NoError(t, db.Create(area).Error)
	return area
}

func TestRepositoryListAllOrdersByName(t *testing.T) {
	db := setupAreasTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedArea(t, db, "Warehouse", nil)
	seedArea(t, db, "Assembly", nil)
	seedArea(t, db, "Loading Dock", nil)

	rows, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Assembly", rows[0].Name)
	assert.Equal(t, "Loading Dock", rows[1].Name)
	assert.Equal(t, "Warehouse", rows[2].Name)
}

func TestRepositoryCountChildren(t *testing.T) {
	db := setupAreasTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	root := seedArea(t, db, "Plant", nil)
	seedArea(t, db, "Line A", root)
	seedArea(t, db, "Line B", root)
	leaf := seedArea(t, db, "Press", root)

	count, err := repo.CountChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountChildren(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepositoryCountFindings(t *testing.T) {
	db := setupAreasTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	area := seedArea(t, db, "Boiler Room", nil)
	other := seedArea(t, db, "Roof", nil)

	finding := &models.Finding{
		ID:          uuid.New(),
		ReportID:    "SF-2026-0001",
		Title:       "Leaking valve",
		Description: "Steam valve leaks at the flange",
		Severity:    enums.SeverityHigh,
		Status:      enums.FindingStatusOpen,
		AreaID:      area.ID,
		ReporterID:  uuid.New(),
		ReportedAt:  time.Now(),
	}
	require.NoError(t, db.Create(finding).Error)

	count, err := repo.CountFindings(ctx, area.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountFindings(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepositorySaveAndDelete(t *testing.T) {
	db := setupAreasTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	area := seedArea(t, db, "Paint Shop", nil)

	area.Name = "Paint Shop West"
	area.IsActive = false
	require.NoError(t, repo.Save(ctx, area))

	loaded, err := repo.FindByID(ctx, area.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paint Shop West", loaded.Name)
	assert.False(t, loaded.IsActive)

	require.NoError(t, repo.Delete(ctx, area.ID))
	_, err = repo.FindByID(ctx, area.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
