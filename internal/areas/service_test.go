package areas

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

type fakeAreaRepo struct {
	areas          map[uuid.UUID]*models.Area
	findingsByArea map[uuid.UUID]int64

	// lockedSnapshot, when set, is what the in-transaction locked read
	// returns, standing in for rows another writer committed in between.
	lockedSnapshot []models.Area
}

func newFakeAreaRepo() *fakeAreaRepo {
	return &fakeAreaRepo{
		areas:          make(map[uuid.UUID]*models.Area),
		findingsByArea: make(map[uuid.UUID]int64),
	}
}

func (f *fakeAreaRepo) Create(_ context.Context, area *models.Area) error {
	cp := *area
	f.areas[area.ID] = &cp
	return nil
}

func (f *fakeAreaRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Area, error) {
	area, ok := f.areas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *area
	return &cp, nil
}

func (f *fakeAreaRepo) ListAll(_ context.Context) ([]models.Area, error) {
	out := make([]models.Area, 0, len(f.areas))
	for _, area := range f.areas {
		out = append(out, *area)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (f *fakeAreaRepo) Save(_ context.Context, area *models.Area) error {
	cp := *area
	f.areas[area.ID] = &cp
	return nil
}

func (f *fakeAreaRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.areas, id)
	return nil
}

func (f *fakeAreaRepo) CountChildren(_ context.Context, id uuid.UUID) (int64, error) {
	var count int64
	for _, area := range f.areas {
		if area.ParentID != nil && *area.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (f *fakeAreaRepo) CountFindings(_ context.Context, id uuid.UUID) (int64, error) {
	return f.findingsByArea[id], nil
}

func (f *fakeAreaRepo) ListAllForUpdateTx(ctx context.Context, _ *gorm.DB) ([]models.Area, error) {
	if f.lockedSnapshot != nil {
		return f.lockedSnapshot, nil
	}
	return f.ListAll(ctx)
}

func (f *fakeAreaRepo) SaveTx(ctx context.Context, _ *gorm.DB, area *models.Area) error {
	return f.Save(ctx, area)
}

func (f *fakeAreaRepo) UpdateLevelTx(_ context.Context, _ *gorm.DB, id uuid.UUID, level int) error {
	area, ok := f.areas[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	area.Level = level
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *fakeAreaRepo) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func mustCreate(t *testing.T, svc Service, name string, parentID *uuid.UUID) *AreaDTO {
	t.Helper()
	area, err := svc.Create(context.Background(), CreateAreaInput{Name: name, ParentID: parentID})
	if err != nil {
		t.Fatalf("creating area %q: %v", name, err)
	}
	return area
}

func errCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return typed.Code()
}

func TestCreateComputesLevelAndPath(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	if plant.Level != 0 || plant.FullPath != "Plant" {
		t.Fatalf("unexpected root: level=%d path=%q", plant.Level, plant.FullPath)
	}

	line := mustCreate(t, svc, "Line 1", &plant.ID)
	if line.Level != 1 || line.FullPath != "Plant/Line 1" {
		t.Fatalf("unexpected child: level=%d path=%q", line.Level, line.FullPath)
	}

	press := mustCreate(t, svc, "Press", &line.ID)
	if press.Level != 2 || press.FullPath != "Plant/Line 1/Press" {
		t.Fatalf("unexpected grandchild: level=%d path=%q", press.Level, press.FullPath)
	}
}

func TestCreateRejectsFourthLevel(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	line := mustCreate(t, svc, "Line 1", &plant.ID)
	press := mustCreate(t, svc, "Press", &line.ID)

	_, err := svc.Create(context.Background(), CreateAreaInput{Name: "Die", ParentID: &press.ID})
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestCreateRejectsUnknownParentAndBlankName(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	missing := uuid.New()
	_, err := svc.Create(context.Background(), CreateAreaInput{Name: "Orphan", ParentID: &missing})
	if code := errCode(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}

	_, err = svc.Create(context.Background(), CreateAreaInput{Name: "   "})
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestTreeNestsChildrenOrderedByName(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	mustCreate(t, svc, "Warehouse", nil)
	lineB := mustCreate(t, svc, "Line B", &plant.ID)
	mustCreate(t, svc, "Line A", &plant.ID)
	mustCreate(t, svc, "Press", &lineB.ID)

	tree, err := svc.Tree(context.Background())
	if err != nil {
		t.Fatalf("Tree returned error: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree))
	}
	if tree[0].Name != "Plant" || tree[1].Name != "Warehouse" {
		t.Fatalf("unexpected root order: %s, %s", tree[0].Name, tree[1].Name)
	}

	lines := tree[0].Children
	if len(lines) != 2 || lines[0].Name != "Line A" || lines[1].Name != "Line B" {
		t.Fatalf("unexpected children under Plant: %+v", lines)
	}

	press := lines[1].Children[0]
	if press.Level != 2 || press.FullPath != "Plant/Line B/Press" {
		t.Fatalf("unexpected leaf: level=%d path=%q", press.Level, press.FullPath)
	}
	if len(press.Children) != 0 {
		t.Fatalf("expected leaf to have no children")
	}
}

func TestListFilters(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	mustCreate(t, svc, "Warehouse", nil)
	mustCreate(t, svc, "Line 1", &plant.ID)

	level := 0
	roots, err := svc.List(context.Background(), ListAreasParams{Level: &level})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}

	children, err := svc.List(context.Background(), ListAreasParams{ParentID: &plant.ID})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(children) != 1 || children[0].Name != "Line 1" {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	line := mustCreate(t, svc, "Line 1", &plant.ID)

	_, err := svc.Update(context.Background(), plant.ID, UpdateAreaInput{ParentID: &plant.ID})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for self-parent, got %s", code)
	}

	_, err = svc.Update(context.Background(), plant.ID, UpdateAreaInput{ParentID: &line.ID})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for descendant parent, got %s", code)
	}
}

func TestMoveRejectsReciprocalMoveCommittedConcurrently(t *testing.T) {
	repo := newFakeAreaRepo()
	svc := newTestService(t, repo)

	plant := mustCreate(t, svc, "Plant", nil)
	annex := mustCreate(t, svc, "Annex", nil)

	// Another replica committed "Plant under Annex" between our read and
	// our write. The locked in-transaction read sees that commit, so the
	// reciprocal move must not close the loop.
	movedPlant := *repo.areas[plant.ID]
	movedPlant.ParentID = &annex.ID
	movedPlant.Level = 1
	repo.lockedSnapshot = []models.Area{*repo.areas[annex.ID], movedPlant}

	_, err := svc.Update(context.Background(), annex.ID, UpdateAreaInput{ParentID: &plant.ID})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for reciprocal move, got %s", code)
	}
}

func TestCorruptParentLoopDoesNotHangReads(t *testing.T) {
	repo := newFakeAreaRepo()
	svc := newTestService(t, repo)

	boiler := uuid.New()
	roof := uuid.New()
	repo.areas[boiler] = &models.Area{ID: boiler, Name: "Boiler Room", ParentID: &roof, Level: 1, IsActive: true}
	repo.areas[roof] = &models.Area{ID: roof, Name: "Roof", ParentID: &boiler, Level: 2, IsActive: true}

	area, err := svc.Get(context.Background(), boiler)
	if err != nil {
		t.Fatalf("Get on looping data: %v", err)
	}
	if area.FullPath == "" {
		t.Fatalf("expected a truncated path, got empty")
	}

	shed := mustCreate(t, svc, "Shed", nil)
	_, err = svc.Update(context.Background(), shed.ID, UpdateAreaInput{ParentID: &boiler})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT moving under a looping chain, got %s", code)
	}
}

func TestMoveRelevelsSubtree(t *testing.T) {
	repo := newFakeAreaRepo()
	svc := newTestService(t, repo)

	plant := mustCreate(t, svc, "Plant", nil)
	annex := mustCreate(t, svc, "Annex", nil)
	line := mustCreate(t, svc, "Line 1", &annex.ID)
	press := mustCreate(t, svc, "Press", &line.ID)

	// Promote Line 1 to a root, then hang it under Plant again.
	moved, err := svc.Update(context.Background(), line.ID, UpdateAreaInput{MoveToRoot: true})
	if err != nil {
		t.Fatalf("moving to root: %v", err)
	}
	if moved.Level != 0 || moved.ParentID != nil {
		t.Fatalf("expected root after move, got level=%d parent=%v", moved.Level, moved.ParentID)
	}
	child, err := svc.Get(context.Background(), press.ID)
	if err != nil {
		t.Fatalf("loading child: %v", err)
	}
	if child.Level != 1 || child.FullPath != "Line 1/Press" {
		t.Fatalf("expected releveled child, got level=%d path=%q", child.Level, child.FullPath)
	}

	moved, err = svc.Update(context.Background(), line.ID, UpdateAreaInput{ParentID: &plant.ID})
	if err != nil {
		t.Fatalf("moving under Plant: %v", err)
	}
	if moved.Level != 1 || moved.FullPath != "Plant/Line 1" {
		t.Fatalf("unexpected moved node: level=%d path=%q", moved.Level, moved.FullPath)
	}
	child, err = svc.Get(context.Background(), press.ID)
	if err != nil {
		t.Fatalf("loading child: %v", err)
	}
	if child.Level != 2 || child.FullPath != "Plant/Line 1/Press" {
		t.Fatalf("expected releveled child, got level=%d path=%q", child.Level, child.FullPath)
	}
}

func TestMoveRejectsWhenSubtreeWouldExceedDepth(t *testing.T) {
	svc := newTestService(t, newFakeAreaRepo())

	plant := mustCreate(t, svc, "Plant", nil)
	line := mustCreate(t, svc, "Line 1", &plant.ID)
	annex := mustCreate(t, svc, "Annex", nil)
	mustCreate(t, svc, "Shelf", &annex.ID)

	// Annex carries a child, so nesting it under Line 1 needs four levels.
	_, err := svc.Update(context.Background(), annex.ID, UpdateAreaInput{ParentID: &line.ID})
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestDeleteGuards(t *testing.T) {
	repo := newFakeAreaRepo()
	svc := newTestService(t, repo)

	plant := mustCreate(t, svc, "Plant", nil)
	line := mustCreate(t, svc, "Line 1", &plant.ID)

	if err := svc.Delete(context.Background(), plant.ID); errCode(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT deleting area with children, got %v", err)
	}

	repo.findingsByArea[line.ID] = 2
	if err := svc.Delete(context.Background(), line.ID); errCode(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT deleting area with findings, got %v", err)
	}

	repo.findingsByArea[line.ID] = 0
	if err := svc.Delete(context.Background(), line.ID); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := svc.Get(context.Background(), line.ID); errCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}
}
