package areas

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

// maxDepth caps the hierarchy at three levels (0, 1, 2).
const maxDepth = 3

type areasRepository interface {
	Create(ctx context.Context, area *models.Area) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Area, error)
	ListAll(ctx context.Context) ([]models.Area, error)
	Save(ctx context.Context, area *models.Area) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountChildren(ctx context.Context, id uuid.UUID) (int64, error)
	CountFindings(ctx context.Context, id uuid.UUID) (int64, error)
	ListAllForUpdateTx(ctx context.Context, tx *gorm.DB) ([]models.Area, error)
	SaveTx(ctx context.Context, tx *gorm.DB, area *models.Area) error
	UpdateLevelTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, level int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the area hierarchy.
type Service interface {
	Create(ctx context.Context, input CreateAreaInput) (*AreaDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*AreaDTO, error)
	List(ctx context.Context, params ListAreasParams) ([]AreaDTO, error)
	Tree(ctx context.Context) ([]*AreaNode, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateAreaInput) (*AreaDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo areasRepository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo areasRepository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("areas repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateAreaInput) (*AreaDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "area name is required")
	}

	level := 0
	if input.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parent area not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading parent area")
		}
		level = parent.Level + 1
		if level >= maxDepth {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "area hierarchy is limited to three levels")
		}
	}

	area := &models.Area{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		ParentID:    input.ParentID,
		Level:       level,
		IsActive:    true,
	}

	if err := s.repo.Create(ctx, area); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "area name already in use under this parent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating area")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"area_id": area.ID.String(),
		"level":   area.Level,
	}), "area created")

	return s.Get(ctx, area.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AreaDTO, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing areas")
	}

	byID := indexByID(all)
	area, ok := byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "area not found")
	}
	return fromModel(area, fullPathFor(byID, area)), nil
}

func (s *service) List(ctx context.Context, params ListAreasParams) ([]AreaDTO, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing areas")
	}

	byID := indexByID(all)
	out := make([]AreaDTO, 0, len(all))
	for i := range all {
		area := &all[i]
		if params.Level != nil && area.Level != *params.Level {
			continue
		}
		if params.ParentID != nil {
			if area.ParentID == nil || *area.ParentID != *params.ParentID {
				continue
			}
		}
		out = append(out, *fromModel(area, fullPathFor(byID, area)))
	}
	return out, nil
}

// Tree builds the nested hierarchy from a single flat read. Levels and paths
// are recomputed during the walk rather than trusted from storage.
func (s *service) Tree(ctx context.Context) ([]*AreaNode, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing areas")
	}

	children := indexByParent(all)
	roots := children[uuid.Nil]

	out := make([]*AreaNode, 0, len(roots))
	for _, root := range roots {
		out = append(out, buildNode(children, root, 0, ""))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateAreaInput) (*AreaDTO, error) {
	area, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "area not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading area")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "area name is required")
		}
		area.Name = name
	}
	if input.Description != nil {
		area.Description = input.Description
	}
	if input.IsActive != nil {
		area.IsActive = *input.IsActive
	}

	if input.ParentID != nil && input.MoveToRoot {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot move to a parent and to the root at once")
	}

	if input.ParentID != nil || input.MoveToRoot {
		if err := s.move(ctx, area, input.ParentID); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.Save(ctx, area); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "area name already in use under this parent")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating area")
		}
	}

	return s.Get(ctx, area.ID)
}

// move reparents the area and rewrites the levels of the moved subtree inside
// one transaction. The cycle and depth checks run against a row-locked read
// taken inside that transaction, so two interleaved reciprocal moves cannot
// both pass validation and commit a parent loop.
func (s *service) move(ctx context.Context, area *models.Area, newParentID *uuid.UUID) error {
	if newParentID != nil && *newParentID == area.ID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "area cannot be its own parent")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		all, err := s.repo.ListAllForUpdateTx(ctx, tx)
		if err != nil {
			return err
		}
		byID := indexByID(all)
		children := indexByParent(all)

		newLevel := 0
		if newParentID != nil {
			parent, ok := byID[*newParentID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "parent area not found")
			}
			if isDescendant(byID, parent, area.ID) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move an area under its own descendant")
			}
			newLevel = parent.Level + 1
		}

		if newLevel+subtreeHeight(children, area.ID, 0) >= maxDepth {
			return pkgerrors.New(pkgerrors.CodeValidation, "area hierarchy is limited to three levels")
		}

		area.ParentID = newParentID
		area.Level = newLevel
		if err := s.repo.SaveTx(ctx, tx, area); err != nil {
			return err
		}
		return s.relevel(ctx, tx, children, area.ID, newLevel)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return err
		}
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "area name already in use under this parent")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "moving area")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"area_id": area.ID.String(),
		"level":   area.Level,
	}), "area moved")
	return nil
}

func (s *service) relevel(ctx context.Context, tx *gorm.DB, children map[uuid.UUID][]*models.Area, parentID uuid.UUID, parentLevel int) error {
	if parentLevel+1 >= maxDepth && len(children[parentID]) > 0 {
		return fmt.Errorf("area %s has children past the depth cap", parentID)
	}
	for _, child := range children[parentID] {
		if err := s.repo.UpdateLevelTx(ctx, tx, child.ID, parentLevel+1); err != nil {
			return err
		}
		if err := s.relevel(ctx, tx, children, child.ID, parentLevel+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "area not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading area")
	}

	childCount, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting child areas")
	}
	if childCount > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "area has child areas")
	}

	findingCount, err := s.repo.CountFindings(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting findings")
	}
	if findingCount > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "area has findings attached")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting area")
	}

	s.logg.Info(s.logg.WithField(ctx, "area_id", id.String()), "area deleted")
	return nil
}

func indexByID(all []models.Area) map[uuid.UUID]*models.Area {
	byID := make(map[uuid.UUID]*models.Area, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}
	return byID
}

// indexByParent groups areas by parent, with roots under uuid.Nil. Input is
// name-ordered from the repository, which the grouping preserves.
func indexByParent(all []models.Area) map[uuid.UUID][]*models.Area {
	children := make(map[uuid.UUID][]*models.Area)
	for i := range all {
		key := uuid.Nil
		if all[i].ParentID != nil {
			key = *all[i].ParentID
		}
		children[key] = append(children[key], &all[i])
	}
	for key := range children {
		group := children[key]
		sort.SliceStable(group, func(a, b int) bool { return group[a].Name < group[b].Name })
	}
	return children
}

func buildNode(children map[uuid.UUID][]*models.Area, area *models.Area, level int, parentPath string) *AreaNode {
	path := area.Name
	if parentPath != "" {
		path = parentPath + "/" + area.Name
	}

	node := &AreaNode{AreaDTO: *fromModel(area, path), Children: []*AreaNode{}}
	node.Level = level
	for _, child := range children[area.ID] {
		node.Children = append(node.Children, buildNode(children, child, level+1, path))
	}
	return node
}

// fullPathFor walks at most maxDepth parent hops, so a corrupt parent loop in
// storage yields a truncated path instead of hanging every read.
func fullPathFor(byID map[uuid.UUID]*models.Area, area *models.Area) string {
	names := []string{area.Name}
	cur := area
	for hops := 0; cur.ParentID != nil && hops < maxDepth; hops++ {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			break
		}
		names = append(names, parent.Name)
		cur = parent
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

func isDescendant(byID map[uuid.UUID]*models.Area, candidate *models.Area, ancestorID uuid.UUID) bool {
	cur := candidate
	for hops := 0; cur != nil && cur.ParentID != nil; hops++ {
		if hops >= maxDepth {
			// A parent chain longer than the depth cap is corrupt. Treat
			// it as a cycle instead of walking it forever.
			return true
		}
		if *cur.ParentID == ancestorID {
			return true
		}
		cur = byID[*cur.ParentID]
	}
	return false
}

func subtreeHeight(children map[uuid.UUID][]*models.Area, id uuid.UUID, depth int) int {
	if depth >= maxDepth {
		return maxDepth
	}
	height := 0
	for _, child := range children[id] {
		if h := subtreeHeight(children, child.ID, depth+1) + 1; h > height {
			height = h
		}
	}
	return height
}
