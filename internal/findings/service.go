package findings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/internal/access"
	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox/payloads"
	"github.com/safetrackhq/safetrack-backend/pkg/pagination"
)

const reportIDDigits = 4

type findingsRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, finding *models.Finding) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Finding, error)
	MaxReportID(ctx context.Context, prefix string) (string, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, update statusUpdate) (int64, error)
	UpdateAssigneeTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, assigneeID *uuid.UUID) error
	AddHistoryTx(ctx context.Context, tx *gorm.DB, row *models.StatusHistory) error
	AddPhotosTx(ctx context.Context, tx *gorm.DB, photos []models.Photo) error
	AddPhoto(ctx context.Context, photo *models.Photo) error
	Photos(ctx context.Context, findingID uuid.UUID) ([]models.Photo, error)
	History(ctx context.Context, findingID uuid.UUID) ([]models.StatusHistory, error)
	List(ctx context.Context, filter listFilter) ([]models.Finding, int64, error)
	CountByColumn(ctx context.Context, column string, from, to *time.Time) ([]groupCount, error)
	CountByArea(ctx context.Context, from, to *time.Time) ([]groupCount, error)
	CountTotal(ctx context.Context, from, to *time.Time) (int64, error)
}

type areaReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Area, error)
	ListAll(ctx context.Context) ([]models.Area, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the finding lifecycle.
type Service interface {
	Create(ctx context.Context, actor access.Identity, input CreateFindingInput) (*FindingDTO, error)
	Get(ctx context.Context, actor access.Identity, id uuid.UUID) (*FindingDTO, error)
	List(ctx context.Context, actor access.Identity, params ListFindingsParams) (*pagination.Page[FindingDTO], error)
	Transition(ctx context.Context, actor access.Identity, id uuid.UUID, input TransitionInput) (*FindingDTO, error)
	Assign(ctx context.Context, actor access.Identity, id uuid.UUID, assigneeID *uuid.UUID) (*FindingDTO, error)
	AppendPhoto(ctx context.Context, actor access.Identity, id uuid.UUID, input PhotoInput) (*FindingDTO, error)
	Summary(ctx context.Context, actor access.Identity, from, to *time.Time) (*SummaryReport, error)
}

type service struct {
	repo    findingsRepository
	areas   areaReader
	users   userReader
	emitter eventEmitter
	tx      txRunner
	logg    *logger.Logger
}

func NewService(
	repo findingsRepository,
	areas areaReader,
	users userReader,
	emitter eventEmitter,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("findings repository is required")
	}
	if areas == nil {
		return nil, fmt.Errorf("area reader is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, areas: areas, users: users, emitter: emitter, tx: tx, logg: logg}, nil
}

func decisionError(decision access.Decision) error {
	switch decision {
	case access.Allow:
		return nil
	case access.DenyNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "finding not found")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted")
	}
}

func (s *service) Create(ctx context.Context, actor access.Identity, input CreateFindingInput) (*FindingDTO, error) {
	if err := decisionError(access.CanAccess(actor, access.ActionCreateFinding, nil)); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if !input.Severity.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown severity")
	}
	if _, err := s.areas.FindByID(ctx, input.AreaID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "area not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading area")
	}

	now := time.Now().UTC()
	reportedAt := now
	if input.ReportedAt != nil {
		reportedAt = input.ReportedAt.UTC()
	}

	finding := &models.Finding{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Severity:    input.Severity,
		Status:      enums.FindingStatusOpen,
		Location:    input.Location,
		AreaID:      input.AreaID,
		ReporterID:  actor.UserID,
		ReportedAt:  reportedAt,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reportID, err := s.nextReportID(ctx, reportedAt.Year())
		if err != nil {
			return err
		}
		finding.ReportID = reportID

		if err := s.repo.CreateTx(ctx, tx, finding); err != nil {
			return err
		}

		history := &models.StatusHistory{
			ID:        uuid.New(),
			FindingID: finding.ID,
			ToStatus:  enums.FindingStatusOpen,
			ActorID:   actor.UserID,
		}
		if err := s.repo.AddHistoryTx(ctx, tx, history); err != nil {
			return err
		}

		photos := make([]models.Photo, 0, len(input.Photos))
		for _, p := range input.Photos {
			if strings.TrimSpace(p.StorageKey) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "photo storage_key is required")
			}
			photos = append(photos, models.Photo{
				ID:               uuid.New(),
				FindingID:        finding.ID,
				StorageKey:       p.StorageKey,
				OriginalFilename: p.OriginalFilename,
				MimeType:         p.MimeType,
				SizeBytes:        p.SizeBytes,
			})
		}
		if err := s.repo.AddPhotosTx(ctx, tx, photos); err != nil {
			return err
		}

		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFindingCreated,
			AggregateType: enums.AggregateFinding,
			AggregateID:   finding.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.FindingCreatedEvent{
				FindingID:  finding.ID,
				ReportID:   finding.ReportID,
				Title:      finding.Title,
				Severity:   finding.Severity,
				AreaID:     finding.AreaID,
				ReporterID: finding.ReporterID,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			// Two creators raced on the same report sequence.
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "report id allocation conflicted, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating finding")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"finding_id": finding.ID.String(),
		"report_id":  finding.ReportID,
		"severity":   finding.Severity.String(),
	}), "finding created")

	return s.Get(ctx, actor, finding.ID)
}

// nextReportID allocates the next SF-YYYY-NNNN for the year. The unique index
// on report_id backstops concurrent allocations.
func (s *service) nextReportID(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("SF-%d-", year)
	latest, err := s.repo.MaxReportID(ctx, prefix)
	if err != nil {
		return "", err
	}

	next := 1
	if latest != "" {
		seq, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed report id %q: %w", latest, err)
		}
		next = seq + 1
	}
	return fmt.Sprintf("%s%0*d", prefix, reportIDDigits, next), nil
}

func (s *service) Get(ctx context.Context, actor access.Identity, id uuid.UUID) (*FindingDTO, error) {
	finding, err := s.loadGuarded(ctx, actor, id, access.ActionReadFinding)
	if err != nil {
		return nil, err
	}

	dto := fromModel(finding)

	if area, err := s.areas.FindByID(ctx, finding.AreaID); err == nil {
		dto.Area = &AreaRef{ID: area.ID, Name: area.Name}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading area")
	}

	if ref, err := s.userRef(ctx, finding.ReporterID); err != nil {
		return nil, err
	} else {
		dto.Reporter = ref
	}
	if finding.AssigneeID != nil {
		ref, err := s.userRef(ctx, *finding.AssigneeID)
		if err != nil {
			return nil, err
		}
		dto.Assignee = ref
	}

	photos, err := s.repo.Photos(ctx, finding.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading photos")
	}
	dto.Photos = make([]PhotoDTO, 0, len(photos))
	for i := range photos {
		dto.Photos = append(dto.Photos, photoFromModel(&photos[i]))
	}

	history, err := s.repo.History(ctx, finding.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading status history")
	}
	dto.StatusHistory = make([]StatusHistoryDTO, 0, len(history))
	for i := range history {
		dto.StatusHistory = append(dto.StatusHistory, historyFromModel(&history[i]))
	}

	return dto, nil
}

func (s *service) userRef(ctx context.Context, id uuid.UUID) (*UserRef, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	return &UserRef{ID: user.ID, FullName: user.FullName, Role: user.Role}, nil
}

func (s *service) List(ctx context.Context, actor access.Identity, params ListFindingsParams) (*pagination.Page[FindingDTO], error) {
	if !actor.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "action not permitted")
	}

	page := params.Page.Normalize()
	filter := listFilter{
		DateFrom:   params.DateFrom,
		DateTo:     params.DateTo,
		ReporterID: params.ReporterID,
		AssigneeID: params.AssigneeID,
		Offset:     page.Offset(),
		Limit:      page.Limit(),
	}

	// Reporters only ever see their own findings.
	if actor.Role == enums.RoleReporter {
		filter.ReporterID = &actor.UserID
	}

	if params.Severity != nil {
		severity, err := enums.ParseSeverity(*params.Severity)
		if err != nil {
			return emptyPage(page), nil
		}
		filter.Severity = &severity
	}
	if params.Status != nil {
		status, err := enums.ParseFindingStatus(*params.Status)
		if err != nil {
			return emptyPage(page), nil
		}
		filter.Status = &status
	}
	if params.AreaID != nil {
		areaIDs, err := s.subtreeIDs(ctx, *params.AreaID)
		if err != nil {
			return nil, err
		}
		if len(areaIDs) == 0 {
			return emptyPage(page), nil
		}
		filter.AreaIDs = areaIDs
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing findings")
	}

	items := make([]FindingDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *fromModel(&rows[i]))
	}
	result := pagination.NewPage(items, total, page)
	return &result, nil
}

func emptyPage(page pagination.Params) *pagination.Page[FindingDTO] {
	empty := pagination.NewPage([]FindingDTO{}, 0, page)
	return &empty
}

// subtreeIDs expands an area filter to the area plus all descendants.
func (s *service) subtreeIDs(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	all, err := s.areas.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing areas")
	}

	known := false
	children := make(map[uuid.UUID][]uuid.UUID)
	for i := range all {
		if all[i].ID == root {
			known = true
		}
		if all[i].ParentID != nil {
			children[*all[i].ParentID] = append(children[*all[i].ParentID], all[i].ID)
		}
	}
	if !known {
		return nil, nil
	}

	out := []uuid.UUID{root}
	for cursor := 0; cursor < len(out); cursor++ {
		out = append(out, children[out[cursor]]...)
	}
	return out, nil
}

func (s *service) Transition(ctx context.Context, actor access.Identity, id uuid.UUID, input TransitionInput) (*FindingDTO, error) {
	finding, err := s.loadGuarded(ctx, actor, id, access.ActionTransitionFinding)
	if err != nil {
		return nil, err
	}

	event, err := deriveEvent(finding.Status, input.TargetStatus)
	if err != nil {
		return nil, err
	}
	if isOverrideClose(finding.Status, event) {
		if err := decisionError(access.CanAccess(actor, access.ActionOverrideClose, &access.FindingRef{ReporterID: finding.ReporterID})); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	update := statusUpdate{From: finding.Status, To: input.TargetStatus}
	switch {
	case input.TargetStatus == enums.FindingStatusClosed:
		update.ClosedAt = &now
	case input.TargetStatus == enums.FindingStatusResolved:
		update.ResolvedAt = &now
	}
	if event == enums.TransitionResolve && input.Note != nil {
		update.ResolutionNote = input.Note
	}

	eventName := event.String()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatusTx(ctx, tx, finding.ID, update)
		if err != nil {
			return err
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "finding was modified concurrently, retry")
		}

		from := finding.Status
		history := &models.StatusHistory{
			ID:         uuid.New(),
			FindingID:  finding.ID,
			FromStatus: &from,
			ToStatus:   input.TargetStatus,
			Event:      &eventName,
			ActorID:    actor.UserID,
			Note:       input.Note,
		}
		if err := s.repo.AddHistoryTx(ctx, tx, history); err != nil {
			return err
		}

		note := ""
		if input.Note != nil {
			note = *input.Note
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFindingStatusChanged,
			AggregateType: enums.AggregateFinding,
			AggregateID:   finding.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.FindingStatusChangedEvent{
				FindingID:  finding.ID,
				ReportID:   finding.ReportID,
				FromStatus: finding.Status,
				ToStatus:   input.TargetStatus,
				Event:      eventName,
				ActorID:    actor.UserID,
				Note:       note,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "applying transition")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"finding_id": finding.ID.String(),
		"event":      eventName,
		"from":       finding.Status.String(),
		"to":         input.TargetStatus.String(),
	}), "finding transitioned")

	return s.Get(ctx, actor, finding.ID)
}

func (s *service) Assign(ctx context.Context, actor access.Identity, id uuid.UUID, assigneeID *uuid.UUID) (*FindingDTO, error) {
	finding, err := s.loadGuarded(ctx, actor, id, access.ActionAssignFinding)
	if err != nil {
		return nil, err
	}

	if assigneeID != nil {
		assignee, err := s.users.FindByID(ctx, *assigneeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignee must be an active admin")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading assignee")
		}
		if !assignee.IsActive || !assignee.Role.IsElevated() {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignee must be an active admin")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.UpdateAssigneeTx(ctx, tx, finding.ID, assigneeID); err != nil {
			return err
		}
		if assigneeID == nil {
			return nil
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFindingAssigned,
			AggregateType: enums.AggregateFinding,
			AggregateID:   finding.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: payloads.FindingAssignedEvent{
				FindingID:  finding.ID,
				ReportID:   finding.ReportID,
				AssigneeID: *assigneeID,
				AssignedBy: actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assigning finding")
	}

	return s.Get(ctx, actor, finding.ID)
}

func (s *service) AppendPhoto(ctx context.Context, actor access.Identity, id uuid.UUID, input PhotoInput) (*FindingDTO, error) {
	finding, err := s.loadGuarded(ctx, actor, id, access.ActionAppendPhoto)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.StorageKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo storage_key is required")
	}

	photo := &models.Photo{
		ID:               uuid.New(),
		FindingID:        finding.ID,
		StorageKey:       input.StorageKey,
		OriginalFilename: input.OriginalFilename,
		MimeType:         input.MimeType,
		SizeBytes:        input.SizeBytes,
	}
	if err := s.repo.AddPhoto(ctx, photo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adding photo")
	}

	return s.Get(ctx, actor, finding.ID)
}

func (s *service) Summary(ctx context.Context, actor access.Identity, from, to *time.Time) (*SummaryReport, error) {
	if err := decisionError(access.CanAccess(actor, access.ActionViewSummary, nil)); err != nil {
		return nil, err
	}

	total, err := s.repo.CountTotal(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting findings")
	}

	report := &SummaryReport{
		Total:      total,
		DateFrom:   from,
		DateTo:     to,
		BySeverity: []SummaryBucket{},
		ByStatus:   []SummaryBucket{},
		ByArea:     []SummaryBucket{},
	}
	if total == 0 {
		return report, nil
	}

	bySeverity, err := s.repo.CountByColumn(ctx, "severity", from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregating by severity")
	}
	byStatus, err := s.repo.CountByColumn(ctx, "status", from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregating by status")
	}
	byArea, err := s.repo.CountByArea(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregating by area")
	}

	report.BySeverity = toBuckets(bySeverity, total)
	report.ByStatus = toBuckets(byStatus, total)
	report.ByArea = toBuckets(byArea, total)
	return report, nil
}

func toBuckets(counts []groupCount, total int64) []SummaryBucket {
	out := make([]SummaryBucket, 0, len(counts))
	for _, c := range counts {
		percent := math.Round(float64(c.Count)/float64(total)*1000) / 10
		out = append(out, SummaryBucket{Key: c.Key, Count: c.Count, Percent: percent})
	}
	return out
}

// loadGuarded fetches the finding and runs the access gate for the action,
// translating denials into the right refusal.
func (s *service) loadGuarded(ctx context.Context, actor access.Identity, id uuid.UUID, action access.Action) (*models.Finding, error) {
	finding, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "finding not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading finding")
	}
	if err := decisionError(access.CanAccess(actor, action, &access.FindingRef{ReporterID: finding.ReporterID})); err != nil {
		return nil, err
	}
	return finding, nil
}
