package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/internal/access"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox/payloads"
)

const (
	dailySummaryWindow  = 24 * time.Hour
	weeklySummaryWindow = 7 * 24 * time.Hour
)

type summarySource interface {
	Summary(ctx context.Context, actor access.Identity, from, to *time.Time) (*findings.SummaryReport, error)
}

type digestAudience interface {
	ListByFlag(ctx context.Context, column string) ([]models.NotificationSettings, error)
}

type digestUserReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SummaryJobParams configure a digest job. DB and Outbox are optional; when
// both are set the job records a summary_requested event for auditing.
type SummaryJobParams struct {
	Logger   *logger.Logger
	Kind     enums.NotificationKind
	Findings summarySource
	Settings digestAudience
	Users    digestUserReader
	Sender   messageSender
	DB       txRunner
	Outbox   eventEmitter
}

type summaryJob struct {
	logg     *logger.Logger
	kind     enums.NotificationKind
	window   time.Duration
	column   string
	findings summarySource
	settings digestAudience
	users    digestUserReader
	sender   messageSender
	db       txRunner
	outbox   eventEmitter
	now      func() time.Time
}

// NewSummaryJob builds the daily or weekly digest job.
func NewSummaryJob(params SummaryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Findings == nil {
		return nil, fmt.Errorf("summary source required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("message sender required")
	}

	job := &summaryJob{
		logg:     params.Logger,
		kind:     params.Kind,
		findings: params.Findings,
		settings: params.Settings,
		users:    params.Users,
		sender:   params.Sender,
		db:       params.DB,
		outbox:   params.Outbox,
		now:      time.Now,
	}
	switch params.Kind {
	case enums.NotificationKindDailySummary:
		job.window = dailySummaryWindow
		job.column = "daily_summary"
	case enums.NotificationKindWeeklySummary:
		job.window = weeklySummaryWindow
		job.column = "weekly_summary"
	default:
		return nil, fmt.Errorf("unsupported summary kind %q", params.Kind)
	}
	return job, nil
}

func (j *summaryJob) Name() string {
	return strings.ReplaceAll(string(j.kind), "_", "-")
}

func (j *summaryJob) Run(ctx context.Context) error {
	end := j.now().UTC()
	start := end.Add(-j.window)

	// The digest reads on behalf of the system, not any user.
	system := access.Identity{Role: enums.RoleSuperAdmin, IsActive: true}
	report, err := j.findings.Summary(ctx, system, &start, &end)
	if err != nil {
		return fmt.Errorf("building %s report: %w", j.kind, err)
	}

	subscribers, err := j.settings.ListByFlag(ctx, j.column)
	if err != nil {
		return fmt.Errorf("listing %s subscribers: %w", j.kind, err)
	}

	text := renderDigest(j.kind, start, end, report)
	var delivered int
	var errs error
	for _, settings := range subscribers {
		user, err := j.users.FindByID(ctx, settings.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("loading subscriber %s: %w", settings.UserID, err))
			continue
		}
		if !user.IsActive || user.TelegramID == nil {
			continue
		}
		if err := j.sender.SendMessage(ctx, *user.TelegramID, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delivering digest to user %s: %w", user.ID, err))
			continue
		}
		delivered++
	}

	j.recordRequest(ctx, start, end)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"kind":        string(j.kind),
		"subscribers": len(subscribers),
		"delivered":   delivered,
		"total":       report.Total,
	})
	j.logg.Info(logCtx, "summary digest fan-out complete")
	return errs
}

func (j *summaryJob) recordRequest(ctx context.Context, start, end time.Time) {
	if j.db == nil || j.outbox == nil {
		return
	}
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSummaryRequested,
			AggregateType: enums.AggregateUser,
			AggregateID:   uuid.New(),
			Data: payloads.SummaryRequestedEvent{
				Kind:        j.kind,
				WindowStart: start,
				WindowEnd:   end,
			},
		})
	})
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "kind", string(j.kind)), "recording summary request failed")
	}
}

func renderDigest(kind enums.NotificationKind, start, end time.Time, report *findings.SummaryReport) string {
	var b strings.Builder
	switch kind {
	case enums.NotificationKindWeeklySummary:
		b.WriteString("Weekly safety digest\n")
	default:
		b.WriteString("Daily safety digest\n")
	}
	fmt.Fprintf(&b, "%s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Fprintf(&b, "Findings reported: %d\n", report.Total)
	if len(report.ByStatus) > 0 {
		b.WriteString("By status: ")
		b.WriteString(joinBuckets(report.ByStatus))
		b.WriteString("\n")
	}
	if len(report.BySeverity) > 0 {
		b.WriteString("By severity: ")
		b.WriteString(joinBuckets(report.BySeverity))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinBuckets(buckets []findings.SummaryBucket) string {
	parts := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		parts = append(parts, fmt.Sprintf("%s %d", bucket.Key, bucket.Count))
	}
	return strings.Join(parts, ", ")
}
