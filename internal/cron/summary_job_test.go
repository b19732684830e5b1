package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/internal/access"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

type fakeSummarySource struct {
	report   *findings.SummaryReport
	gotFrom  *time.Time
	gotTo    *time.Time
	gotActor access.Identity
}

func (f *fakeSummarySource) Summary(_ context.Context, actor access.Identity, from, to *time.Time) (*findings.SummaryReport, error) {
	f.gotActor = actor
	f.gotFrom = from
	f.gotTo = to
	return f.report, nil
}

type fakeAudience struct {
	byColumn map[string][]models.NotificationSettings
}

func (f *fakeAudience) ListByFlag(_ context.Context, column string) ([]models.NotificationSettings, error) {
	return f.byColumn[column], nil
}

type fakeDigestUsers struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeDigestUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeDigestSender struct {
	sent    []int64
	failFor int64
}

func (f *fakeDigestSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	if f.failFor != 0 && chatID == f.failFor {
		return errors.New("telegram down")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func chatPtr(v int64) *int64 { return &v }

func TestDailySummaryJobFansOutToSubscribers(t *testing.T) {
	subscribedID := uuid.New()
	unlinkedID := uuid.New()
	inactiveID := uuid.New()

	source := &fakeSummarySource{report: &findings.SummaryReport{
		Total: 3,
		ByStatus: []findings.SummaryBucket{
			{Key: "open", Count: 2},
			{Key: "closed", Count: 1},
		},
		BySeverity: []findings.SummaryBucket{{Key: "critical", Count: 1}},
	}}
	audience := &fakeAudience{byColumn: map[string][]models.NotificationSettings{
		"daily_summary": {
			{UserID: subscribedID, DailySummary: true},
			{UserID: unlinkedID, DailySummary: true},
			{UserID: inactiveID, DailySummary: true},
		},
	}}
	users := &fakeDigestUsers{byID: map[uuid.UUID]*models.User{
		subscribedID: {ID: subscribedID, IsActive: true, TelegramID: chatPtr(100)},
		unlinkedID:   {ID: unlinkedID, IsActive: true},
		inactiveID:   {ID: inactiveID, IsActive: false, TelegramID: chatPtr(200)},
	}}
	sender := &fakeDigestSender{}

	job, err := NewSummaryJob(SummaryJobParams{
		Logger:   testLogger(t),
		Kind:     enums.NotificationKindDailySummary,
		Findings: source,
		Settings: audience,
		Users:    users,
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("NewSummaryJob: %v", err)
	}
	if job.Name() != "daily-summary" {
		t.Fatalf("unexpected job name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != 100 {
		t.Fatalf("expected one delivery to chat 100, got %v", sender.sent)
	}
	if source.gotFrom == nil || source.gotTo == nil {
		t.Fatalf("report window was not bounded")
	}
	if window := source.gotTo.Sub(*source.gotFrom); window != 24*time.Hour {
		t.Fatalf("expected a 24h window, got %s", window)
	}
	if !source.gotActor.Role.IsElevated() {
		t.Fatalf("digest must read with an elevated system identity")
	}
}

func TestWeeklySummaryJobUsesSevenDayWindow(t *testing.T) {
	source := &fakeSummarySource{report: &findings.SummaryReport{}}
	job, err := NewSummaryJob(SummaryJobParams{
		Logger:   testLogger(t),
		Kind:     enums.NotificationKindWeeklySummary,
		Findings: source,
		Settings: &fakeAudience{},
		Users:    &fakeDigestUsers{},
		Sender:   &fakeDigestSender{},
	})
	if err != nil {
		t.Fatalf("NewSummaryJob: %v", err)
	}
	if job.Name() != "weekly-summary" {
		t.Fatalf("unexpected job name %q", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if window := source.gotTo.Sub(*source.gotFrom); window != 7*24*time.Hour {
		t.Fatalf("expected a 7d window, got %s", window)
	}
}

func TestSummaryJobCollectsDeliveryFailures(t *testing.T) {
	okID := uuid.New()
	brokenID := uuid.New()

	audience := &fakeAudience{byColumn: map[string][]models.NotificationSettings{
		"daily_summary": {
			{UserID: brokenID, DailySummary: true},
			{UserID: okID, DailySummary: true},
		},
	}}
	users := &fakeDigestUsers{byID: map[uuid.UUID]*models.User{
		okID:     {ID: okID, IsActive: true, TelegramID: chatPtr(100)},
		brokenID: {ID: brokenID, IsActive: true, TelegramID: chatPtr(666)},
	}}
	sender := &fakeDigestSender{failFor: 666}

	job, err := NewSummaryJob(SummaryJobParams{
		Logger:   testLogger(t),
		Kind:     enums.NotificationKindDailySummary,
		Findings: &fakeSummarySource{report: &findings.SummaryReport{}},
		Settings: audience,
		Users:    users,
		Sender:   sender,
	})
	if err != nil {
		t.Fatalf("NewSummaryJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "telegram down") {
		t.Fatalf("expected the delivery failure to surface, got %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != 100 {
		t.Fatalf("one failed delivery must not stop the rest: %v", sender.sent)
	}
}

func TestNewSummaryJobRejectsUnknownKind(t *testing.T) {
	_, err := NewSummaryJob(SummaryJobParams{
		Logger:   testLogger(t),
		Kind:     enums.NotificationKindNewFinding,
		Findings: &fakeSummarySource{},
		Settings: &fakeAudience{},
		Users:    &fakeDigestUsers{},
		Sender:   &fakeDigestSender{},
	})
	if err == nil {
		t.Fatalf("expected error for non-digest kind")
	}
}

func TestRenderDigestListsBuckets(t *testing.T) {
	report := &findings.SummaryReport{
		Total:      5,
		ByStatus:   []findings.SummaryBucket{{Key: "open", Count: 3}, {Key: "resolved", Count: 2}},
		BySeverity: []findings.SummaryBucket{{Key: "high", Count: 4}},
	}
	start := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	text := renderDigest(enums.NotificationKindDailySummary, start, end, report)
	for _, want := range []string{"Daily safety digest", "2026-08-28 to 2026-08-29", "Findings reported: 5", "open 3, resolved 2", "high 4"} {
		if !strings.Contains(text, want) {
			t.Fatalf("digest missing %q:\n%s", want, text)
		}
	}
}
