package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrackhq/safetrack-backend/pkg/db/models"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox/payloads"
)

const dedupeTTL = 24 * time.Hour

type recipientReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveAdmins(ctx context.Context) ([]models.User, error)
}

type findingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Finding, error)
}

type settingsReader interface {
	FindManyByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]models.NotificationSettings, error)
}

type deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Consumer fans lifecycle events out to Telegram recipients, honoring each
// recipient's preference flags. A returned error means the message should be
// redelivered.
type Consumer struct {
	users    recipientReader
	findings findingReader
	settings settingsReader
	sender   MessageSender
	dedupe   deduper
	logg     *logger.Logger
}

func NewConsumer(
	users recipientReader,
	findings findingReader,
	settings settingsReader,
	sender MessageSender,
	dedupe deduper,
	logg *logger.Logger,
) (*Consumer, error) {
	if users == nil {
		return nil, fmt.Errorf("recipient reader is required")
	}
	if findings == nil {
		return nil, fmt.Errorf("finding reader is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("deduper is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Consumer{users: users, findings: findings, settings: settings, sender: sender, dedupe: dedupe, logg: logg}, nil
}

// Handle processes one published envelope. Unknown event types are dropped and
// already-seen event ids are skipped. When delivery fails the dedupe claim is
// released before the error bubbles up, so the redelivery is not mistaken for a
// duplicate and silently acked.
func (c *Consumer) Handle(ctx context.Context, eventType string, data []byte) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "event_type", eventType), "dropping undecodable envelope")
		return nil
	}

	var dedupeKey string
	if envelope.EventID != "" {
		dedupeKey = c.dedupe.LockKey("event:" + envelope.EventID)
		fresh, err := c.dedupe.SetNX(ctx, dedupeKey, "1", dedupeTTL)
		if err != nil {
			return fmt.Errorf("checking event dedupe: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	if err := c.dispatch(ctx, eventType, envelope); err != nil {
		if dedupeKey != "" {
			if delErr := c.dedupe.Del(ctx, dedupeKey); delErr != nil {
				c.logg.Error(c.logg.WithField(ctx, "event_id", envelope.EventID), "failed to release dedupe claim", delErr)
			}
		}
		return err
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, eventType string, envelope outbox.PayloadEnvelope) error {
	switch enums.OutboxEventType(eventType) {
	case enums.EventFindingCreated:
		var payload payloads.FindingCreatedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "event_type", eventType), "dropping undecodable payload")
			return nil
		}
		return c.handleCreated(ctx, envelope, payload)

	case enums.EventFindingStatusChanged:
		var payload payloads.FindingStatusChangedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "event_type", eventType), "dropping undecodable payload")
			return nil
		}
		return c.handleStatusChanged(ctx, envelope, payload)

	case enums.EventFindingAssigned:
		var payload payloads.FindingAssignedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "event_type", eventType), "dropping undecodable payload")
			return nil
		}
		return c.handleAssigned(ctx, envelope, payload)

	default:
		// Other event types belong to other workers.
		return nil
	}
}

func (c *Consumer) handleCreated(ctx context.Context, envelope outbox.PayloadEnvelope, payload payloads.FindingCreatedEvent) error {
	text := fmt.Sprintf("New finding %s: %s (severity %s)", payload.ReportID, payload.Title, payload.Severity)

	recipients, err := c.adminRecipients(ctx, envelope, func(s *models.NotificationSettings) bool { return s.NewFinding })
	if err != nil {
		return err
	}
	return c.deliver(ctx, recipients, text)
}

func (c *Consumer) handleStatusChanged(ctx context.Context, envelope outbox.PayloadEnvelope, payload payloads.FindingStatusChangedEvent) error {
	text := fmt.Sprintf("Finding %s moved %s -> %s", payload.ReportID, payload.FromStatus, payload.ToStatus)
	if payload.Note != "" {
		text += "\nNote: " + payload.Note
	}

	recipients, err := c.adminRecipients(ctx, envelope, func(s *models.NotificationSettings) bool { return s.StatusChange })
	if err != nil {
		return err
	}

	// The reporter hears about their own finding's progress too.
	finding, err := c.findings.FindByID(ctx, payload.FindingID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loading finding: %w", err)
	}
	if finding != nil && !actorIs(envelope, finding.ReporterID) && !containsRecipient(recipients, finding.ReporterID) {
		reporter, err := c.users.FindByID(ctx, finding.ReporterID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("loading reporter: %w", err)
		}
		if reporter != nil && reporter.IsActive && reporter.TelegramID != nil {
			allowed, err := c.flagEnabled(ctx, reporter.ID, func(s *models.NotificationSettings) bool { return s.StatusChange })
			if err != nil {
				return err
			}
			if allowed {
				recipients = append(recipients, *reporter)
			}
		}
	}

	return c.deliver(ctx, recipients, text)
}

func (c *Consumer) handleAssigned(ctx context.Context, envelope outbox.PayloadEnvelope, payload payloads.FindingAssignedEvent) error {
	if actorIs(envelope, payload.AssigneeID) {
		return nil
	}

	assignee, err := c.users.FindByID(ctx, payload.AssigneeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("loading assignee: %w", err)
	}
	if !assignee.IsActive || assignee.TelegramID == nil {
		return nil
	}
	allowed, err := c.flagEnabled(ctx, assignee.ID, func(s *models.NotificationSettings) bool { return s.Assignment })
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	text := fmt.Sprintf("Finding %s was assigned to you", payload.ReportID)
	return c.deliver(ctx, []models.User{*assignee}, text)
}

// adminRecipients selects active elevated users with a linked chat whose
// preference flag allows the event, excluding the event's actor.
func (c *Consumer) adminRecipients(ctx context.Context, envelope outbox.PayloadEnvelope, enabled func(*models.NotificationSettings) bool) ([]models.User, error) {
	admins, err := c.users.ListActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}

	candidates := make([]models.User, 0, len(admins))
	ids := make([]uuid.UUID, 0, len(admins))
	for _, admin := range admins {
		if admin.TelegramID == nil || actorIs(envelope, admin.ID) {
			continue
		}
		candidates = append(candidates, admin)
		ids = append(ids, admin.ID)
	}

	stored, err := c.settings.FindManyByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading notification settings: %w", err)
	}
	byUser := make(map[uuid.UUID]*models.NotificationSettings, len(stored))
	for i := range stored {
		byUser[stored[i].UserID] = &stored[i]
	}

	out := make([]models.User, 0, len(candidates))
	for _, candidate := range candidates {
		settings, ok := byUser[candidate.ID]
		if !ok {
			settings = defaultSettings(candidate.ID)
		}
		if enabled(settings) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (c *Consumer) flagEnabled(ctx context.Context, userID uuid.UUID, enabled func(*models.NotificationSettings) bool) (bool, error) {
	stored, err := c.settings.FindManyByUserIDs(ctx, []uuid.UUID{userID})
	if err != nil {
		return false, fmt.Errorf("loading notification settings: %w", err)
	}
	if len(stored) == 0 {
		return enabled(defaultSettings(userID)), nil
	}
	return enabled(&stored[0]), nil
}

func (c *Consumer) deliver(ctx context.Context, recipients []models.User, text string) error {
	for _, recipient := range recipients {
		if recipient.TelegramID == nil {
			continue
		}
		if err := c.sender.SendMessage(ctx, *recipient.TelegramID, text); err != nil {
			return fmt.Errorf("delivering to user %s: %w", recipient.ID, err)
		}
	}
	c.logg.Info(c.logg.WithField(ctx, "recipients", len(recipients)), "notification fan-out complete")
	return nil
}

func actorIs(envelope outbox.PayloadEnvelope, userID uuid.UUID) bool {
	return envelope.Actor != nil && envelope.Actor.UserID == userID
}

func containsRecipient(recipients []models.User, id uuid.UUID) bool {
	for _, r := range recipients {
		if r.ID == id {
			return true
		}
	}
	return false
}
