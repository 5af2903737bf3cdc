package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/events"
)

// NotifySeverity grades outbound notifications.
type NotifySeverity string

const (
	SeverityNormal NotifySeverity = "NORMAL"
	SeverityUrgent NotifySeverity = "URGENT"
)

// Notifier is the fire-and-forget notification capability consumed by the
// engine. Delivery mechanics (push/email/SMS) live outside this core.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, severity NotifySeverity, title, body string, metadata map[string]string) error
}

// ChatRoomProvisioner provisions a discussion scaffold for an approved
// concern. External collaborator; failures are non-fatal.
type ChatRoomProvisioner interface {
	Provision(ctx context.Context, concernID string, participantIDs []string) error
}

// ReminderScheduler schedules follow-up reminders with an external
// scheduler.
type ReminderScheduler interface {
	Schedule(ctx context.Context, concernID string, delayHours int) error
}

// NotificationService emits notifications for domain events and implements
// the Notifier capability used by the orchestrator and escalation monitor.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Notify dispatches one notification. The per-call timeout keeps a slow
// transport from stalling sweep processing.
func (n *NotificationService) Notify(ctx context.Context, recipientID string, severity NotifySeverity, title, body string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout())
	defer cancel()

	n.logger.Info("notify",
		zap.String("recipient", recipientID),
		zap.String("severity", string(severity)),
		zap.String("title", title),
		zap.Any("metadata", metadata))
	n.sendEmailStub(ctx, recipientID, title, body)
	n.sendWebhookStub(ctx, recipientID, title)
	return ctx.Err()
}

// RegisterHandlers subscribes to engine events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventConcernSubmitted, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernStatusChanged, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernPriorityChanged, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernAssigned, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernEscalated, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernOverdue, n.handleConcernEvent)
	n.dispatcher.Subscribe(events.EventConcernClosed, n.handleConcernEvent)
}

func (n *NotificationService) handleConcernEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("concern_id", event.ConcernID),
		zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, event.ConcernID, string(event.Type))
	return nil
}

func (n *NotificationService) sendEmailStub(ctx context.Context, recipientID, title, body string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient", recipientID),
		zap.String("title", title))
}

func (n *NotificationService) sendWebhookStub(ctx context.Context, subject, label string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject", subject),
		zap.String("label", label))
}

// LoggingChatRoomProvisioner is the default stub provisioner.
type LoggingChatRoomProvisioner struct {
	Logger *zap.Logger
}

// Provision logs the provisioning request.
func (p *LoggingChatRoomProvisioner) Provision(ctx context.Context, concernID string, participantIDs []string) error {
	p.Logger.Info("chat room provisioned",
		zap.String("concern_id", concernID),
		zap.Strings("participants", participantIDs))
	return nil
}

// LoggingReminderScheduler is the default stub scheduler.
type LoggingReminderScheduler struct {
	Logger *zap.Logger
}

// Schedule logs the reminder request.
func (s *LoggingReminderScheduler) Schedule(ctx context.Context, concernID string, delayHours int) error {
	s.Logger.Info("follow-up reminder scheduled",
		zap.String("concern_id", concernID),
		zap.Int("delay_hours", delayHours))
	return nil
}
