package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"
	"heliactyl/internal/ws"
	"heliactyl/pkg/events"

	"gorm.io/datatypes"
)

// NotificationService stores a notice for each boost event, pushes it to the
// user's open WebSocket connections and publishes it to the event bus.
type NotificationService struct {
	repo      *repository.NotificationRepository
	hub       *ws.Hub
	publisher events.Publisher
	logger    *slog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, hub *ws.Hub, publisher events.Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, hub: hub, publisher: publisher, logger: logger}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	return s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   datatypes.JSONMap(data),
	})
}

// NotifyBoost implements Notifier. Failures are logged and never reach the
// boost operation that triggered them.
func (s *NotificationService) NotifyBoost(ctx context.Context, b *models.Boost, kind string, details map[string]interface{}) {
	notifType, title, body := boostMessage(b, kind, details)
	data := map[string]interface{}{
		"boostId":   b.ID,
		"serverId":  b.ServerID,
		"boostType": b.BoostType,
	}
	for k, v := range details {
		data[k] = v
	}
	if err := s.Notify(b.UserID, notifType, title, body, data); err != nil {
		s.logger.Error("store boost notification", "boost_id", b.ID, "error", err)
	}

	event := events.BoostEvent{
		Type:         kind,
		BoostID:      b.ID,
		UserID:       b.UserID,
		ServerID:     b.ServerID,
		BoostType:    b.BoostType,
		RefundAmount: b.RefundAmount,
		Timestamp:    time.Now().UnixMilli(),
	}
	if reason, ok := details["reason"].(string); ok {
		event.Reason = reason
	}
	if s.hub != nil {
		s.hub.BroadcastToUser(b.UserID, map[string]interface{}{
			"type":  "boost." + kind,
			"boost": b,
			"title": title,
			"body":  body,
		})
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBoostEvent(ctx, event); err != nil {
			s.logger.Warn("publish boost event", "boost_id", b.ID, "routing_key", event.RoutingKey(), "error", err)
		}
	}
}

func boostMessage(b *models.Boost, kind string, details map[string]interface{}) (notifType, title, body string) {
	name := b.ServerName
	if name == "" {
		name = b.ServerID
	}
	switch kind {
	case domain.HistoryApplied, domain.HistoryScheduledApplied:
		return domain.NotifBoostApplied, "Boost active", fmt.Sprintf("Your %s boost is now active on %s.", b.BoostType, name)
	case domain.HistoryExpired:
		return domain.NotifBoostExpired, "Boost ended", fmt.Sprintf("Your %s boost on %s has expired and resources were restored.", b.BoostType, name)
	case domain.HistoryExtended:
		return domain.NotifBoostExtended, "Boost extended", fmt.Sprintf("Your %s boost on %s was extended.", b.BoostType, name)
	case domain.HistoryScheduled:
		return domain.NotifBoostScheduled, "Boost scheduled", fmt.Sprintf("Your %s boost on %s is scheduled.", b.BoostType, name)
	case domain.HistoryScheduledFailed:
		reason, _ := details["reason"].(string)
		return domain.NotifBoostFailed, "Scheduled boost failed",
			fmt.Sprintf("Your scheduled %s boost on %s could not start (%s). %d coins were refunded.", b.BoostType, name, reason, b.RefundAmount)
	default:
		return domain.NotifBoostCancelled, "Boost cancelled",
			fmt.Sprintf("Your %s boost on %s was cancelled. %d coins were refunded.", b.BoostType, name, b.RefundAmount)
	}
}
