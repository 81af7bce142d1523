package services

import (
	"context"
	"net/http"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/cache"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// NotificationService is the notification dispatcher. It stores read state
// only; delivery belongs to whoever consumes the records.
type NotificationService struct {
	*Engine
}

func NewNotificationService(engine *Engine) *NotificationService {
	return &NotificationService{Engine: engine}
}

// Send creates one notification addressed to exactly one user or one role.
func (s *NotificationService) Send(ctx context.Context, req models.SendNotificationRequest, actor models.Actor) (*models.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.Notification
	err := s.run(ctx, "notification.send", func(tx repositories.Tx, fx *effects) error {
		now := s.Now()
		n, err := s.notify(ctx, tx, fx, req, now)
		if err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditCreate,
			EntityType: models.EntityNotification,
			EntityID:   n.ID,
			Details: map[string]any{
				"type":           string(n.Type),
				"recipient_id":   n.RecipientID,
				"recipient_role": n.RecipientRole,
			},
			ResponseStatus: http.StatusCreated,
		}, now); err != nil {
			return err
		}
		fx.transition(models.EntityNotification, models.AuditCreate)
		out = n
		return nil
	})
	return out, err
}

func isRecipient(n *models.Notification, actor models.Actor) bool {
	if n.RecipientID != "" {
		return n.RecipientID == actor.ID
	}
	return n.RecipientRole == actor.Role
}

// MarkRead marks a notification read for its recipient. Marking an already
// read notification again returns it unchanged.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor models.Actor) (*models.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var out *models.Notification
	err := s.run(ctx, "notification.mark_read", func(tx repositories.Tx, fx *effects) error {
		n, err := tx.Notifications().Get(ctx, id)
		if err != nil {
			return err
		}
		if !isRecipient(n, actor) {
			return apperr.ErrNotRecipient.WithMessagef("notification %s is not addressed to %s", id, actor.ID)
		}
		if n.Read {
			out = n
			return nil
		}

		now := s.Now()
		if err := tx.Notifications().MarkRead(ctx, id, actor.ID, now); err != nil {
			return err
		}
		if _, err := s.record(ctx, tx, actor, AuditEvent{
			Action:     models.AuditMarkRead,
			EntityType: models.EntityNotification,
			EntityID:   id,
		}, now); err != nil {
			return err
		}
		if out, err = tx.Notifications().Get(ctx, id); err != nil {
			return err
		}
		fx.targets = append(fx.targets, models.Target{RecipientID: actor.ID})
		if n.RecipientRole != "" {
			fx.targets = append(fx.targets, models.Target{RecipientRole: n.RecipientRole})
		}
		return nil
	})
	return out, err
}

// ListForActor returns notifications addressed to the actor or the actor's role.
func (s *NotificationService) ListForActor(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*models.Notification
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Notifications().ListForRecipient(ctx, actor.ID, actor.Role, unreadOnly, limit)
		return err
	})
	return out, err
}

// UnreadCount is served from the cache when possible.
func (s *NotificationService) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	if n, ok := cache.GetUnreadCount(ctx, actor.ID, actor.Role); ok {
		return n, nil
	}
	var count int
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		count, err = tx.Notifications().CountUnread(ctx, actor.ID, actor.Role)
		return err
	})
	if err != nil {
		return 0, err
	}
	cache.CacheUnreadCount(ctx, actor.ID, actor.Role, count)
	return count, nil
}
