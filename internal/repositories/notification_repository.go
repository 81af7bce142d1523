package repositories

import (
	"context"
	"fmt"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type NotificationRepository struct {
	DB DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

const notificationColumns = `
	id, type, recipient_id, recipient_role, title, message, priority, data,
	read, read_at, read_by, created_at`

// recipientClause matches user-targeted rows by id and role-targeted rows by role.
const recipientClause = `((recipient_id <> '' AND recipient_id = $1) OR (recipient_id = '' AND recipient_role = $2))`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(
		&n.ID, &n.Type, &n.RecipientID, &n.RecipientRole, &n.Title, &n.Message, &n.Priority, &n.Data,
		&n.Read, &n.ReadAt, &n.ReadBy, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (
			id, type, recipient_id, recipient_role, title, message, priority, data,
			read, read_at, read_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.DB.Exec(ctx, query,
		n.ID, n.Type, n.RecipientID, n.RecipientRole, n.Title, n.Message, n.Priority, n.Data,
		n.Read, n.ReadAt, n.ReadBy, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(r.DB.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, readBy string, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `UPDATE notifications SET read = TRUE, read_at = $2, read_by = $3 WHERE id = $1`, id, at, readBy)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, userID, role string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + recipientClause
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	rows, err := r.DB.Query(ctx, query, userID, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID, role string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+recipientClause+` AND NOT read`, userID, role).Scan(&count)
	return count, err
}
