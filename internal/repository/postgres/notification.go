package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = model.NotificationStatusUnread
	}

	query := `
		INSERT INTO notifications (id, account_id, title, body, level, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.AccountID, n.Title, n.Body, n.Level, n.Status, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, read_at = $2
		WHERE id = $3 AND read_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.NotificationStatusRead, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("unread notification", nil)
	}
	return nil
}

func (r *notificationRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT id, account_id, title, body, level, status, created_at, read_at
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

func (r *paymentRepository) SumByCampaign(ctx context.Context, campaignID uuid.UUID) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE campaign_id = $1`

	var total float64
	if err := r.db.GetContext(ctx, &total, query, campaignID); err != nil {
		return 0, fmt.Errorf("failed to sum campaign payments: %w", err)
	}
	return total, nil
}

func (r *paymentRepository) SumByAccount(ctx context.Context, accountID uuid.UUID) (float64, error) {
	query := `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN campaigns c ON c.id = p.campaign_id
		WHERE c.account_id = $1
	`

	var total float64
	if err := r.db.GetContext(ctx, &total, query, accountID); err != nil {
		return 0, fmt.Errorf("failed to sum account payments: %w", err)
	}
	return total, nil
}
