package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

const messageColumns = `
	id, campaign_id, customer_id, channel, status, attempts, max_attempts,
	last_error, provider_ref, next_retry_at, queued_at, sent_at, opened_at,
	clicked_at, created_at, updated_at
`

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var m model.Message
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("message", err)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &m, nil
}

func (r *messageRepository) Find(ctx context.Context, campaignID uuid.UUID, channel model.Channel, customerID uuid.UUID) (*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE campaign_id = $1 AND channel = $2 AND customer_id = $3
	`

	var m model.Message
	if err := r.db.GetContext(ctx, &m, query, campaignID, channel, customerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &m, nil
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	now := time.Now()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	query := `
		INSERT INTO messages (
			campaign_id, customer_id, channel, status, attempts, max_attempts,
			last_error, provider_ref, next_retry_at, queued_at, sent_at,
			opened_at, clicked_at, created_at, updated_at, id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.CampaignID, msg.CustomerID, msg.Channel, msg.Status, msg.Attempts,
		msg.MaxAttempts, msg.LastError, msg.ProviderRef, msg.NextRetryAt,
		msg.QueuedAt, msg.SentAt, msg.OpenedAt, msg.ClickedAt,
		msg.CreatedAt, msg.UpdatedAt, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Update writes the full mutable state of the row, guarded by updated_at so
// an overlapping writer loses visibly instead of silently.
func (r *messageRepository) Update(ctx context.Context, msg *model.Message) error {
	return r.update(ctx, r.db, msg)
}

// UpdateWithAttempt commits the message state and its attempt record
// together; a crash between the two writes can never leave the history
// disagreeing with the row.
func (r *messageRepository) UpdateWithAttempt(ctx context.Context, msg *model.Message, attempt *model.MessageAttempt) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.update(ctx, tx, msg); err != nil {
			return err
		}
		return r.appendAttempt(ctx, tx, attempt)
	})
}

func (r *messageRepository) update(ctx context.Context, ex sqlx.ExtContext, msg *model.Message) error {
	previous := msg.UpdatedAt
	msg.UpdatedAt = time.Now()

	query := `
		UPDATE messages
		SET status = $1, attempts = $2, last_error = $3, provider_ref = $4,
			next_retry_at = $5, sent_at = $6, opened_at = $7, clicked_at = $8,
			updated_at = $9
		WHERE id = $10 AND updated_at = $11
	`
	result, err := ex.ExecContext(ctx, query,
		msg.Status, msg.Attempts, msg.LastError, msg.ProviderRef,
		msg.NextRetryAt, msg.SentAt, msg.OpenedAt, msg.ClickedAt,
		msg.UpdatedAt, msg.ID, previous)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict(
			fmt.Sprintf("message %s was modified concurrently", msg.ID), nil)
	}
	return nil
}

func (r *messageRepository) appendAttempt(ctx context.Context, ex sqlx.ExtContext, attempt *model.MessageAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO message_attempts (id, message_id, attempt, status, error, provider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := ex.ExecContext(ctx, query,
		attempt.ID, attempt.MessageID, attempt.Attempt, attempt.Status,
		attempt.Error, attempt.ProviderRef, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message attempt: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var messages []*model.Message
	if err := r.db.SelectContext(ctx, &messages, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) ListAttempts(ctx context.Context, messageID uuid.UUID) ([]*model.MessageAttempt, error) {
	query := `
		SELECT id, message_id, attempt, status, error, provider_ref, created_at
		FROM message_attempts
		WHERE message_id = $1
		ORDER BY attempt ASC
	`

	var attempts []*model.MessageAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to list message attempts: %w", err)
	}
	return attempts, nil
}

func (r *messageRepository) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status = $1 AND next_retry_at <= $2
		ORDER BY next_retry_at ASC
		LIMIT $3
	`

	var messages []*model.Message
	if err := r.db.SelectContext(ctx, &messages, query, model.MessageStatusRetrying, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due retries: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[model.MessageStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM messages
		WHERE campaign_id = $1
		GROUP BY status
	`
	return r.countByStatus(ctx, query, campaignID)
}

func (r *messageRepository) CountByStatusForAccount(ctx context.Context, accountID uuid.UUID) (map[model.MessageStatus]int, error) {
	query := `
		SELECT m.status, COUNT(*) AS count
		FROM messages m
		JOIN campaigns c ON c.id = m.campaign_id
		WHERE c.account_id = $1
		GROUP BY m.status
	`
	return r.countByStatus(ctx, query, accountID)
}

func (r *messageRepository) countByStatus(ctx context.Context, query string, arg interface{}) (map[model.MessageStatus]int, error) {
	rows := []struct {
		Status model.MessageStatus `db:"status"`
		Count  int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}

	counts := make(map[model.MessageStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *messageRepository) RecordEvent(ctx context.Context, id uuid.UUID, event model.MessageEvent, at time.Time) error {
	var query string
	switch event {
	case model.MessageEventOpened:
		query = `
			UPDATE messages
			SET status = 'opened', opened_at = $1, updated_at = NOW()
			WHERE id = $2 AND status IN ('sent', 'opened')
		`
	case model.MessageEventClicked:
		query = `
			UPDATE messages
			SET status = 'clicked', clicked_at = $1, updated_at = NOW()
			WHERE id = $2 AND status IN ('sent', 'opened', 'clicked')
		`
	default:
		return apperrors.Validation(fmt.Sprintf("unknown message event %q", event), nil)
	}

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to record message event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Validation(
			fmt.Sprintf("message %s cannot accept event %s", id, event), nil)
	}
	return nil
}
