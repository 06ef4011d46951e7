package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

type campaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(base BaseRepository) repository.CampaignRepository {
	return &campaignRepository{base}
}

const campaignColumns = `
	id, account_id, segment_id, product_name, name, status, channels,
	language, timezone, scheduled_at, last_run_at, archived_at,
	created_at, updated_at
`

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	var c model.Campaign
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("campaign", err)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

func (r *campaignRepository) List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE account_id = $1 AND archived_at IS NULL
		ORDER BY created_at DESC
	`

	var campaigns []*model.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND scheduled_at <= $2 AND archived_at IS NULL
		ORDER BY scheduled_at ASC
		LIMIT $3
	`

	var campaigns []*model.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, model.CampaignStatusScheduled, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) error {
	query := `
		UPDATE campaigns
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict(
			fmt.Sprintf("campaign %s is no longer in status %s", id, from), nil)
	}
	return nil
}

func (r *campaignRepository) SetSchedule(ctx context.Context, id uuid.UUID, when time.Time) error {
	query := `
		UPDATE campaigns
		SET scheduled_at = $1, updated_at = NOW()
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, when, id); err != nil {
		return fmt.Errorf("failed to set campaign schedule: %w", err)
	}
	return nil
}

func (r *campaignRepository) SetLastRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE campaigns
		SET last_run_at = $1, updated_at = NOW()
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to set campaign last run: %w", err)
	}
	return nil
}

func (r *campaignRepository) CountByStatus(ctx context.Context, accountID uuid.UUID) (map[model.CampaignStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM campaigns
		WHERE account_id = $1 AND archived_at IS NULL
		GROUP BY status
	`

	rows := []struct {
		Status model.CampaignStatus `db:"status"`
		Count  int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to count campaigns by status: %w", err)
	}

	counts := make(map[model.CampaignStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

type campaignLogRepository struct {
	BaseRepository
}

func NewCampaignLogRepository(base BaseRepository) repository.CampaignLogRepository {
	return &campaignLogRepository{base}
}

func (r *campaignLogRepository) Append(ctx context.Context, log *model.CampaignLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO campaign_logs (id, campaign_id, message_id, event, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.CampaignID, log.MessageID, log.Event, log.Detail, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append campaign log: %w", err)
	}
	return nil
}

func (r *campaignLogRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.CampaignLog, error) {
	query := `
		SELECT id, campaign_id, message_id, event, detail, created_at
		FROM campaign_logs
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var logs []*model.CampaignLog
	if err := r.db.SelectContext(ctx, &logs, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list campaign logs: %w", err)
	}
	return logs, nil
}
