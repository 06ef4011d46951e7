package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
)

type contentRepository struct {
	BaseRepository
}

func NewContentRepository(base BaseRepository) repository.ContentRepository {
	return &contentRepository{base}
}

func (r *contentRepository) Find(ctx context.Context, campaignID uuid.UUID, channel model.Channel, language string) (*model.CampaignContent, error) {
	query := `
		SELECT id, campaign_id, channel, language, body, created_at
		FROM campaign_contents
		WHERE campaign_id = $1 AND channel = $2 AND language = $3
	`

	var c model.CampaignContent
	if err := r.db.GetContext(ctx, &c, query, campaignID, channel, language); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign content: %w", err)
	}
	return &c, nil
}

func (r *contentRepository) Upsert(ctx context.Context, content *model.CampaignContent) error {
	if content.ID == uuid.Nil {
		content.ID = uuid.New()
	}
	if content.CreatedAt.IsZero() {
		content.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO campaign_contents (id, campaign_id, channel, language, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (campaign_id, channel, language)
		DO UPDATE SET body = EXCLUDED.body
	`
	_, err := r.db.ExecContext(ctx, query,
		content.ID, content.CampaignID, content.Channel, content.Language,
		content.Body, content.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert campaign content: %w", err)
	}
	return nil
}

func (r *contentRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.CampaignContent, error) {
	query := `
		SELECT id, campaign_id, channel, language, body, created_at
		FROM campaign_contents
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`

	var contents []*model.CampaignContent
	if err := r.db.SelectContext(ctx, &contents, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list campaign contents: %w", err)
	}
	return contents, nil
}
