package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/pkg/logger"
	"github.com/aimkt/marketing-api/pkg/metrics"
)

// Generator produces campaign copy for one (channel, language) pair. The
// body may carry personalization tokens filled in per recipient at dispatch
// time.
type Generator interface {
	Generate(ctx context.Context, campaign *model.Campaign, channel model.Channel, language string) (string, error)
}

// Service wraps a Generator with a content store and an in-process cache so
// a campaign run never generates the same (channel, language) body twice.
type Service struct {
	generator Generator
	repo      repository.ContentRepository
	cache     *gocache.Cache
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(generator Generator, repo repository.ContentRepository, cacheTTL time.Duration, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		generator: generator,
		repo:      repo,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
		logger:    log,
		metrics:   m,
	}
}

// GetOrGenerate returns the body for the (campaign, channel, language)
// triple, consulting the cache, then the store, then the generator. Freshly
// generated bodies are persisted before being returned.
func (s *Service) GetOrGenerate(ctx context.Context, campaign *model.Campaign, channel model.Channel, language string) (string, error) {
	key := cacheKey(campaign.ID, channel, language)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(string), nil
	}

	existing, err := s.repo.Find(ctx, campaign.ID, channel, language)
	if err != nil {
		return "", fmt.Errorf("failed to look up content: %w", err)
	}
	if existing != nil {
		s.cache.Set(key, existing.Body, gocache.DefaultExpiration)
		return existing.Body, nil
	}

	body, err := s.generator.Generate(ctx, campaign, channel, language)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ContentGenerations.WithLabelValues("error").Inc()
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ContentGenerations.WithLabelValues("success").Inc()
	}

	record := &model.CampaignContent{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		Channel:    channel,
		Language:   language,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		// The body is still usable this run; only durability is lost.
		s.logger.Error(err, "failed to persist generated content",
			"campaign_id", campaign.ID.String(), "channel", string(channel))
	}

	s.cache.Set(key, body, gocache.DefaultExpiration)
	return body, nil
}

func cacheKey(campaignID uuid.UUID, channel model.Channel, language string) string {
	return campaignID.String() + ":" + string(channel) + ":" + language
}

// Personalize fills recipient tokens into a content body. Unknown tokens
// are left untouched.
func Personalize(body string, customer *model.Customer, productName string) string {
	fullName := strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	replacer := strings.NewReplacer(
		"{{first_name}}", customer.FirstName,
		"{{last_name}}", customer.LastName,
		"{{full_name}}", fullName,
		"{{product_name}}", productName,
		"{{customer_email}}", customer.Email,
	)
	return replacer.Replace(body)
}
