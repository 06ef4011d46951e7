package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/pkg/logger"
)

type fakeContentRepo struct {
	stored  map[string]*model.CampaignContent
	upserts int
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{stored: make(map[string]*model.CampaignContent)}
}

func (r *fakeContentRepo) key(campaignID uuid.UUID, ch model.Channel, lang string) string {
	return campaignID.String() + ":" + string(ch) + ":" + lang
}

func (r *fakeContentRepo) Find(_ context.Context, campaignID uuid.UUID, ch model.Channel, lang string) (*model.CampaignContent, error) {
	return r.stored[r.key(campaignID, ch, lang)], nil
}

func (r *fakeContentRepo) Upsert(_ context.Context, c *model.CampaignContent) error {
	r.upserts++
	r.stored[r.key(c.CampaignID, c.Channel, c.Language)] = c
	return nil
}

func (r *fakeContentRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*model.CampaignContent, error) {
	var out []*model.CampaignContent
	for _, c := range r.stored {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out, nil
}

type countingGenerator struct {
	calls int
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, campaign *model.Campaign, ch model.Channel, lang string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "body for " + campaign.Name + "/" + string(ch) + "/" + lang, nil
}

func testCampaign() *model.Campaign {
	return &model.Campaign{
		ID:          uuid.New(),
		Name:        "Spring Sale",
		ProductName: "Trail Shoes",
		Language:    "en",
	}
}

func TestGetOrGenerateCachesPerChannelLanguage(t *testing.T) {
	repo := newFakeContentRepo()
	gen := &countingGenerator{}
	svc := NewService(gen, repo, time.Minute, logger.Nop(), nil)
	campaign := testCampaign()

	first, err := svc.GetOrGenerate(context.Background(), campaign, model.ChannelEmail, "en")
	require.NoError(t, err)
	second, err := svc.GetOrGenerate(context.Background(), campaign, model.ChannelEmail, "en")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, repo.upserts)
}

func TestGetOrGenerateDistinctKeys(t *testing.T) {
	repo := newFakeContentRepo()
	gen := &countingGenerator{}
	svc := NewService(gen, repo, time.Minute, logger.Nop(), nil)
	campaign := testCampaign()

	_, err := svc.GetOrGenerate(context.Background(), campaign, model.ChannelEmail, "en")
	require.NoError(t, err)
	_, err = svc.GetOrGenerate(context.Background(), campaign, model.ChannelWhatsApp, "en")
	require.NoError(t, err)
	_, err = svc.GetOrGenerate(context.Background(), campaign, model.ChannelEmail, "es")
	require.NoError(t, err)

	assert.Equal(t, 3, gen.calls)
}

func TestGetOrGenerateUsesStoredContent(t *testing.T) {
	repo := newFakeContentRepo()
	campaign := testCampaign()
	require.NoError(t, repo.Upsert(context.Background(), &model.CampaignContent{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		Channel:    model.ChannelEmail,
		Language:   "en",
		Body:       "previously generated",
	}))
	repo.upserts = 0

	gen := &countingGenerator{}
	svc := NewService(gen, repo, time.Minute, logger.Nop(), nil)

	body, err := svc.GetOrGenerate(context.Background(), campaign, model.ChannelEmail, "en")
	require.NoError(t, err)
	assert.Equal(t, "previously generated", body)
	assert.Zero(t, gen.calls)
	assert.Zero(t, repo.upserts)
}

func TestGetOrGenerateGeneratorError(t *testing.T) {
	repo := newFakeContentRepo()
	gen := &countingGenerator{err: errors.New("provider down")}
	svc := NewService(gen, repo, time.Minute, logger.Nop(), nil)

	_, err := svc.GetOrGenerate(context.Background(), testCampaign(), model.ChannelEmail, "en")
	require.Error(t, err)
	assert.Zero(t, repo.upserts)
}

func TestTemplateGeneratorFallsBackToEnglish(t *testing.T) {
	gen := NewTemplateGenerator()

	body, err := gen.Generate(context.Background(), testCampaign(), model.ChannelEmail, "fr")
	require.NoError(t, err)
	assert.Contains(t, body, "{{first_name}}")
	assert.Contains(t, body, "Spring Sale")
}

func TestPersonalize(t *testing.T) {
	customer := &model.Customer{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	}

	out := Personalize("Hi {{first_name}} {{last_name}}, try {{product_name}}!", customer, "Trail Shoes")
	assert.Equal(t, "Hi Ada Lovelace, try Trail Shoes!", out)
}

func TestPersonalizeLeavesUnknownTokens(t *testing.T) {
	out := Personalize("Hi {{nickname}}", &model.Customer{FirstName: "Ada"}, "X")
	assert.Equal(t, "Hi {{nickname}}", out)
}
