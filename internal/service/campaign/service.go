// Package campaign orchestrates the send lifecycle: scheduling, the guarded
// status machine, segment resolution, content generation, per-channel bulk
// dispatch and the completion decision. The orchestrator keeps no state of
// its own between runs; everything lives in campaign and message rows, which
// is what makes a run resumable.
package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/internal/service/dispatch"
	"github.com/aimkt/marketing-api/internal/service/notification"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
	"github.com/aimkt/marketing-api/pkg/lease"
	"github.com/aimkt/marketing-api/pkg/logger"
	"github.com/aimkt/marketing-api/pkg/messaging"
	"github.com/aimkt/marketing-api/pkg/metrics"
)

// Config tunes the orchestrator.
type Config struct {
	// FailureThreshold is the failed fraction of attempted messages at or
	// above which a finished run is marked failed instead of completed.
	FailureThreshold float64
	// LeaseTTL bounds how long a dead worker can hold a campaign's run lock.
	LeaseTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 15 * time.Minute
	}
	return c
}

// SegmentResolver resolves the current audience of a campaign's segment.
type SegmentResolver interface {
	Resolve(ctx context.Context, segmentID, accountID uuid.UUID) ([]*model.Customer, error)
}

// ContentProvider returns the body for one (campaign, channel, language)
// triple, generating and caching it on first use.
type ContentProvider interface {
	GetOrGenerate(ctx context.Context, campaign *model.Campaign, channel model.Channel, language string) (string, error)
}

// BulkDispatcher fans content out to a recipient list on one channel.
type BulkDispatcher interface {
	DispatchBulk(ctx context.Context, campaign *model.Campaign, channel model.Channel, recipients []*model.Customer, body string) (*dispatch.BulkResult, error)
}

// RunResult summarizes one Send invocation.
type RunResult struct {
	Status  model.CampaignStatus `json:"status"`
	Sent    int                  `json:"sent"`
	Failed  int                  `json:"failed"`
	Skipped int                  `json:"skipped"`
	Pending int                  `json:"pending"`
}

type Orchestrator struct {
	campaigns repository.CampaignRepository
	logs      repository.CampaignLogRepository
	segments  SegmentResolver
	content   ContentProvider
	bulk      BulkDispatcher
	notifier  *notification.Service
	locker    lease.Locker
	broker    messaging.Broker
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics

	// in-process cancellation hooks for runs owned by this instance
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewOrchestrator(
	campaigns repository.CampaignRepository,
	logs repository.CampaignLogRepository,
	segments SegmentResolver,
	content ContentProvider,
	bulk BulkDispatcher,
	notifier *notification.Service,
	locker lease.Locker,
	broker messaging.Broker,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		campaigns: campaigns,
		logs:      logs,
		segments:  segments,
		content:   content,
		bulk:      bulk,
		notifier:  notifier,
		locker:    locker,
		broker:    broker,
		cfg:       cfg.withDefaults(),
		logger:    log,
		metrics:   m,
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Schedule sets a future send time. The time is validated against the
// campaign's configured timezone; scheduling in the past is a validation
// error with no state change.
func (o *Orchestrator) Schedule(ctx context.Context, id uuid.UUID, when time.Time) error {
	campaign, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	loc, err := campaignLocation(campaign)
	if err != nil {
		return apperrors.Validation(fmt.Sprintf("invalid campaign timezone %q", campaign.Timezone), err)
	}
	if !when.After(time.Now()) {
		return apperrors.Validation(
			fmt.Sprintf("schedule time %s is not in the future", when.In(loc).Format(time.RFC3339)), nil)
	}
	if !campaign.CanTransition(model.CampaignStatusScheduled) {
		return apperrors.Conflict(
			fmt.Sprintf("campaign in status %s cannot be scheduled", campaign.Status), nil)
	}

	if err := o.campaigns.UpdateStatus(ctx, id, campaign.Status, model.CampaignStatusScheduled); err != nil {
		return err
	}
	if err := o.campaigns.SetSchedule(ctx, id, when); err != nil {
		return fmt.Errorf("failed to store schedule: %w", err)
	}

	o.appendLog(ctx, id, nil, "scheduled", fmt.Sprintf("send scheduled for %s", when.In(loc).Format(time.RFC3339)))
	return nil
}

func campaignLocation(c *model.Campaign) (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Send runs one full send cycle for the campaign. At most one run per
// campaign is active across all workers; a second caller gets a conflict and
// no state change. Legal from draft, scheduled, failed, or cancelled (the
// latter two resume over the surviving message rows).
func (o *Orchestrator) Send(ctx context.Context, id uuid.UUID) (*RunResult, error) {
	runLease, err := o.locker.Acquire(ctx, lockKey(id), o.cfg.LeaseTTL)
	if err != nil {
		if err == lease.ErrHeld {
			return nil, apperrors.Conflict("campaign run already in progress", err)
		}
		return nil, fmt.Errorf("failed to acquire campaign lock: %w", err)
	}
	defer func() {
		if relErr := runLease.Release(context.WithoutCancel(ctx)); relErr != nil {
			o.logger.Error(relErr, "failed to release campaign lock", "campaign_id", id.String())
		}
	}()

	campaign, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if !campaign.CanTransition(model.CampaignStatusSending) {
		return nil, apperrors.Conflict(
			fmt.Sprintf("campaign in status %s cannot be sent", campaign.Status), nil)
	}

	resuming := campaign.Status == model.CampaignStatusFailed ||
		campaign.Status == model.CampaignStatusCancelled
	if err := o.campaigns.UpdateStatus(ctx, id, campaign.Status, model.CampaignStatusSending); err != nil {
		return nil, err
	}
	campaign.Status = model.CampaignStatusSending

	runCtx, cancel := context.WithCancel(ctx)
	o.register(id, cancel)
	defer o.unregister(id, cancel)

	start := time.Now()
	result, runErr := o.run(runCtx, campaign, resuming)
	o.observeRun(result, start)
	return result, runErr
}

func (o *Orchestrator) run(ctx context.Context, campaign *model.Campaign, resuming bool) (*RunResult, error) {
	event := "run_started"
	if resuming {
		event = "run_resumed"
	}
	o.appendLog(ctx, campaign.ID, nil, event, fmt.Sprintf("dispatch over channels %v", campaign.Channels))

	recipients, err := o.segments.Resolve(ctx, campaign.SegmentID, campaign.AccountID)
	if err != nil {
		return o.markFailed(ctx, campaign, "segment_resolution_failed", err)
	}

	// One body per (channel, language) pair actually present in the
	// audience; generation is cached behind ContentProvider so a pair is
	// never generated twice.
	bodies, err := o.generateContent(ctx, campaign, recipients)
	if err != nil {
		return o.markFailed(ctx, campaign, "content_generation_failed", err)
	}

	totals, dispatchErr := o.dispatchChannels(ctx, campaign, recipients, bodies)
	result := &RunResult{
		Sent:    totals.Sent,
		Failed:  totals.Failed,
		Skipped: totals.Skipped,
		Pending: totals.Retrying,
	}

	if ctx.Err() != nil {
		return o.interrupted(ctx, campaign, result)
	}
	if dispatchErr != nil {
		return o.markFailed(ctx, campaign, "dispatch_failed", dispatchErr)
	}

	return o.finalize(ctx, campaign, result)
}

func (o *Orchestrator) generateContent(ctx context.Context, campaign *model.Campaign, recipients []*model.Customer) (map[model.Channel]map[string]string, error) {
	bodies := make(map[model.Channel]map[string]string, len(campaign.Channels))
	for _, ch := range campaign.Channels {
		bodies[ch] = make(map[string]string)
		for _, lang := range languagesOf(campaign, recipients) {
			body, err := o.content.GetOrGenerate(ctx, campaign, ch, lang)
			if err != nil {
				return nil, fmt.Errorf("channel %s language %s: %w", ch, lang, err)
			}
			bodies[ch][lang] = body
		}
	}
	return bodies, nil
}

// languagesOf lists the distinct recipient languages, falling back to the
// campaign language for customers without one.
func languagesOf(campaign *model.Campaign, recipients []*model.Customer) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, r := range recipients {
		lang := r.Language
		if lang == "" {
			lang = campaign.Language
		}
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		langs = append(langs, campaign.Language)
	}
	return langs
}

// dispatchChannels runs all enabled channels in parallel; within a channel,
// recipients are grouped by language so each group gets its own body.
func (o *Orchestrator) dispatchChannels(ctx context.Context, campaign *model.Campaign, recipients []*model.Customer, bodies map[model.Channel]map[string]string) (*dispatch.BulkResult, error) {
	totals := &dispatch.BulkResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, ch := range campaign.Channels {
		wg.Add(1)
		go func(ch model.Channel) {
			defer wg.Done()
			for lang, group := range groupByLanguage(campaign, recipients) {
				body := bodies[ch][lang]
				res, err := o.bulk.DispatchBulk(ctx, campaign, ch, group, body)
				mu.Lock()
				if res != nil {
					totals.Sent += res.Sent
					totals.Failed += res.Failed
					totals.Skipped += res.Skipped
					totals.Retrying += res.Retrying
				}
				if err != nil && err != context.Canceled && firstErr == nil {
					firstErr = fmt.Errorf("channel %s: %w", ch, err)
				}
				mu.Unlock()
			}
		}(ch)
	}
	wg.Wait()

	return totals, firstErr
}

func groupByLanguage(campaign *model.Campaign, recipients []*model.Customer) map[string][]*model.Customer {
	groups := make(map[string][]*model.Customer)
	for _, r := range recipients {
		lang := r.Language
		if lang == "" {
			lang = campaign.Language
		}
		groups[lang] = append(groups[lang], r)
	}
	return groups
}

// finalize applies the completion decision: the run is failed when the
// failed fraction of attempted deliveries reaches the threshold, completed
// otherwise. Skipped recipients are not attempts and do not count against
// the campaign.
func (o *Orchestrator) finalize(ctx context.Context, campaign *model.Campaign, result *RunResult) (*RunResult, error) {
	attempted := result.Sent + result.Failed
	failedFraction := 0.0
	if attempted > 0 {
		failedFraction = float64(result.Failed) / float64(attempted)
	}

	detail := fmt.Sprintf("sent=%d failed=%d skipped=%d", result.Sent, result.Failed, result.Skipped)
	now := time.Now()
	if err := o.campaigns.SetLastRun(ctx, campaign.ID, now); err != nil {
		o.logger.Error(err, "failed to record last run time", "campaign_id", campaign.ID.String())
	}

	if failedFraction >= o.cfg.FailureThreshold && attempted > 0 {
		result.Status = model.CampaignStatusFailed
		if err := o.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusSending, model.CampaignStatusFailed); err != nil {
			return result, err
		}
		o.appendLog(ctx, campaign.ID, nil, "failed",
			fmt.Sprintf("%s: failure fraction %.2f at or above threshold %.2f", detail, failedFraction, o.cfg.FailureThreshold))
		o.notifier.CampaignFailed(ctx, campaign, detail)
		o.publish(ctx, messaging.TopicCampaignFailed, campaign, result)
		return result, nil
	}

	result.Status = model.CampaignStatusCompleted
	if err := o.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusSending, model.CampaignStatusCompleted); err != nil {
		return result, err
	}
	o.appendLog(ctx, campaign.ID, nil, "completed", detail)
	o.notifier.CampaignCompleted(ctx, campaign, result.Sent, result.Failed, result.Skipped)
	o.publish(ctx, messaging.TopicCampaignCompleted, campaign, result)
	return result, nil
}

// interrupted settles a run whose context was cancelled mid-dispatch. An
// operator Cancel has already moved the row to cancelled and owns the
// user-facing notification; any other interruption (worker shutdown, a
// dropped caller) parks the campaign in failed so a later Send resumes it
// instead of leaving the row wedged in sending.
func (o *Orchestrator) interrupted(ctx context.Context, campaign *model.Campaign, result *RunResult) (*RunResult, error) {
	cause := ctx.Err()
	detached := context.WithoutCancel(ctx)
	detail := fmt.Sprintf("sent=%d failed=%d skipped=%d pending=%d",
		result.Sent, result.Failed, result.Skipped, result.Pending)

	stored, err := o.campaigns.Get(detached, campaign.ID)
	if err == nil && stored != nil && stored.Status == model.CampaignStatusCancelled {
		result.Status = model.CampaignStatusCancelled
		o.appendLog(detached, campaign.ID, nil, "run_cancelled", detail)
		return result, nil
	}

	result.Status = model.CampaignStatusFailed
	if err := o.campaigns.UpdateStatus(detached, campaign.ID, model.CampaignStatusSending, model.CampaignStatusFailed); err != nil {
		o.logger.Error(err, "failed to park interrupted campaign", "campaign_id", campaign.ID.String())
	}
	o.appendLog(detached, campaign.ID, nil, "run_interrupted", detail)
	return result, cause
}

// markFailed transitions the campaign to failed with a durable log entry
// carrying the cause. Already-delivered messages keep their state; a later
// Send resumes where this run stopped.
func (o *Orchestrator) markFailed(ctx context.Context, campaign *model.Campaign, event string, cause error) (*RunResult, error) {
	result := &RunResult{Status: model.CampaignStatusFailed}
	if err := o.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusSending, model.CampaignStatusFailed); err != nil {
		o.logger.Error(err, "failed to mark campaign failed", "campaign_id", campaign.ID.String())
	}
	o.appendLog(ctx, campaign.ID, nil, event, cause.Error())
	o.notifier.CampaignFailed(ctx, campaign, cause.Error())
	o.publish(ctx, messaging.TopicCampaignFailed, campaign, result)
	return result, cause
}

// Cancel stops a campaign. A scheduled campaign is simply descheduled; a
// sending campaign is cancelled cooperatively — in-flight attempts finish,
// no new recipients start, and undelivered messages stay non-terminal for a
// future resume.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	campaign, err := o.campaigns.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}
	if !campaign.CanTransition(model.CampaignStatusCancelled) {
		return apperrors.Conflict(
			fmt.Sprintf("campaign in status %s cannot be cancelled", campaign.Status), nil)
	}

	if err := o.campaigns.UpdateStatus(ctx, id, campaign.Status, model.CampaignStatusCancelled); err != nil {
		return err
	}

	// Stop a run owned by this process, if any. Runs on other workers see
	// the status change when they try to finalize.
	o.mu.Lock()
	if cancel, ok := o.running[id]; ok {
		cancel()
	}
	o.mu.Unlock()

	o.appendLog(ctx, id, nil, "cancelled", "cancellation requested; undelivered messages kept for resume")
	o.notifier.CampaignCancelled(ctx, campaign)
	o.publish(ctx, messaging.TopicCampaignCancelled, campaign, &RunResult{Status: model.CampaignStatusCancelled})
	return nil
}

// RunDue triggers Send for scheduled campaigns whose time has arrived.
// Used by the worker's scheduler tick. Conflicts (another worker got there
// first) are skipped silently.
func (o *Orchestrator) RunDue(ctx context.Context, limit int) (int, error) {
	due, err := o.campaigns.ListDue(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	started := 0
	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := o.Send(ctx, c.ID); err != nil {
			if apperrors.IsConflict(err) {
				continue
			}
			o.logger.Error(err, "scheduled campaign run failed", "campaign_id", c.ID.String())
			continue
		}
		started++
	}
	return started, nil
}

func (o *Orchestrator) register(id uuid.UUID, cancel context.CancelFunc) {
	o.mu.Lock()
	o.running[id] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(id uuid.UUID, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	delete(o.running, id)
	o.mu.Unlock()
}

func (o *Orchestrator) appendLog(ctx context.Context, campaignID uuid.UUID, messageID *uuid.UUID, event, detail string) {
	entry := &model.CampaignLog{
		ID:         uuid.New(),
		CampaignID: campaignID,
		MessageID:  messageID,
		Event:      event,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
	if err := o.logs.Append(ctx, entry); err != nil {
		o.logger.Error(err, "failed to append campaign log", "campaign_id", campaignID.String(), "event", event)
	}
}

func (o *Orchestrator) publish(ctx context.Context, topic string, campaign *model.Campaign, result *RunResult) {
	if o.broker == nil {
		return
	}
	event := messaging.CampaignEvent{
		CampaignID: campaign.ID.String(),
		AccountID:  campaign.AccountID.String(),
		Status:     string(result.Status),
		Sent:       result.Sent,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
	}
	if err := o.broker.Publish(ctx, topic, event); err != nil {
		o.logger.Error(err, "failed to publish campaign event", "topic", topic, "campaign_id", campaign.ID.String())
	}
}

func (o *Orchestrator) observeRun(result *RunResult, start time.Time) {
	if o.metrics == nil || result == nil {
		return
	}
	o.metrics.CampaignRuns.WithLabelValues(string(result.Status)).Inc()
	o.metrics.CampaignRunLatency.Observe(time.Since(start).Seconds())
}

func lockKey(id uuid.UUID) string {
	return "campaign:run:" + id.String()
}

// Get returns one campaign.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	return o.campaigns.Get(ctx, id)
}

// List returns an account's campaigns.
func (o *Orchestrator) List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	return o.campaigns.List(ctx, accountID)
}

// Logs returns a campaign's lifecycle log, oldest first.
func (o *Orchestrator) Logs(ctx context.Context, campaignID uuid.UUID) ([]*model.CampaignLog, error) {
	return o.logs.ListByCampaign(ctx, campaignID)
}
