package worker

import (
	"context"
	"time"

	"github.com/aimkt/marketing-api/pkg/logger"
)

// CampaignRunner starts due campaign runs. Implemented by the campaign
// orchestrator.
type CampaignRunner interface {
	RunDue(ctx context.Context, limit int) (int, error)
}

// Scheduler fires the orchestrator for scheduled campaigns whose send time
// has arrived. Several worker instances can run this loop at once: the
// per-campaign run lease keeps them from double-sending.
type Scheduler struct {
	runner    CampaignRunner
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewScheduler(runner CampaignRunner, interval time.Duration, batchSize int, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Scheduler{runner: runner, interval: interval, batchSize: batchSize, logger: log}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started, err := s.runner.RunDue(ctx, s.batchSize)
			if err != nil {
				s.logger.Error(err, "scheduler tick failed")
				continue
			}
			if started > 0 {
				s.logger.Info("scheduler tick finished", "campaigns_started", started)
			}
		}
	}
}
