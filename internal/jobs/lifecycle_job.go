// Package jobs runs scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
)

const (
	defaultBatch = 500
	sweepTimeout = time.Minute
)

// LifecycleAdvancer moves rentals whose periods have started or ended.
// *application.RentalService implements it.
type LifecycleAdvancer interface {
	AdvanceLifecycle(ctx context.Context, now time.Time, batch int) (application.SweepResult, error)
}

// LifecycleJob runs the lifecycle sweep on a cron schedule.
type LifecycleJob struct {
	cron     *cron.Cron
	advancer LifecycleAdvancer
	logger   *zap.Logger
	now      func() time.Time

	// running guards against overlapping sweeps when one overruns its slot.
	running sync.Mutex
}

// NewLifecycleJob schedules the sweep with spec. An empty spec returns
// (nil, nil) and the sweep is disabled.
func NewLifecycleJob(spec string, advancer LifecycleAdvancer, logger *zap.Logger) (*LifecycleJob, error) {
	if spec == "" {
		return nil, nil
	}
	j := &LifecycleJob{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		advancer: advancer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if _, err := j.cron.AddFunc(spec, j.Run); err != nil {
		return nil, fmt.Errorf("invalid lifecycle sweep schedule %q: %w", spec, err)
	}
	return j, nil
}

// Start starts the scheduler in its own goroutine.
func (j *LifecycleJob) Start() {
	j.cron.Start()
	j.logger.Info("lifecycle sweep scheduled")
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *LifecycleJob) Stop() {
	<-j.cron.Stop().Done()
}

// Run performs one sweep. Skipped if the previous sweep is still running.
func (j *LifecycleJob) Run() {
	if !j.running.TryLock() {
		j.logger.Warn("lifecycle sweep still running, skipping")
		return
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	res, err := j.advancer.AdvanceLifecycle(ctx, j.now(), defaultBatch)
	if err != nil {
		j.logger.Error("lifecycle sweep failed", zap.Error(err))
		return
	}
	if res.Started+res.Completed+res.Failed > 0 {
		j.logger.Info("lifecycle sweep finished",
			zap.Int("started", res.Started),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
		)
	}
}
