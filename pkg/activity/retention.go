package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ridgeline/intranet/pkg/observability"
)

// RetentionJob trims old activity entries on a cron schedule. With a
// retention of zero days entries are kept forever and no job is scheduled.
type RetentionJob struct {
	recorder *Recorder
	days     int
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewRetentionJob creates the retention job.
func NewRetentionJob(recorder *Recorder, days int, logger *observability.Logger) *RetentionJob {
	return &RetentionJob{
		recorder: recorder,
		days:     days,
		logger:   logger,
	}
}

// Start schedules the cleanup. schedule is a standard 5-field cron
// expression.
func (j *RetentionJob) Start(schedule string) error {
	if j.days <= 0 {
		j.logger.Info("activity retention disabled, keeping entries forever")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, j.run); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.WithFields(map[string]interface{}{
		"schedule": schedule,
		"days":     j.days,
	}).Info("activity retention scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running cleanup to finish.
func (j *RetentionJob) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *RetentionJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -j.days)
	removed, err := j.recorder.Cleanup(ctx, cutoff)
	if err != nil {
		j.logger.WithError(err).Error("activity cleanup failed")
		return
	}
	j.logger.WithField("removed", removed).Info("activity cleanup complete")
}
