// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartPublishScheduler runs PublishDue every interval. Shut the returned scheduler down on exit.
func (s *PromotionService) StartPublishScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := s.PublishDue(ctx); err != nil {
				s.Log.Error("[Scheduler] publish sweep failed", "error", err)
			}
		}),
		gocron.WithName("publish-due"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule publish sweep: %w", err)
	}

	sched.Start()
	s.Log.Info("⏰ [Scheduler] publish sweep scheduled", "interval", interval.String())
	return sched, nil
}
