package trigger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/pkg/distlock"
	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// =============================================================================
// CAMPAIGN SCHEDULER
// =============================================================================
// Polls for SCHEDULED campaigns whose scheduled_at has arrived and publishes
// a campaign.send job for each. It never changes campaign status itself;
// the consumer's SENDING transition decides whether a job runs, so a job
// published twice is harmless. Only the instance holding the lock polls.

const (
	DefaultSchedulerPollInterval = 30 * time.Second
	DefaultSchedulerBatch        = 100
	// republishAfter suppresses re-publishing a campaign the consumer has
	// not picked up yet.
	republishAfter = 5 * time.Minute
)

// DueSource lists campaigns ready to send.
type DueSource interface {
	Due(ctx context.Context, limit int) ([]domain.Campaign, error)
}

// Scheduler publishes due campaigns.
type Scheduler struct {
	source       DueSource
	publisher    Publisher
	lock         distlock.DistLock
	pollInterval time.Duration
	batch        int

	mu        sync.Mutex
	published map[string]time.Time
	now       func() time.Time

	enqueued int64
	errors   int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	log     *logger.Logger
}

// NewScheduler creates a scheduler. lock guards each poll across instances.
func NewScheduler(source DueSource, publisher Publisher, lock distlock.DistLock, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = DefaultSchedulerPollInterval
	}
	return &Scheduler{
		source:       source,
		publisher:    publisher,
		lock:         lock,
		pollInterval: pollInterval,
		batch:        DefaultSchedulerBatch,
		published:    make(map[string]time.Time),
		now:          time.Now,
		log:          logger.Named("scheduler"),
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("scheduler started", "poll_interval", s.pollInterval.String())
	return nil
}

// Stop ends the loop and waits for an in-flight poll.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped",
		"enqueued", atomic.LoadInt64(&s.enqueued), "errors", atomic.LoadInt64(&s.errors))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				atomic.AddInt64(&s.errors, 1)
				s.log.Error("scheduler poll failed", "error", err)
			}
		}
	}
}

// Tick runs one poll and returns the number of jobs published. It returns
// zero without error when another instance holds the lock.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		s.log.Debug("scheduler lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("scheduler lock release failed", "error", err)
		}
	}()

	due, err := s.source.Due(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, at := range s.published {
		if now.Sub(at) > republishAfter {
			delete(s.published, id)
		}
	}

	n := 0
	for _, c := range due {
		if _, seen := s.published[c.ID]; seen {
			continue
		}
		if err := s.publisher.Publish(ctx, CampaignSend(c.ID)); err != nil {
			atomic.AddInt64(&s.errors, 1)
			s.log.Error("publish scheduled campaign failed", "campaign_id", c.ID, "error", err)
			continue
		}
		s.published[c.ID] = now
		n++
		s.log.Info("scheduled campaign enqueued", "campaign_id", c.ID, "scheduled_at", c.ScheduledAt)
	}
	atomic.AddInt64(&s.enqueued, int64(n))
	return n, nil
}
