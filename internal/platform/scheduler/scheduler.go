// Package scheduler runs housekeeping jobs: daily sweeps over invoices and
// subscriptions, and periodic cleanup of in-memory caches.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
)

// JobFunc is a daily job. It returns how many rows it touched.
type JobFunc func(ctx context.Context, now time.Time) (int64, error)

type dailyJob struct {
	name string
	fn   JobFunc
}

type periodicJob struct {
	name     string
	interval time.Duration
	fn       func() int
}

type Scheduler struct {
	cron    *gocron.Scheduler
	at      string
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	daily    []dailyJob
	periodic []periodicJob
}

// New returns a scheduler that runs daily jobs at at ("HH:MM", UTC).
func New(at string, logger zerolog.Logger) *Scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	return &Scheduler{
		cron:    cron,
		at:      at,
		timeout: 5 * time.Minute,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

func (s *Scheduler) Daily(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = append(s.daily, dailyJob{name: name, fn: fn})
}

// Every registers a cleanup that runs every interval, first at start.
func (s *Scheduler) Every(name string, interval time.Duration, fn func() int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodic = append(s.periodic, periodicJob{name: name, interval: interval, fn: fn})
}

// Start schedules every registered job and returns without blocking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.daily {
		j := j
		_, err := s.cron.Every(1).Day().At(s.at).Tag(j.name).Do(func() {
			_ = s.runDaily(context.Background(), j)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	for _, j := range s.periodic {
		j := j
		_, err := s.cron.Every(j.interval).Tag(j.name).Do(func() {
			n := j.fn()
			metrics.HousekeepingRuns.WithLabelValues(j.name, "ok").Inc()
			if n > 0 {
				s.logger.Debug().Str("job", j.name).Int("removed", n).Msg("cleanup done")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}

	s.cron.StartAsync()
	s.logger.Info().Str("at", s.at).Int("daily", len(s.daily)).Int("periodic", len(s.periodic)).
		Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunNow runs the named daily job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *dailyJob
	for i := range s.daily {
		if s.daily[i].name == name {
			job = &s.daily[i]
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runDaily(ctx, *job)
}

func (s *Scheduler) runDaily(ctx context.Context, j dailyJob) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		metrics.HousekeepingRuns.WithLabelValues(j.name, metrics.Result(err)).Inc()
	}()

	start := s.now()
	n, err := j.fn(ctx, start.UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("job", j.name).Msg("housekeeping job failed")
		return err
	}
	s.logger.Info().Str("job", j.name).Int64("rows", n).Dur("took", time.Since(start)).Msg("housekeeping job done")
	return nil
}
