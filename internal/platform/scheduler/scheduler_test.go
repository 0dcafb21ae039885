package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
)

func TestRunNow(t *testing.T) {
	s := New("02:00", zerolog.Nop())
	fixed := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var got time.Time
	s.Daily("test_overdue", func(_ context.Context, now time.Time) (int64, error) {
		got = now
		return 3, nil
	})
	s.Daily("test_failing", func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	})

	ok := testutil.ToFloat64(metrics.HousekeepingRuns.WithLabelValues("test_overdue", "ok"))
	require.NoError(t, s.RunNow(context.Background(), "test_overdue"))
	assert.Equal(t, fixed, got)
	assert.Equal(t, ok+1, testutil.ToFloat64(metrics.HousekeepingRuns.WithLabelValues("test_overdue", "ok")))

	failed := testutil.ToFloat64(metrics.HousekeepingRuns.WithLabelValues("test_failing", "error"))
	assert.Error(t, s.RunNow(context.Background(), "test_failing"))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.HousekeepingRuns.WithLabelValues("test_failing", "error")))

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestRunNow_PassesDeadline(t *testing.T) {
	s := New("02:00", zerolog.Nop())
	s.Daily("test_deadline", func(ctx context.Context, _ time.Time) (int64, error) {
		if _, ok := ctx.Deadline(); !ok {
			return 0, errors.New("no deadline")
		}
		return 0, nil
	})
	assert.NoError(t, s.RunNow(context.Background(), "test_deadline"))
}

func TestStart_SchedulesJobs(t *testing.T) {
	s := New("02:00", zerolog.Nop())
	s.Daily("test_daily", func(context.Context, time.Time) (int64, error) { return 0, nil })

	ran := make(chan struct{}, 1)
	s.Every("test_sweep", time.Hour, func() int {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 1
	})

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Equal(t, 2, s.cron.Len())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("periodic job did not run at start")
	}
}

func TestStart_BadTime(t *testing.T) {
	s := New("25:99", zerolog.Nop())
	s.Daily("test_bad", func(context.Context, time.Time) (int64, error) { return 0, nil })
	assert.Error(t, s.Start())
}
