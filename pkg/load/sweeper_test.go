package load

import (
	"context"
	"sync"
	"testing"
)

func TestSweeper_Sweep(t *testing.T) {
	estimator := newTestEstimator(t)

	driveToRho(t, estimator, "route:/quiet", 0.2)
	driveToRho(t, estimator, "route:/busy", 0.8)

	var mu sync.Mutex
	var relaxed []string
	sweeper := NewSweeper(estimator, nil, func(f Feature) {
		mu.Lock()
		defer mu.Unlock()
		relaxed = append(relaxed, f.Unit)
	})

	sweeper.Sweep()

	mu.Lock()
	defer mu.Unlock()
	if len(relaxed) != 1 || relaxed[0] != "route:/quiet" {
		t.Errorf("Relaxed units = %v, want [route:/quiet]", relaxed)
	}
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	estimator := newTestEstimator(t)
	sweeper := NewSweeper(estimator, &SweepConfig{Schedule: "not-a-cron"}, nil)

	if err := sweeper.Start(context.Background()); err == nil {
		t.Error("Start() accepted invalid cron schedule")
	}
}

func TestSweeper_EmptyScheduleIsNoop(t *testing.T) {
	estimator := newTestEstimator(t)
	sweeper := NewSweeper(estimator, &SweepConfig{}, nil)

	if err := sweeper.Start(context.Background()); err != nil {
		t.Errorf("Start() with empty schedule failed: %v", err)
	}
	sweeper.Stop()
}
