package workers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/chimeo/internal/app/system/metrics"
	"github.com/dalemusser/chimeo/internal/app/system/tasks"
	"github.com/dalemusser/chimeo/internal/app/system/workers"
	"go.uber.org/zap"
)

func TestScheduler_RunsJobOnSpec(t *testing.T) {
	s := workers.NewScheduler(zap.NewNop(), metrics.New())
	var runs atomic.Int32
	err := s.Add(tasks.Job{
		Name: "tick",
		Spec: "@every 1s",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
}

func TestScheduler_BadSpec(t *testing.T) {
	s := workers.NewScheduler(zap.NewNop(), nil)
	err := s.Add(tasks.Job{Name: "bad", Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestScheduler_EmptySpecDisables(t *testing.T) {
	s := workers.NewScheduler(zap.NewNop(), nil)
	if err := s.Add(tasks.Job{Name: "off", Run: func(context.Context) error { return nil }}); err != nil {
		t.Errorf("empty spec should be accepted, got %v", err)
	}
}

func TestScheduler_RunNowAppliesTimeout(t *testing.T) {
	s := workers.NewScheduler(zap.NewNop(), nil)
	err := s.RunNow(context.Background(), tasks.Job{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
