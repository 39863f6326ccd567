package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/stagecall/api/controllers"
	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

type blockingRunner struct {
	runs atomic.Int32
	err  error
}

func (b *blockingRunner) Run(ctx context.Context) error {
	b.runs.Add(1)
	if b.err != nil {
		return b.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type stubStopper struct {
	stopped atomic.Bool
}

func (s *stubStopper) Stop() { s.stopped.Store(true) }

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func newTestService(t *testing.T, consumer, cron *blockingRunner, reminders *stubStopper, deps map[string]controllers.Pinger) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:       &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:       logger.Nop(),
		Dependencies: deps,
		Consumer:     consumer,
		Cron:         cron,
		Reminders:    reminders,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceRunStopsRemindersOnShutdown(t *testing.T) {
	consumer, cron, reminders := &blockingRunner{}, &blockingRunner{}, &stubStopper{}
	svc := newTestService(t, consumer, cron, reminders, map[string]controllers.Pinger{"db": stubPinger{}, "bigquery": nil})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
	if consumer.runs.Load() != 1 || cron.runs.Load() != 1 {
		t.Fatalf("expected consumer and cron to run once, got %d/%d", consumer.runs.Load(), cron.runs.Load())
	}
	if !reminders.stopped.Load() {
		t.Fatal("expected reminder timers to be stopped")
	}
}

func TestServiceRunFailsOnUnreadyDependency(t *testing.T) {
	consumer, cron, reminders := &blockingRunner{}, &blockingRunner{}, &stubStopper{}
	svc := newTestService(t, consumer, cron, reminders, map[string]controllers.Pinger{"redis": stubPinger{err: errors.New("refused")}})

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
	if consumer.runs.Load() != 0 {
		t.Fatal("consumer must not start before dependencies are ready")
	}
	if !reminders.stopped.Load() {
		t.Fatal("expected reminder timers to be stopped")
	}
}

func TestServiceRunReturnsConsumerFailure(t *testing.T) {
	consumer := &blockingRunner{err: errors.New("subscription deleted")}
	cron, reminders := &blockingRunner{}, &stubStopper{}
	svc := newTestService(t, consumer, cron, reminders, nil)

	err := svc.Run(context.Background())
	if err == nil || !errors.Is(err, consumer.err) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestLockKey(t *testing.T) {
	if got := lockKey(""); got != "sc:lock:cron:local" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := lockKey("prod"); got != "sc:lock:cron:prod" {
		t.Fatalf("unexpected key %q", got)
	}
}
