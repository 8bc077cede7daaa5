package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/execution"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/notifier"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/recorder"
)

// Scheduler manages all cron tasks: the pending-confirmation sweep,
// the portfolio snapshot cadence, stale-feed watchdog and the daily
// summary report.
type Scheduler struct {
	Cron     *cron.Cron
	Engines  []*execution.Engine
	Notifier *notifier.TelegramNotifier
	Recorder recorder.Recorder
	Ctx      context.Context

	mu        sync.Mutex
	feedStale bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, engines []*execution.Engine, tn *notifier.TelegramNotifier, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engines:  engines,
		Notifier: tn,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// RegisterAll registers the recurring tasks. Both expressions use the
// six-field cron syntax (with seconds).
func (s *Scheduler) RegisterAll(snapshotCron, sweepCron string) error {
	if _, err := s.Cron.AddFunc(snapshotCron, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	// Confirmation TTL sweep: expired orders cancel even when no tick
	// arrives for the pair.
	if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register ttl sweep: %w", err)
	}
	// Daily summary at 09:00 UTC.
	if _, err := s.Cron.AddFunc("0 0 9 * * *", s.summaryTask); err != nil {
		return fmt.Errorf("register summary task: %w", err)
	}
	// Stale-feed watchdog every minute.
	if _, err := s.Cron.AddFunc("0 * * * * *", s.staleCheck); err != nil {
		return fmt.Errorf("register stale check: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunSnapshotNow executes the snapshot task immediately (for manual
// trigger / RUN_ON_START).
func (s *Scheduler) RunSnapshotNow() {
	s.snapshotTask()
}

func (s *Scheduler) snapshotTask() {
	now := time.Now().UTC()
	for _, eng := range s.Engines {
		snap := eng.Ledger().Snapshot(now)
		if err := s.Recorder.RecordSnapshot(&snap); err != nil {
			log.Printf("[ERROR] record snapshot: %v", err)
		}
	}
}

func (s *Scheduler) sweepTask() {
	now := time.Now().UTC()
	total := 0
	for _, eng := range s.Engines {
		total += eng.SweepExpired(now)
	}
	if total > 0 {
		log.Printf("[INFO] confirmation sweep cancelled %d order(s)", total)
	}
}

// staleCheck alerts once per outage: on the fresh->stale transition,
// with a recovery note once ticks resume. Repeated checks during the
// same outage stay silent.
func (s *Scheduler) staleCheck() {
	stale := false
	for _, eng := range s.Engines {
		if eng.Stale() {
			stale = true
			break
		}
	}

	s.mu.Lock()
	changed := stale != s.feedStale
	s.feedStale = stale
	s.mu.Unlock()
	if !changed {
		return
	}

	if stale {
		log.Println("[WARN] market data stale, matching paused")
		s.trySend("⚠️ Market data feed is stale; order matching is paused until ticks resume.")
	} else {
		log.Println("[INFO] market data resumed")
		s.trySend("✅ Market data feed resumed; order matching active.")
	}
}

func (s *Scheduler) summaryTask() {
	log.Println("[INFO] running daily summary")
	now := time.Now().UTC()
	for _, eng := range s.Engines {
		snap := eng.Ledger().Snapshot(now)
		s.trySend(notifier.FormatSnapshot(snap))
		if err := s.Recorder.RecordSnapshot(&snap); err != nil {
			log.Printf("[ERROR] record snapshot: %v", err)
		}
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil || !s.Notifier.Enabled() {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
