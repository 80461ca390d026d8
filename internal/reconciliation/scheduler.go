package reconciliation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
)

// Scheduler drives the Worker over the FALLBACK backlog on a cooperative
// loop bound to the process lifecycle (spec §4.G).
type Scheduler struct {
	store  *store.Store
	worker *Worker
	idle   time.Duration
	gap    time.Duration
	batch  int
	log    *logrus.Entry
}

// NewScheduler builds a Scheduler. idle is the pause between full passes,
// gap is the pause between records within a pass, batch bounds how many
// records one pass considers.
func NewScheduler(st *store.Store, w *Worker, idle, gap time.Duration, batch int, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:  st,
		worker: w,
		idle:   idle,
		gap:    gap,
		batch:  batch,
		log:    log.WithField("component", "reconciliation_scheduler"),
	}
}

// Run loops until ctx is cancelled. Each pass reads up to batch FALLBACK
// records, oldest first, and upgrades each in turn with a gap pause
// between them to spread LLM load. Unexpected errors log and continue
// after a short backoff; the loop only exits on cancellation.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("reconciliation scheduler starting")
	defer s.log.Info("reconciliation scheduler stopped")

	ticker := time.NewTicker(s.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	records, err := s.store.ListBySource(ctx, feedback.SourceFallback, s.batch)
	if err != nil {
		s.log.WithError(err).Error("failed to list fallback records, backing off")
		s.sleep(ctx, 5*time.Second)
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		if err := s.worker.Upgrade(ctx, rec.ID); err != nil {
			s.log.WithError(err).WithField("feedback_id", rec.ID).Error("reconciliation upgrade failed, continuing")
		}
		s.sleep(ctx, s.gap)
	}
}

// sleep pauses for d or returns early if ctx is cancelled, so shutdown
// never waits out a full gap/backoff interval.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
