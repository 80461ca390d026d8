// Package reconciliation upgrades FALLBACK-sourced feedback records to AI
// quality in the background: a worker re-classifies a single record
// without the race deadline, and a scheduler drives the worker over the
// backlog on a cooperative loop bound to the process lifecycle.
package reconciliation

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/metrics"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
)

// Worker upgrades a single FALLBACK record to AI quality (spec §4.F).
type Worker struct {
	store *store.Store
	llm   llm.Client
	log   *logrus.Entry
}

// NewWorker builds a Worker from its collaborators.
func NewWorker(st *store.Store, llmClient llm.Client, log *logrus.Logger) *Worker {
	return &Worker{store: st, llm: llmClient, log: log.WithField("component", "reconciliation")}
}

// Upgrade runs the four-step reconciliation algorithm for one record id.
// It is idempotent: running it on an already-AI row is a no-op.
func (w *Worker) Upgrade(ctx context.Context, id string) error {
	// Step 1: snapshot read, no lock.
	snapshot, err := w.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if snapshot.Source == feedback.SourceAI {
		return nil
	}

	// Step 2: slow, unthrottled re-classify. No retry inside the worker;
	// the scheduler revisits the record on its next pass.
	result, err := w.llm.Classify(ctx, feedback.Sanitize(snapshot.RawContent))
	if err != nil {
		w.log.WithError(err).WithField("feedback_id", id).Warn("reconciliation classify failed, will retry on next pass")
		return nil
	}

	// Step 3: drift detection against the snapshot and the live row is
	// deferred into the write-gate callback, which sees the live row.
	missedUrgency := result.IsUrgent && !snapshot.IsUrgent
	needsReview := false

	applied, err := w.store.Reconcile(ctx, id, func(current *feedback.Feedback) bool {
		sentimentMismatch := current.Sentiment != result.Sentiment

		current.Sentiment = result.Sentiment
		current.Topics = feedback.TopicList(result.Topics)
		current.IsUrgent = result.IsUrgent
		current.Source = feedback.SourceAI
		current.AIProvider = result.Provider
		current.Department = feedback.ResolveDepartment(result.Topics)

		if missedUrgency || (sentimentMismatch && result.IsUrgent) {
			current.NeedsReview = true
			needsReview = true
		}
		return true
	})
	if err != nil {
		return err
	}
	if !applied {
		w.log.WithField("feedback_id", id).Debug("reconciliation upgrade aborted, record no longer eligible")
		return nil
	}

	metrics.ReconciliationUpgradesTotal.WithLabelValues(strconv.FormatBool(needsReview)).Inc()
	w.log.WithField("feedback_id", id).Info("reconciliation upgraded record to AI quality")
	return nil
}
