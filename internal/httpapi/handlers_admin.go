package httpapi

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/logging"
)

// stats serves GET /admin/stats.
func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("stats failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// forceReconcile serves POST /admin/reconcile: it enqueues up to 10,000
// FALLBACK-sourced records, oldest first, for immediate, out-of-band
// reconciliation rather than waiting for the scheduler's next pass.
func (h *handlers) forceReconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconcileWorker == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation worker not configured")
		return
	}

	rows, err := h.store.ListBySource(r.Context(), feedback.SourceFallback, 10000)
	if err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("force reconcile: list failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log := logging.FromContext(r.Context(), h.log)
	worker := h.reconcileWorker
	bgCtx := context.WithoutCancel(r.Context())
	go func() {
		for _, rec := range rows {
			if err := worker.Upgrade(bgCtx, rec.ID); err != nil {
				log.WithError(err).WithField("feedback_id", rec.ID).Warn("forced reconciliation failed")
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": fmt.Sprintf("Queued %d items.", len(rows))})
}

// reviewQueue serves GET /admin/reviews: records flagged needs_review.
func (h *handlers) reviewQueue(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ReviewQueue(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("review queue failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rows == nil {
		rows = []feedback.Feedback{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// reviewQueueCSV serves GET /admin/reviews/csv, mirroring the original
// export's column order and attachment filename.
func (h *handlers) reviewQueueCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ReviewQueue(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("review queue csv failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=review_queue.csv")

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"ID", "Sentiment", "Urgent", "Dept", "Source", "Content"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			string(row.Sentiment),
			fmt.Sprintf("%t", row.IsUrgent),
			string(row.Department),
			string(row.Source),
			row.RawContent,
		})
	}
	writer.Flush()
}
