package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/ingestion"
	"github.com/Mahirobot/aegis-feedback-engine/internal/logging"
	"github.com/Mahirobot/aegis-feedback-engine/internal/reconciliation"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
)

type handlers struct {
	pipeline        *ingestion.Pipeline
	store           *store.Store
	reconcileWorker *reconciliation.Worker
	log             *logrus.Logger
}

type ingestRequest struct {
	RawContent string `json:"raw_content"`
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ingest is the hard-path endpoint: POST /feedback (spec §6).
func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := h.pipeline.Ingest(r.Context(), req.RawContent)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logging.FromContext(r.Context(), h.log).WithError(err).Error("ingest failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if out.Duplicate {
		w.Header().Set("X-Status", "Duplicate")
	}
	writeJSON(w, http.StatusOK, out.Feedback)
}

// list is a thin read wrapper: GET /feedback?skip=&limit=.
func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)

	rows, err := h.store.List(r.Context(), "", "", limit, skip)
	if err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("list feedback failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// resolve transitions a ticket to RESOLVED: PATCH /feedback/{id}/resolve.
// This write also takes the store's write gate, per spec §6's note that
// supporting-endpoint writes aren't exempt from it.
func (h *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.store.Resolve(r.Context(), id, req.Note); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		logging.FromContext(r.Context(), h.log).WithError(err).Error("resolve failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// bulkUploadCSV accepts a CSV file of raw feedback lines and ingests each
// one in the background, mirroring the original batch_csv endpoint's
// fire-and-forget contract.
func (h *handlers) bulkUploadCSV(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed csv")
		return
	}

	log := logging.FromContext(r.Context(), h.log)
	go func() {
		bgCtx := context.WithoutCancel(r.Context())
		count := 0
		for _, row := range records {
			if len(row) == 0 || row[0] == "" {
				continue
			}
			if _, err := h.pipeline.Ingest(bgCtx, row[0]); err != nil {
				log.WithError(err).Warn("bulk csv row failed to ingest")
				continue
			}
			count++
		}
		log.WithField("ingested", count).Info("bulk csv upload finished processing")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Processing started in background."})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
