// Package ingestion implements the per-message pipeline: sanitize, dedup,
// classify, persist, and the urgent/fallback post-actions, per spec §4.E.
package ingestion

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/notification"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/orchestrator"
)

// Request is the validated shape of an incoming feedback submission.
type Request struct {
	RawContent string `validate:"required,min=3,max=5000"`
}

// Outcome reports whether the returned record is newly created or was
// already present for the same sanitized text.
type Outcome struct {
	Feedback  *feedback.Feedback
	Duplicate bool
}

// Pipeline wires sanitize -> dedup -> classify -> persist -> post-actions.
type Pipeline struct {
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
	alerter      notification.Alerter
	validate     *validator.Validate
	log          *logrus.Entry
}

// New builds a Pipeline from its collaborators.
func New(st *store.Store, orch *orchestrator.Orchestrator, alerter notification.Alerter, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:        st,
		orchestrator: orch,
		alerter:      alerter,
		validate:     validator.New(),
		log:          log.WithField("component", "ingestion"),
	}
}

// Ingest runs the full pipeline for one piece of raw feedback text.
func (p *Pipeline) Ingest(ctx context.Context, rawContent string) (Outcome, error) {
	if err := p.validate.Struct(Request{RawContent: rawContent}); err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}

	sanitized := feedback.Sanitize(rawContent)
	hash := feedback.Hash(sanitized)

	existing, err := p.store.FindByHash(ctx, hash)
	if err != nil {
		return Outcome{}, apperrors.Wrap(err, "dedup pre-check")
	}
	if existing != nil {
		return Outcome{Feedback: existing, Duplicate: true}, nil
	}

	result := p.orchestrator.Classify(ctx, sanitized)

	record := &feedback.Feedback{
		RawContent:      rawContent,
		ContentHash:     hash,
		Sentiment:       result.Sentiment,
		Topics:          feedback.TopicList(result.Topics),
		IsUrgent:        result.IsUrgent,
		ConfidenceScore: result.ConfidenceScore,
		Source:          result.Source,
		AIProvider:      result.AIProvider,
		Department:      result.Department,
		Status:          feedback.StatusOpen,
		Priority:        feedback.PriorityMedium,
	}

	stored, dup, err := p.store.Insert(ctx, record)
	if err != nil {
		return Outcome{}, apperrors.Wrap(err, "persist feedback")
	}
	if dup {
		return Outcome{Feedback: stored, Duplicate: true}, nil
	}

	if stored.IsUrgent {
		go p.alerter.Notify(context.WithoutCancel(ctx), notification.Alert{
			FeedbackID: stored.ID,
			Department: stored.Department,
			Sentiment:  stored.Sentiment,
			RawContent: stored.RawContent,
		})
	}

	// Fallback-sourced records are reconciliation-eligible purely by their
	// source column; the periodic scheduler (internal/reconciliation)
	// discovers them via ListBySource, so no explicit enqueue is needed
	// here.

	return Outcome{Feedback: stored, Duplicate: false}, nil
}
