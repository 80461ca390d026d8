// Package orchestrator runs the heuristic and LLM classification paths
// against a deadline and returns whichever result is authoritative: the
// validated LLM output if it lands in time, otherwise the heuristic.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/metrics"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/heuristic"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
)

// Result is the orchestrator's output: a classification plus the path that
// produced it and the department it resolves to.
type Result struct {
	Sentiment       feedback.Sentiment
	Topics          []string
	IsUrgent        bool
	ConfidenceScore float64
	Source          feedback.Source
	AIProvider      feedback.AIProvider
	Department      feedback.Department
}

// Orchestrator races the LLM client against a deadline, falling back to the
// heuristic analyzer on timeout or failure. A bounded semaphore caps
// outstanding LLM calls so a slow upstream can't unbound the process's
// in-flight goroutine count.
type Orchestrator struct {
	llmClient llm.Client
	deadline  time.Duration
	gate      chan struct{}
	log       *logrus.Entry
}

// New builds an Orchestrator with the given LLM client, race deadline, and
// concurrency cap on outstanding LLM calls.
func New(llmClient llm.Client, deadline time.Duration, concurrencyLimit int, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		llmClient: llmClient,
		deadline:  deadline,
		gate:      make(chan struct{}, concurrencyLimit),
		log:       log.WithField("component", "orchestrator"),
	}
}

// llmOutcome carries the LLM goroutine's result back to the race select.
type llmOutcome struct {
	classification llm.Classification
	err            error
}

// Classify computes the heuristic result eagerly, then races a gated LLM
// call against the configured deadline. The heuristic result is always
// available to return; the LLM result only supersedes it if it arrives,
// validated, before the deadline.
func (o *Orchestrator) Classify(ctx context.Context, text string) Result {
	h := heuristic.Analyze(text)
	fallback := Result{
		Sentiment:       h.Sentiment,
		Topics:          h.Topics,
		IsUrgent:        h.IsUrgent,
		ConfidenceScore: h.ConfidenceScore,
		Source:          feedback.SourceFallback,
		AIProvider:      h.AIProvider,
		Department:      feedback.ResolveDepartment(h.Topics),
	}

	raceCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	select {
	case o.gate <- struct{}{}:
	case <-raceCtx.Done():
		o.log.WithError(apperrors.ErrRaceTimeout).Warn("llm concurrency gate blocked past deadline, using fallback")
		metrics.RaceOutcomesTotal.WithLabelValues("fallback_timeout").Inc()
		return fallback
	}

	outcome := make(chan llmOutcome, 1)
	go func() {
		defer func() { <-o.gate }()
		c, err := o.llmClient.Classify(raceCtx, text)
		outcome <- llmOutcome{classification: c, err: err}
	}()

	select {
	case <-raceCtx.Done():
		o.log.WithError(apperrors.ErrRaceTimeout).Warn("llm race deadline exceeded, using fallback")
		metrics.RaceOutcomesTotal.WithLabelValues("fallback_timeout").Inc()
		return fallback
	case res := <-outcome:
		if res.err != nil {
			o.log.WithError(res.err).Debug("llm path failed, using fallback")
			metrics.RaceOutcomesTotal.WithLabelValues("fallback_error").Inc()
			return fallback
		}
		metrics.RaceOutcomesTotal.WithLabelValues("ai").Inc()
		return Result{
			Sentiment:       res.classification.Sentiment,
			Topics:          res.classification.Topics,
			IsUrgent:        res.classification.IsUrgent,
			ConfidenceScore: res.classification.ConfidenceScore,
			Source:          feedback.SourceAI,
			AIProvider:      res.classification.Provider,
			Department:      feedback.ResolveDepartment(res.classification.Topics),
		}
	}
}
