// Package notification delivers the fire-and-forget alert for urgent
// feedback: a webhook POST when one is configured, a critical log line
// otherwise. Alert delivery never fails the ingestion request that
// triggered it (spec §4.E step 5).
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/apperrors"
	"github.com/Mahirobot/aegis-feedback-engine/internal/feedback"
	"github.com/Mahirobot/aegis-feedback-engine/internal/metrics"
)

// Alert carries the fields spec §4.E requires in the urgent post-action
// payload: id, department, sentiment, raw content.
type Alert struct {
	FeedbackID string
	Department feedback.Department
	Sentiment  feedback.Sentiment
	RawContent string
}

// Alerter delivers an Alert. Implementations must not block the caller
// past a short timeout and must never propagate failure to the caller's
// own success/failure outcome — Notify has no return value, and the
// ingestion pipeline calls it in its own goroutine.
type Alerter interface {
	Notify(ctx context.Context, a Alert)
}

// webhookPayload is the Discord-style body the configured webhook expects:
// a single "content" field holding the formatted message.
type webhookPayload struct {
	Content string `json:"content"`
}

// WebhookAlerter posts to a configured webhook URL, falling back to a
// critical log line when no URL is configured or the POST fails.
type WebhookAlerter struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

// NewWebhookAlerter builds an Alerter that posts to webhookURL, or that
// always logs when webhookURL is empty.
func NewWebhookAlerter(webhookURL string, log *logrus.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		url:    webhookURL,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log.WithField("component", "notification"),
	}
}

// Notify formats and delivers an Alert. It never returns an error:
// failures are logged at critical/error level per spec §4.E and §6.4.
func (w *WebhookAlerter) Notify(ctx context.Context, a Alert) {
	message := formatMessage(a)

	if w.url == "" {
		metrics.AlertDeliveryTotal.WithLabelValues("no_webhook_configured").Inc()
		w.log.WithField("feedback_id", a.FeedbackID).Error(message)
		return
	}

	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		metrics.AlertDeliveryTotal.WithLabelValues("marshal_error").Inc()
		w.log.WithError(apperrors.Wrap(apperrors.ErrAlertFailure, "marshal alert payload: "+err.Error())).Error("failed to marshal alert payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		metrics.AlertDeliveryTotal.WithLabelValues("request_build_error").Inc()
		w.log.WithError(apperrors.Wrap(apperrors.ErrAlertFailure, "build alert request: "+err.Error())).Error("failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.AlertDeliveryTotal.WithLabelValues("delivery_error").Inc()
		w.log.WithError(apperrors.Wrap(apperrors.ErrAlertFailure, err.Error())).WithField("feedback_id", a.FeedbackID).Error("failed to deliver urgent alert, logging instead")
		w.log.WithField("feedback_id", a.FeedbackID).Error(message)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.AlertDeliveryTotal.WithLabelValues("non_2xx_response").Inc()
		w.log.WithError(apperrors.Wrap(apperrors.ErrAlertFailure, fmt.Sprintf("webhook returned status %d", resp.StatusCode))).
			WithField("feedback_id", a.FeedbackID).Error("alert webhook returned a non-success status, logging instead")
		w.log.WithField("feedback_id", a.FeedbackID).Error(message)
		return
	}

	metrics.AlertDeliveryTotal.WithLabelValues("delivered").Inc()
}

func formatMessage(a Alert) string {
	return fmt.Sprintf(
		"**URGENT FEEDBACK**\n**ID:** `%s`\n**Dept:** %s\n**Sent:** %s\n**Msg:** %s",
		a.FeedbackID, a.Department, a.Sentiment, a.RawContent,
	)
}
