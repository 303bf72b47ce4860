package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"studioflow/api/internal/email"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/workflow"
)

// WebhookEscalator posts revision-cap escalations to an external
// endpoint, typically a chat integration watched by team leaders. The
// endpoint is best effort; a broken webhook must never slow transitions
// down, so calls go through a circuit breaker.
type WebhookEscalator struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewWebhookEscalator(url string, timeout time.Duration) *WebhookEscalator {
	log := logging.With("notify")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "escalation-webhook",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infof("circuit breaker %s changed from %s to %s", name, from.String(), to.String())
		},
	})
	return &WebhookEscalator{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// Escalate delivers the signal. Errors are logged, never returned to the
// workflow path.
func (w *WebhookEscalator) Escalate(ctx context.Context, signal workflow.EscalationSignal) {
	if w.url == "" {
		return
	}
	log := logging.With("notify").WithField("taskId", signal.TaskID)
	_, err := w.breaker.Execute(func() (any, error) {
		return nil, w.post(ctx, signal)
	})
	if err != nil {
		log.WithError(err).Warn("escalation webhook delivery failed")
		return
	}
	log.WithField("revisionCount", signal.RevisionCount).Info("escalation delivered")
}

// EmailEscalator mails revision-cap escalations to the lead distribution
// list. Like the webhook path, delivery is best effort.
type EmailEscalator struct {
	mailer     *email.Service
	recipients []string
	baseURL    string
}

func NewEmailEscalator(mailer *email.Service, recipients []string, baseURL string) *EmailEscalator {
	return &EmailEscalator{
		mailer:     mailer,
		recipients: recipients,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (e *EmailEscalator) Escalate(_ context.Context, signal workflow.EscalationSignal) {
	if e.mailer == nil || !e.mailer.IsConfigured() || len(e.recipients) == 0 {
		return
	}
	taskURL := ""
	if e.baseURL != "" {
		taskURL = e.baseURL + "/tasks/" + signal.TaskID
	}
	if err := e.mailer.SendEscalationEmail(e.recipients, signal.TaskID, signal.RevisionCount, signal.Cap, taskURL); err != nil {
		logging.With("notify").WithField("taskId", signal.TaskID).WithError(err).Warn("escalation email delivery failed")
	}
}

// Escalators fans one signal out to every configured notifier.
type Escalators []workflow.EscalationNotifier

func (e Escalators) Escalate(ctx context.Context, signal workflow.EscalationSignal) {
	for _, notifier := range e {
		notifier.Escalate(ctx, signal)
	}
}

func (w *WebhookEscalator) post(ctx context.Context, signal workflow.EscalationSignal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post escalation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("escalation endpoint returned %d", resp.StatusCode)
	}
	return nil
}
