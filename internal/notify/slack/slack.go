// Package slack sends incident notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Summarizer produces a short human-readable writeup for an incident.
// Optional; when nil or failing, the message falls back to raw fields.
type Summarizer interface {
	Summarize(ctx context.Context, in *incident.Incident, ev *event.Event) (string, error)
}

// Notifier posts incident updates to a Slack webhook.
type Notifier struct {
	webhookURL string
	summarizer Summarizer
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op. summarizer may be nil.
func New(webhookURL string, summarizer Summarizer) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		summarizer: summarizer,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts the incident's current state to the configured webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, in *incident.Incident, ev *event.Event) error {
	if n.webhookURL == "" {
		return nil
	}

	summary := ""
	if n.summarizer != nil {
		s, err := n.summarizer.Summarize(ctx, in, ev)
		if err == nil {
			summary = s
		}
		// summarization failure degrades to the plain message
	}

	msg := buildMessage(in, ev, summary)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(in *incident.Incident, ev *event.Event, summary string) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(in, ev),
			{"type": "divider"},
			fieldsBlock(in),
			{"type": "divider"},
			summaryBlock(summary),
			{"type": "divider"},
			contextBlock(in),
		},
	}
}

func headerBlock(in *incident.Incident, ev *event.Event) map[string]any {
	emoji := severityEmoji(in.Status, in.CurrentSeverity)
	title := "Incident Update"
	switch {
	case in.EventCount == 1:
		title = "Incident Opened"
	case in.Status == incident.StatusResolved:
		title = "Incident Resolved"
	}
	text := fmt.Sprintf("%s %s: %s", emoji, title, ev.Alert.Type)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(in *incident.Incident) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", in.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", in.CurrentSeverity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Service:* %s/%s", in.Namespace, in.Service),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", in.CurrentAction),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %s", in.CurrentPriority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Events:* %d", in.EventCount),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(summary string) map[string]any {
	text := truncate(summary, maxSummaryLen)
	if text == "" {
		text = "_No summary available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(in *incident.Incident) map[string]any {
	ts := in.LastObservedAt
	if ts.IsZero() {
		ts = in.FirstObservedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("beacon • incident %s • %s", in.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(status incident.Status, severity string) string {
	if status == incident.StatusResolved {
		return "\U0001f7e2" // green circle
	}
	switch strings.ToLower(severity) {
	case "critical":
		return "\U0001f534" // red circle
	case "warning":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
