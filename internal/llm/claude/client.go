// Package claude summarizes incidents with the Claude API for notification
// messages.
package claude

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

const (
	maxTokens = 512

	systemPrompt = "You are an SRE assistant. Summarize the incident below in " +
		"2-3 short sentences for a Slack notification: what is failing, how " +
		"bad it is, and what the automated decision was. Plain text only, no " +
		"markdown headers."
)

// Client produces incident summaries via the Claude messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude summarizer with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Summarize asks the model for a short writeup of the incident's current
// state in light of the latest event.
func (c *Client) Summarize(ctx context.Context, in *incident.Incident, ev *event.Event) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(in, ev))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: summarize: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("claude: empty response")
	}
	return text, nil
}

// buildPrompt renders the incident and triggering event as a compact fact
// sheet for the model.
func buildPrompt(in *incident.Incident, ev *event.Event) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Incident %s (%s/%s, dedupe key %s)\n", in.ID, in.Namespace, in.Service, in.DedupeKey)
	fmt.Fprintf(&sb, "Status: %s, severity %s, %d events since %s\n",
		in.Status, in.CurrentSeverity, in.EventCount, in.FirstObservedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if in.CurrentAction != "" {
		fmt.Fprintf(&sb, "Decision: action=%s priority=%s auto=%t risk=%.2f\n",
			in.CurrentAction, in.CurrentPriority, in.Auto, in.RiskScore)
	}
	if len(in.ReasonCodes) > 0 {
		fmt.Fprintf(&sb, "Reason codes: %s\n", strings.Join(in.ReasonCodes, ", "))
	}
	if len(in.QualityFlags) > 0 {
		fmt.Fprintf(&sb, "Quality flags: %s\n", strings.Join(in.QualityFlags, ", "))
	}

	fmt.Fprintf(&sb, "\nLatest event %s: type=%s state=%s severity=%s at %s\n",
		ev.EventID, ev.Alert.Type, ev.Alert.State, ev.Alert.Severity,
		ev.ObservedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	appendDetails(&sb, "Evidence", ev.Evidence)
	appendDetails(&sb, "Impact", ev.Impact)

	return sb.String()
}

func appendDetails(sb *strings.Builder, label string, m map[string]any) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// stable ordering so prompts are reproducible
	slices.Sort(keys)

	fmt.Fprintf(sb, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(sb, "  %s: %v\n", k, m[k])
	}
}
