package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/ageree/curator/pkg/resilience"
)

var severityEmoji = map[Severity]string{
	SeverityInfo:     ":information_source:",
	SeverityWarning:  ":warning:",
	SeverityError:    ":x:",
	SeverityCritical: ":rotating_light:",
}

// SlackChannel posts alerts to a Slack channel via the Web API.
type SlackChannel struct {
	api       *goslack.Client
	channelID string
}

// NewSlackChannel creates a Slack alert channel. Returns nil when token or
// channel is empty.
func NewSlackChannel(token, channelID string) *SlackChannel {
	if token == "" || channelID == "" {
		return nil
	}
	return &SlackChannel{
		api:       goslack.New(token),
		channelID: channelID,
	}
}

// NewSlackChannelWithAPIURL targets a custom API URL (for tests).
func NewSlackChannelWithAPIURL(token, channelID, apiURL string) *SlackChannel {
	return &SlackChannel{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
	}
}

// Name implements Channel.
func (c *SlackChannel) Name() string { return "slack" }

// Send implements Channel, posting the alert as Block Kit sections.
func (c *SlackChannel) Send(ctx context.Context, alert Alert) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	header := fmt.Sprintf("%s *%s* — %s", severityEmoji[alert.Severity], alert.Title, alert.Severity)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, alert.Message, false, false),
			nil, nil,
		),
	}

	if len(alert.Details) > 0 {
		fields := make([]*goslack.TextBlockObject, 0, len(alert.Details))
		for key, value := range alert.Details {
			fields = append(fields, goslack.NewTextBlockObject(
				goslack.MarkdownType, fmt.Sprintf("*%s:* %s", key, value), false, false))
		}
		blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
	}

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

// WebhookChannel posts alerts as JSON to a generic incoming webhook.
type WebhookChannel struct {
	url        string
	httpClient *http.Client
}

// NewWebhookChannel creates a webhook alert channel. Returns nil when the
// URL is empty.
func NewWebhookChannel(url string) *WebhookChannel {
	if url == "" {
		return nil
	}
	return &WebhookChannel{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

type webhookPayload struct {
	Severity string            `json:"severity"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
	At       string            `json:"at"`
}

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Severity: alert.Severity.String(),
		Title:    alert.Title,
		Message:  alert.Message,
		Details:  alert.Details,
		At:       alert.At.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.NewHTTPError(resp.StatusCode, c.url)
	}
	return nil
}
