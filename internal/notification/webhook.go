package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// WebhookProvider posts a generic JSON document
type WebhookProvider struct {
	client *http.Client
}

func init() {
	RegisterProvider(&WebhookProvider{client: &http.Client{Timeout: 10 * time.Second}})
}

func (w *WebhookProvider) Name() string {
	return models.WebhookTypeGeneric
}

type genericService struct {
	Name  string  `json:"name"`
	URL   string  `json:"url"`
	Group *string `json:"group"`
}

// genericPayload is the body sent to plain webhooks
type genericPayload struct {
	Event        string         `json:"event"`
	Message      string         `json:"message"`
	Service      genericService `json:"service"`
	Status       string         `json:"status"`
	StatusCode   *int           `json:"statusCode,omitempty"`
	ResponseTime *int64         `json:"responseTime,omitempty"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

func buildGenericPayload(hook *models.Webhook, msg *Message) genericPayload {
	p := genericPayload{
		Event:     "service." + string(msg.Event),
		Message:   headline(hook, msg),
		Service:   genericService{Name: msg.ServiceName, URL: msg.ServiceURL},
		Status:    string(msg.Event),
		Timestamp: msg.Time.UTC().Format(time.RFC3339),
	}
	if msg.Group != "" {
		group := msg.Group
		p.Service.Group = &group
	}
	if msg.Event == EventDown {
		p.StatusCode = msg.StatusCode
		if msg.ErrorMessage != "" {
			errMsg := msg.ErrorMessage
			p.ErrorMessage = &errMsg
		}
	} else {
		rt := msg.ResponseTime
		p.ResponseTime = &rt
	}
	return p
}

func (w *WebhookProvider) Send(ctx context.Context, hook *models.Webhook, message *Message) error {
	payloadBytes, err := json.Marshal(buildGenericPayload(hook, message))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "kabomba-status/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookProvider) Validate(hook *models.Webhook) error {
	if !strings.HasPrefix(hook.URL, "https://") && !strings.HasPrefix(hook.URL, "http://") {
		return fmt.Errorf("webhook URL must be http(s)")
	}
	return nil
}
