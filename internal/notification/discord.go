package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// Embed colors
const (
	colorUp   = 0x22c55e
	colorDown = 0xef4444
)

// DiscordProvider posts an embed to a Discord webhook
type DiscordProvider struct {
	client *http.Client
}

func init() {
	RegisterProvider(&DiscordProvider{client: &http.Client{Timeout: 10 * time.Second}})
}

func (d *DiscordProvider) Name() string {
	return models.WebhookTypeDiscord
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordPayload struct {
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

func buildDiscordPayload(hook *models.Webhook, msg *Message) discordPayload {
	embed := discordEmbed{
		Title:       headline(hook, msg),
		Description: msg.ServiceURL,
		Color:       colorUp,
		Fields:      []discordField{},
		Timestamp:   msg.Time.UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = msg.SiteURL
	if embed.Footer.Text == "" {
		embed.Footer.Text = "status monitor"
	}

	if msg.Event == EventDown {
		embed.Color = colorDown
		if msg.StatusCode != nil {
			embed.Fields = append(embed.Fields, discordField{Name: "status code", Value: strconv.Itoa(*msg.StatusCode), Inline: true})
		}
		if msg.ErrorMessage != "" {
			embed.Fields = append(embed.Fields, discordField{Name: "error", Value: msg.ErrorMessage})
		}
	} else {
		embed.Fields = append(embed.Fields, discordField{Name: "response time", Value: fmt.Sprintf("%dms", msg.ResponseTime), Inline: true})
	}

	payload := discordPayload{Embeds: []discordEmbed{embed}}
	if hook.AvatarURL != nil {
		payload.AvatarURL = *hook.AvatarURL
	}
	return payload
}

func (d *DiscordProvider) Send(ctx context.Context, hook *models.Webhook, message *Message) error {
	payloadBytes, err := json.Marshal(buildDiscordPayload(hook, message))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *DiscordProvider) Validate(hook *models.Webhook) error {
	if !strings.HasPrefix(hook.URL, "https://") && !strings.HasPrefix(hook.URL, "http://") {
		return fmt.Errorf("discord webhook URL must be http(s)")
	}
	return nil
}
