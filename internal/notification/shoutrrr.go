package notification

import (
	"context"
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ShoutrrrProvider sends plain text through any shoutrrr service URL
// (slack://, telegram://, gotify://, ntfy://, ...).
type ShoutrrrProvider struct {
	send func(url, message string) error
}

func init() {
	RegisterProvider(&ShoutrrrProvider{send: shoutrrr.Send})
}

func (s *ShoutrrrProvider) Name() string {
	return models.WebhookTypeShoutrrr
}

func (s *ShoutrrrProvider) Send(ctx context.Context, hook *models.Webhook, message *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(hook.URL, FormatText(headline(hook, message), message)); err != nil {
		return fmt.Errorf("failed to send shoutrrr notification: %w", err)
	}
	return nil
}

func (s *ShoutrrrProvider) Validate(hook *models.Webhook) error {
	if _, err := shoutrrr.CreateSender(hook.URL); err != nil {
		return fmt.Errorf("invalid shoutrrr URL: %w", err)
	}
	return nil
}
