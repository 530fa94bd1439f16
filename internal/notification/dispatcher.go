package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/metrics"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/settings"
)

// Webhooks lists the webhooks that target a group
type Webhooks interface {
	WebhooksForGroup(ctx context.Context, group string) ([]models.Webhook, error)
}

// Groups looks up a group by name
type Groups interface {
	GetGroup(ctx context.Context, name string) (*models.Group, error)
}

// Settings is the subset of the settings provider the dispatcher reads
type Settings interface {
	SMTP(ctx context.Context) (settings.SMTPConfig, error)
	EmailPolicy(ctx context.Context) (settings.EmailPolicy, error)
	Site(ctx context.Context) settings.Site
}

// Dispatcher fans a state transition out to webhooks and email
type Dispatcher struct {
	webhooks Webhooks
	groups   Groups
	settings Settings
	mailer   Mailer
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(webhooks Webhooks, groups Groups, s Settings, mailer Mailer) *Dispatcher {
	return &Dispatcher{webhooks: webhooks, groups: groups, settings: s, mailer: mailer}
}

// NotifyDown announces a down episode
func (d *Dispatcher) NotifyDown(ctx context.Context, svc *models.Service, check *models.CheckResult) error {
	return d.notify(ctx, EventDown, svc, check)
}

// NotifyUp announces a recovery
func (d *Dispatcher) NotifyUp(ctx context.Context, svc *models.Service, check *models.CheckResult) error {
	return d.notify(ctx, EventUp, svc, check)
}

// notify runs the webhook and email paths independently and joins their errors.
func (d *Dispatcher) notify(ctx context.Context, event Event, svc *models.Service, check *models.CheckResult) error {
	msg := NewMessage(event, svc, check)
	site := d.settings.Site(ctx)
	msg.SiteName, msg.SiteURL = site.Name, site.URL

	var (
		wg      sync.WaitGroup
		hookErr error
		mailErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		hookErr = d.sendWebhooks(ctx, msg)
	}()
	go func() {
		defer wg.Done()
		mailErr = d.sendEmail(ctx, svc, msg)
	}()
	wg.Wait()

	return errors.Join(hookErr, mailErr)
}

func (d *Dispatcher) sendWebhooks(ctx context.Context, msg *Message) error {
	hooks, err := d.webhooks.WebhooksForGroup(ctx, msg.Group)
	if err != nil {
		return fmt.Errorf("failed to load webhooks: %w", err)
	}

	errCh := make(chan error, len(hooks))
	for i := range hooks {
		go func(hook *models.Webhook) {
			errCh <- d.sendWebhook(ctx, hook, msg)
		}(&hooks[i])
	}

	var errs []error
	for range hooks {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, hook *models.Webhook, msg *Message) error {
	provider, ok := GetProvider(hook.Type)
	if !ok {
		err := fmt.Errorf("unknown webhook type: %s", hook.Type)
		metrics.IncNotification(hook.Type, string(msg.Event), err)
		return err
	}

	err := provider.Send(ctx, hook, msg)
	metrics.IncNotification(hook.Type, string(msg.Event), err)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"webhook": hook.Name,
			"type":    hook.Type,
			"service": msg.ServiceName,
			"event":   msg.Event,
		}).WithError(err).Warn("webhook notification failed")
		return fmt.Errorf("webhook %s: %w", hook.Name, err)
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, svc *models.Service, msg *Message) error {
	eligible, err := d.EmailEligible(ctx, svc)
	if err != nil {
		return err
	}
	if !eligible {
		return nil
	}

	cfg, err := d.settings.SMTP(ctx)
	if err != nil {
		return fmt.Errorf("failed to load SMTP settings: %w", err)
	}
	if !cfg.Enabled || !cfg.Configured() {
		logger.WithFields(logrus.Fields{"service": msg.ServiceName}).Debug("email eligible but SMTP not configured")
		return nil
	}

	err = d.mailer.Send(ctx, cfg, BuildEmail(msg))
	metrics.IncNotification("email", string(msg.Event), err)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"service": msg.ServiceName,
			"event":   msg.Event,
		}).WithError(err).Warn("email notification failed")
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

// EmailEligible decides whether a transition of svc should be emailed.
// The per-service flag always qualifies. Otherwise SMTP must be enabled,
// the group must be covered by the email scope and the group itself must
// have email notifications switched on.
func (d *Dispatcher) EmailEligible(ctx context.Context, svc *models.Service) (bool, error) {
	if svc.EmailNotifications {
		return true, nil
	}

	group := svc.Group()
	if group == "" {
		return false, nil
	}

	policy, err := d.settings.EmailPolicy(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load email policy: %w", err)
	}
	if !policy.SMTPEnabled || !policy.Allows(group) {
		return false, nil
	}

	g, err := d.groups.GetGroup(ctx, group)
	if err != nil {
		// a missing group row simply means the group never opted in
		return false, nil
	}
	return g.EmailNotifications, nil
}

// SendTestEmail sends a test message with the current SMTP settings.
func (d *Dispatcher) SendTestEmail(ctx context.Context) error {
	cfg, err := d.settings.SMTP(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled || !cfg.Configured() {
		return ErrEmailNotConfigured
	}
	site := d.settings.Site(ctx)
	email := Email{
		Subject: fmt.Sprintf("[%s] Test email", site.Name),
		Body:    "This is a test email from your status page. SMTP is configured correctly.\n",
	}
	err = d.mailer.Send(ctx, cfg, email)
	metrics.IncNotification("email", "test", err)
	return err
}
