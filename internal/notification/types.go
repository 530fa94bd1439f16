package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// Event is the kind of state change being announced.
type Event string

const (
	EventDown Event = "down"
	EventUp   Event = "up"
)

// Provider delivers a message to one webhook type.
type Provider interface {
	// Name returns the webhook type this provider handles
	Name() string

	// Send delivers message to hook
	Send(ctx context.Context, hook *models.Webhook, message *Message) error

	// Validate checks the hook configuration before it is stored
	Validate(hook *models.Webhook) error
}

// Message is a rendered down/up episode.
type Message struct {
	Event        Event
	ServiceName  string
	ServiceURL   string // URL shown to users
	CheckURL     string // URL actually probed
	Group        string
	StatusCode   *int
	ErrorMessage string
	ResponseTime int64 // milliseconds
	Time         time.Time
	SiteName     string
	SiteURL      string
}

// NewMessage renders a service and its check into a Message.
func NewMessage(event Event, svc *models.Service, check *models.CheckResult) *Message {
	msg := &Message{
		Event:        event,
		ServiceName:  svc.Name,
		ServiceURL:   svc.ShownURL(),
		CheckURL:     svc.URL,
		Group:        svc.Group(),
		StatusCode:   check.StatusCode,
		ResponseTime: check.ResponseTime,
		Time:         check.CheckedAt,
	}
	if check.ErrorMessage != nil {
		msg.ErrorMessage = *check.ErrorMessage
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	return msg
}

// Registry holds all registered webhook providers
var (
	providers = make(map[string]Provider)
	mu        sync.RWMutex
)

// RegisterProvider registers a new webhook provider
func RegisterProvider(provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[provider.Name()] = provider
}

// GetProvider returns a provider by webhook type
func GetProvider(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	provider, ok := providers[name]
	return provider, ok
}

// ValidateWebhook checks a webhook against its provider.
func ValidateWebhook(hook *models.Webhook) error {
	provider, ok := GetProvider(hook.Type)
	if !ok {
		return fmt.Errorf("unknown webhook type: %s", hook.Type)
	}
	return provider.Validate(hook)
}

// Template substitutes {service} in a message template.
func Template(template, serviceName string) string {
	return strings.ReplaceAll(template, "{service}", serviceName)
}

// headline returns the webhook's templated title for the message event.
func headline(hook *models.Webhook, msg *Message) string {
	tmpl := hook.MessageUp
	fallback := models.DefaultMessageUp
	if msg.Event == EventDown {
		tmpl = hook.MessageDown
		fallback = models.DefaultMessageDown
	}
	if tmpl == "" {
		tmpl = fallback
	}
	return Template(tmpl, msg.ServiceName)
}

// FormatText renders a plain-text body shared by shoutrrr and email.
func FormatText(title string, msg *Message) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "URL: %s\n", msg.ServiceURL)
	if msg.CheckURL != "" && msg.CheckURL != msg.ServiceURL {
		fmt.Fprintf(&b, "Check URL: %s\n", msg.CheckURL)
	}
	if msg.Group != "" {
		fmt.Fprintf(&b, "Group: %s\n", msg.Group)
	}
	if msg.Event == EventDown {
		if msg.StatusCode != nil {
			fmt.Fprintf(&b, "Status Code: %d\n", *msg.StatusCode)
		}
		if msg.ErrorMessage != "" {
			fmt.Fprintf(&b, "Error: %s\n", msg.ErrorMessage)
		}
	} else {
		fmt.Fprintf(&b, "Response Time: %dms\n", msg.ResponseTime)
	}
	fmt.Fprintf(&b, "\nTime: %s\n", msg.Time.UTC().Format(time.RFC3339))
	return b.String()
}
