// Package settings reads the key/value settings table through a short-lived
// cache so the scheduler can re-read policy on every check cycle.
package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Setting keys
const (
	KeySiteName           = "site_name"
	KeySiteURL            = "site_url"
	KeySMTPHost           = "smtp_host"
	KeySMTPPort           = "smtp_port"
	KeySMTPUser           = "smtp_user"
	KeySMTPPass           = "smtp_pass"
	KeySMTPFrom           = "smtp_from"
	KeySMTPSecure         = "smtp_secure"
	KeySMTPEnabled        = "smtp_enabled"
	KeyEmailTo            = "email_to"
	KeyEmailIsGlobal      = "email_is_global"
	KeyEmailGroups        = "email_groups"
	KeyRetryCount         = "retry_count"
	KeyCheckTimeout       = "check_timeout"
	KeyCheckRetentionDays = "check_retention_days"
)

// Limits and defaults
const (
	DefaultSiteName      = "kabomba status"
	DefaultSMTPPort      = 587
	MaxRetryCount        = 10
	DefaultCheckTimeout  = 30 * time.Second
	MinCheckTimeout      = time.Second
	MaxCheckTimeout      = 120 * time.Second
	DefaultRetentionDays = 30
)

// Source loads every stored setting.
type Source interface {
	AllSettings(ctx context.Context) (map[string]string, error)
}

// Provider serves settings from a TTL cache in front of a Source.
type Provider struct {
	src Source
	ttl time.Duration
	now func() time.Time

	cacheMu  sync.RWMutex
	cache    map[string]string
	loadedAt time.Time
	// gen is bumped by Invalidate; a load started under an older gen is
	// returned to its caller but never cached.
	gen uint64
}

// NewProvider creates a provider. A non-positive ttl disables caching.
func NewProvider(src Source, ttl time.Duration) *Provider {
	return &Provider{src: src, ttl: ttl, now: time.Now}
}

// Get returns the raw value for key and whether it is set.
func (p *Provider) Get(ctx context.Context, key string) (string, bool, error) {
	all, err := p.All(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

// All returns a copy of every setting.
func (p *Provider) All(ctx context.Context) (map[string]string, error) {
	p.cacheMu.RLock()
	if p.cache != nil && p.ttl > 0 && p.now().Sub(p.loadedAt) < p.ttl {
		out := copyMap(p.cache)
		p.cacheMu.RUnlock()
		return out, nil
	}
	gen := p.gen
	p.cacheMu.RUnlock()

	values, err := p.src.AllSettings(ctx)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	if p.gen == gen {
		p.cache = values
		p.loadedAt = p.now()
	}
	p.cacheMu.Unlock()

	return copyMap(values), nil
}

// Invalidate drops the cache so the next read hits the Source.
func (p *Provider) Invalidate() {
	p.cacheMu.Lock()
	p.gen++
	p.cache = nil
	p.cacheMu.Unlock()
}

// RetryCount is the number of consecutive failures tolerated before a down
// notification. Read errors fall back to 0.
func (p *Provider) RetryCount(ctx context.Context) int {
	v, _, _ := p.Get(ctx, KeyRetryCount)
	return clampInt(atoi(v, 0), 0, MaxRetryCount)
}

// CheckTimeout is the per-probe timeout.
func (p *Provider) CheckTimeout(ctx context.Context) time.Duration {
	v, ok, _ := p.Get(ctx, KeyCheckTimeout)
	if !ok || v == "" {
		return DefaultCheckTimeout
	}
	ms := atoi(v, int(DefaultCheckTimeout/time.Millisecond))
	d := time.Duration(ms) * time.Millisecond
	return clampDuration(d, MinCheckTimeout, MaxCheckTimeout)
}

// RetentionDays is how long check history is kept. Zero disables cleanup.
func (p *Provider) RetentionDays(ctx context.Context) int {
	v, ok, _ := p.Get(ctx, KeyCheckRetentionDays)
	if !ok || v == "" {
		return DefaultRetentionDays
	}
	n := atoi(v, DefaultRetentionDays)
	if n < 0 {
		return 0
	}
	return n
}

// SMTPConfig is the outbound mail configuration.
type SMTPConfig struct {
	Enabled bool
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Secure  bool
	To      string
}

// Configured reports whether enough is set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.To != ""
}

// Sender returns the From address, defaulting to the SMTP user.
func (c SMTPConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

// Recipients splits the comma separated To list.
func (c SMTPConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// SMTP reads the mail configuration.
func (p *Provider) SMTP(ctx context.Context) (SMTPConfig, error) {
	all, err := p.All(ctx)
	if err != nil {
		return SMTPConfig{}, err
	}
	return SMTPConfig{
		Enabled: all[KeySMTPEnabled] == "true",
		Host:    all[KeySMTPHost],
		Port:    atoi(all[KeySMTPPort], DefaultSMTPPort),
		User:    all[KeySMTPUser],
		Pass:    all[KeySMTPPass],
		From:    all[KeySMTPFrom],
		Secure:  all[KeySMTPSecure] == "true",
		To:      all[KeyEmailTo],
	}, nil
}

// EmailPolicy scopes group email notifications.
type EmailPolicy struct {
	SMTPEnabled bool
	AllGroups   bool
	Groups      []string
}

// Allows reports whether the policy covers group.
func (e EmailPolicy) Allows(group string) bool {
	if e.AllGroups {
		return true
	}
	for _, g := range e.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// EmailPolicy reads the group email policy.
func (p *Provider) EmailPolicy(ctx context.Context) (EmailPolicy, error) {
	all, err := p.All(ctx)
	if err != nil {
		return EmailPolicy{}, err
	}
	return EmailPolicy{
		SMTPEnabled: all[KeySMTPEnabled] == "true",
		AllGroups:   all[KeyEmailIsGlobal] != "false",
		Groups:      parseGroups(all[KeyEmailGroups]),
	}, nil
}

// Site identifies the installation in notifications.
type Site struct {
	Name string
	URL  string
}

// Site reads the site name and URL.
func (p *Provider) Site(ctx context.Context) Site {
	all, err := p.All(ctx)
	if err != nil {
		return Site{Name: DefaultSiteName}
	}
	name := all[KeySiteName]
	if name == "" {
		name = DefaultSiteName
	}
	return Site{Name: name, URL: all[KeySiteURL]}
}

func parseGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	var groups []string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil
	}
	return groups
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	return max(lo, min(hi, v))
}
