package settings

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// ErrEmptyUpdate is returned when an update carries no recognised field.
var ErrEmptyUpdate = errors.New("no valid settings provided")

// View is the API representation of the settings table.
type View struct {
	SiteName           string   `json:"siteName"`
	SiteURL            string   `json:"siteUrl"`
	SMTPHost           string   `json:"smtpHost"`
	SMTPPort           string   `json:"smtpPort"`
	SMTPUser           string   `json:"smtpUser"`
	SMTPPass           string   `json:"smtpPass"`
	SMTPFrom           string   `json:"smtpFrom"`
	SMTPSecure         bool     `json:"smtpSecure"`
	SMTPEnabled        bool     `json:"smtpEnabled"`
	EmailTo            string   `json:"emailTo"`
	EmailIsGlobal      bool     `json:"emailIsGlobal"`
	EmailGroups        []string `json:"emailGroups"`
	RetryCount         int      `json:"retryCount"`
	CheckTimeout       int      `json:"checkTimeout"` // milliseconds
	CheckRetentionDays int      `json:"checkRetentionDays"`
}

// NewView builds a View from raw key/value pairs. The SMTP password is
// replaced by a mask unless includeSecrets is set.
func NewView(all map[string]string, includeSecrets bool) View {
	port := all[KeySMTPPort]
	if port == "" {
		port = strconv.Itoa(DefaultSMTPPort)
	}
	name := all[KeySiteName]
	if name == "" {
		name = DefaultSiteName
	}
	pass := all[KeySMTPPass]
	if pass != "" && !includeSecrets {
		pass = "********"
	}
	groups := parseGroups(all[KeyEmailGroups])
	if groups == nil {
		groups = []string{}
	}

	timeout := DefaultCheckTimeout.Milliseconds()
	if v, ok := all[KeyCheckTimeout]; ok && v != "" {
		timeout = int64(atoi(v, int(timeout)))
	}
	retention := DefaultRetentionDays
	if v, ok := all[KeyCheckRetentionDays]; ok && v != "" {
		retention = atoi(v, DefaultRetentionDays)
	}

	return View{
		SiteName:           name,
		SiteURL:            all[KeySiteURL],
		SMTPHost:           all[KeySMTPHost],
		SMTPPort:           port,
		SMTPUser:           all[KeySMTPUser],
		SMTPPass:           pass,
		SMTPFrom:           all[KeySMTPFrom],
		SMTPSecure:         all[KeySMTPSecure] == "true",
		SMTPEnabled:        all[KeySMTPEnabled] == "true",
		EmailTo:            all[KeyEmailTo],
		EmailIsGlobal:      all[KeyEmailIsGlobal] != "false",
		EmailGroups:        groups,
		RetryCount:         clampInt(atoi(all[KeyRetryCount], 0), 0, MaxRetryCount),
		CheckTimeout:       int(timeout),
		CheckRetentionDays: retention,
	}
}

// Update is a partial settings change; nil fields are left untouched.
type Update struct {
	SiteName           *string  `json:"siteName"`
	SiteURL            *string  `json:"siteUrl"`
	SMTPHost           *string  `json:"smtpHost"`
	SMTPPort           *string  `json:"smtpPort"`
	SMTPUser           *string  `json:"smtpUser"`
	SMTPPass           *string  `json:"smtpPass"`
	SMTPFrom           *string  `json:"smtpFrom"`
	SMTPSecure         *bool    `json:"smtpSecure"`
	SMTPEnabled        *bool    `json:"smtpEnabled"`
	EmailTo            *string  `json:"emailTo"`
	EmailIsGlobal      *bool    `json:"emailIsGlobal"`
	EmailGroups        []string `json:"emailGroups"`
	RetryCount         *float64 `json:"retryCount"`
	CheckTimeout       *float64 `json:"checkTimeout"`
	CheckRetentionDays *float64 `json:"checkRetentionDays"`
}

// Values converts the update into the rows to write. Numeric fields are
// clamped into their valid ranges.
func (u Update) Values() (map[string]string, error) {
	out := map[string]string{}
	setStr := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			out[key] = strconv.FormatBool(*v)
		}
	}

	setStr(KeySiteName, u.SiteName)
	setStr(KeySiteURL, u.SiteURL)
	setStr(KeySMTPHost, u.SMTPHost)
	setStr(KeySMTPPort, u.SMTPPort)
	setStr(KeySMTPUser, u.SMTPUser)
	if u.SMTPPass != nil && *u.SMTPPass != "********" {
		out[KeySMTPPass] = *u.SMTPPass
	}
	setStr(KeySMTPFrom, u.SMTPFrom)
	setBool(KeySMTPSecure, u.SMTPSecure)
	setBool(KeySMTPEnabled, u.SMTPEnabled)
	setStr(KeyEmailTo, u.EmailTo)
	setBool(KeyEmailIsGlobal, u.EmailIsGlobal)

	if u.EmailGroups != nil {
		raw, err := json.Marshal(u.EmailGroups)
		if err != nil {
			return nil, err
		}
		out[KeyEmailGroups] = string(raw)
	}
	if u.RetryCount != nil {
		n := clampInt(int(math.Floor(*u.RetryCount)), 0, MaxRetryCount)
		out[KeyRetryCount] = strconv.Itoa(n)
	}
	if u.CheckTimeout != nil {
		ms := int(math.Floor(*u.CheckTimeout))
		ms = clampInt(ms, int(MinCheckTimeout.Milliseconds()), int(MaxCheckTimeout.Milliseconds()))
		out[KeyCheckTimeout] = strconv.Itoa(ms)
	}
	if u.CheckRetentionDays != nil {
		out[KeyCheckRetentionDays] = strconv.Itoa(max(0, int(math.Floor(*u.CheckRetentionDays))))
	}

	if len(out) == 0 {
		return nil, ErrEmptyUpdate
	}
	return out, nil
}
