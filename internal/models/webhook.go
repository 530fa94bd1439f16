package models

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Webhook types
const (
	WebhookTypeDiscord  = "discord"
	WebhookTypeGeneric  = "webhook"
	WebhookTypeShoutrrr = "shoutrrr"
)

// Default message templates; {service} is replaced with the service name
const (
	DefaultMessageDown = "{service} is down"
	DefaultMessageUp   = "{service} is back up"
)

// Webhook is an outbound notification target
type Webhook struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null"`
	URL         string    `json:"url" gorm:"not null"`
	Type        string    `json:"type" gorm:"not null"`
	MessageDown string    `json:"messageDown" gorm:"not null"`
	MessageUp   string    `json:"messageUp" gorm:"not null"`
	AvatarURL   *string   `json:"avatarUrl" gorm:"column:avatar_url"`
	IsGlobal    bool      `json:"isGlobal" gorm:"not null"`
	Groups      []string  `json:"groups" gorm:"-"`
	GroupsRaw   string    `json:"-" gorm:"column:groups;type:text"`
	Enabled     bool      `json:"enabled" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName specifies the table name for Webhook
func (Webhook) TableName() string {
	return "webhooks"
}

// BeforeCreate assigns a UUID when none is set (GORM hook)
func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave marshals Groups to JSON before saving (GORM hook)
func (w *Webhook) BeforeSave(tx *gorm.DB) error {
	groups := w.Groups
	if groups == nil {
		groups = []string{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return err
	}
	w.GroupsRaw = string(raw)
	return nil
}

// AfterFind unmarshals Groups after loading (GORM hook)
func (w *Webhook) AfterFind(tx *gorm.DB) error {
	w.Groups = []string{}
	if w.GroupsRaw != "" {
		return json.Unmarshal([]byte(w.GroupsRaw), &w.Groups)
	}
	return nil
}

// Targets reports whether the webhook should fire for a service in group.
// An empty group only matches global webhooks.
func (w *Webhook) Targets(group string) bool {
	if !w.Enabled {
		return false
	}
	if w.IsGlobal {
		return true
	}
	return group != "" && slices.Contains(w.Groups, group)
}
