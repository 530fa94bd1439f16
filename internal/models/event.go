package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types
const (
	EventIncident    = "incident"
	EventMaintenance = "maintenance"
	EventInfo        = "info"
)

// Event statuses
const (
	EventOngoing   = "ongoing"
	EventResolved  = "resolved"
	EventScheduled = "scheduled"
)

// Event is a status page announcement: an incident, a maintenance window
// or a plain notice, optionally scoped to one group.
type Event struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string     `json:"title" gorm:"not null"`
	Description *string    `json:"description"`
	Type        string     `json:"type" gorm:"not null"`
	Status      string     `json:"status" gorm:"not null;index"`
	GroupName   *string    `json:"groupName" gorm:"column:group_name;index"`
	StartedAt   time.Time  `json:"startedAt" gorm:"not null"`
	ResolvedAt  *time.Time `json:"resolvedAt"`
	CreatedBy   *string    `json:"createdBy" gorm:"type:varchar(36)"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for Event
func (Event) TableName() string {
	return "status_events"
}

// BeforeCreate assigns a UUID when none is set (GORM hook)
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ValidEventType reports whether t is a known event type
func ValidEventType(t string) bool {
	switch t {
	case EventIncident, EventMaintenance, EventInfo:
		return true
	}
	return false
}

// ValidEventStatus reports whether s is a known event status
func ValidEventStatus(s string) bool {
	switch s {
	case EventOngoing, EventResolved, EventScheduled:
		return true
	}
	return false
}
