package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invite is a single-use registration code issued by an admin
type Invite struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code           string     `json:"code" gorm:"uniqueIndex;not null"`
	CreatedBy      string     `json:"createdBy" gorm:"not null;index;type:varchar(36)"`
	UsedBy         *string    `json:"usedBy" gorm:"type:varchar(36)"`
	UsedByUsername *string    `json:"usedByUsername" gorm:"->;-:migration"`
	UsedAt         *time.Time `json:"usedAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// TableName specifies the table name for Invite
func (Invite) TableName() string {
	return "invites"
}

// BeforeCreate assigns a UUID when none is set (GORM hook)
func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// IsUsed reports whether the code has been redeemed
func (i *Invite) IsUsed() bool {
	return i.UsedBy != nil
}

// IsExpired reports whether the invite expired before now
func (i *Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}
