package models

import "time"

// Group labels services and scopes email and webhook targeting
type Group struct {
	Name               string    `json:"name" gorm:"primaryKey"`
	EmailNotifications bool      `json:"emailNotifications" gorm:"not null"`
	CreatedAt          time.Time `json:"createdAt"`
}

// TableName specifies the table name for Group
func (Group) TableName() string {
	return "groups"
}
