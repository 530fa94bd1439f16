package models

import "time"

// Setting is one key/value row of the global settings table
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Setting
func (Setting) TableName() string {
	return "settings"
}
