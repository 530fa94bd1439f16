package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckResult is one immutable probe outcome. The JSON shape is shared by
// the API, the live broadcast and the history queries.
type CheckResult struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ServiceID    string    `json:"serviceId" gorm:"not null;type:varchar(36);index:idx_checks_service_time"`
	StatusCode   *int      `json:"statusCode"`
	ResponseTime int64     `json:"responseTime" gorm:"not null"` // milliseconds
	Success      bool      `json:"success" gorm:"not null"`
	ErrorMessage *string   `json:"errorMessage"`
	CheckedAt    time.Time `json:"checkedAt" gorm:"not null;index:idx_checks_service_time,sort:desc;index:idx_checks_time"`
}

// TableName specifies the table name for CheckResult
func (CheckResult) TableName() string {
	return "service_checks"
}

// BeforeCreate fills the identifier and timestamp when missing (GORM hook)
func (c *CheckResult) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	return nil
}

// CheckStats summarizes the checks of one service over a window
type CheckStats struct {
	TotalChecks      int64   `json:"totalChecks"`
	SuccessfulChecks int64   `json:"successfulChecks"`
	UptimePercent    float64 `json:"uptimePercent"`
	AvgResponseTime  int64   `json:"avgResponseTime"`
	MinResponseTime  int64   `json:"minResponseTime"`
	MaxResponseTime  int64   `json:"maxResponseTime"`
}
